package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/middleware"
)

type RouterDeps struct {
	Documents         *DocumentHandler
	Chat              *ChatHandler
	Usage             *UsageHandler
	MutationRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.Principal())

	// one limiter shared across the job-scheduling routes, keyed per path
	limit := middleware.RateLimit(deps.MutationRateLimit)

	api.POST("/documents", limit, deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.DELETE("/documents/:id", deps.Documents.Delete)
	api.POST("/documents/:id/reprocess", limit, deps.Documents.Reprocess)
	api.POST("/documents/sweep", deps.Documents.Sweep)

	api.POST("/chat/context", deps.Chat.Context)
	api.GET("/usage", deps.Usage.Recent)
}
