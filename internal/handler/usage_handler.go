package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/pkg/response"
	"github.com/xxxsen/docchat/internal/service"
)

type UsageHandler struct {
	usage *service.UsageService
}

func NewUsageHandler(usage *service.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

func (h *UsageHandler) Recent(c *gin.Context) {
	report, err := h.usage.Recent(c.Request.Context(), getUserID(c), parseUintQuery(c, "limit"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
