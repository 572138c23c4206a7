package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/pkg/errcode"
	"github.com/xxxsen/docchat/internal/pkg/response"
	"github.com/xxxsen/docchat/internal/service"
)

type ChatHandler struct {
	search *service.SearchService
}

func NewChatHandler(search *service.SearchService) *ChatHandler {
	return &ChatHandler{search: search}
}

type chatContextRequest struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids"`
}

// Context assembles the retrieval context block for a chat turn.
func (h *ChatHandler) Context(c *gin.Context) {
	var req chatContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	result, err := h.search.BuildContext(c.Request.Context(), getUserID(c), req.Query, req.DocumentIDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
