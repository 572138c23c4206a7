package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docchat/internal/pkg/errcode"
	"github.com/xxxsen/docchat/internal/pkg/response"
	"github.com/xxxsen/docchat/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	ingest    *service.IngestService
}

func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest}
}

// Upload accepts a multipart form with a "file" part and an optional
// "extracted_text" field carrying client-side extracted PDF text. The
// response returns the pending document; processing continues in the
// background.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read upload")
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.Request.Context(), getUserID(c), service.UploadInput{
		Name:         fileHeader.Filename,
		Size:         fileHeader.Size,
		Reader:       file,
		PreExtracted: c.PostForm("extracted_text"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := parseUintQuery(c, "limit")
	offset := parseUintQuery(c, "offset")
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type reprocessRequest struct {
	ExtractedText string `json:"extracted_text"`
}

// Reprocess re-runs the pipeline for a finished or failed document. A
// document still in flight reports a conflict.
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	var req reprocessRequest
	_ = c.ShouldBindJSON(&req)
	doc, err := h.ingest.Reprocess(c.Request.Context(), getUserID(c), c.Param("id"), req.ExtractedText)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Sweep force-fails stuck jobs on demand, same transition the scheduled
// sweep applies.
func (h *DocumentHandler) Sweep(c *gin.Context) {
	swept, err := h.ingest.SweepStuck(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"swept": swept})
}

func parseUintQuery(c *gin.Context, name string) uint {
	value := c.Query(name)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return uint(parsed)
}
