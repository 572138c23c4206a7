package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/ai"
	"github.com/xxxsen/docchat/internal/filestore"
	"github.com/xxxsen/docchat/internal/ingest"
	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
	"github.com/xxxsen/docchat/internal/pkg/timeutil"
	"github.com/xxxsen/docchat/internal/repo"
)

const previewChars = 500

// Progress checkpoints for the post-extraction phase. Extraction itself
// reports within the 0..80 band.
const (
	progressChunking   = 85
	progressPersisting = 95
)

type IngestService struct {
	docs       *repo.DocumentRepo
	chunks     *repo.ChunkRepo
	usage      *repo.UsageRepo
	store      filestore.Store
	extractor  *ingest.Extractor
	chunkCfg   ingest.ChunkConfig
	stuckAfter time.Duration
}

func NewIngestService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, usage *repo.UsageRepo,
	store filestore.Store, extractor *ingest.Extractor, chunkCfg ingest.ChunkConfig, stuckAfter time.Duration) *IngestService {
	return &IngestService{
		docs:       docs,
		chunks:     chunks,
		usage:      usage,
		store:      store,
		extractor:  extractor,
		chunkCfg:   chunkCfg,
		stuckAfter: stuckAfter,
	}
}

// Enqueue starts the ingest job for a freshly created document. The job is
// detached from the request context: an upload response returning does not
// cancel its pipeline.
func (s *IngestService) Enqueue(doc *model.Document, data []byte, preExtracted string) {
	go s.runJob(context.Background(), doc, data, preExtracted)
}

// Reprocess re-enters the pipeline for a terminal document. A document
// still pending or processing is left alone and the call reports a
// conflict. The blob is re-read from the file store; callers may supply
// fresh client-side extracted text for PDFs above the server-side limit.
func (s *IngestService) Reprocess(ctx context.Context, userID, docID, preExtracted string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if err := s.docs.ResetToPending(ctx, userID, docID, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	doc.Status = model.DocumentStatusPending
	doc.ErrorMessage = ""
	doc.ProcessingProgress = 0
	go s.runJob(context.Background(), doc, nil, preExtracted)
	return doc, nil
}

func (s *IngestService) runJob(ctx context.Context, doc *model.Document, data []byte, preExtracted string) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("document_id", doc.ID),
		zap.String("file_type", doc.FileType),
	)
	usage := &ai.Usage{}
	defer s.flushUsage(ctx, doc, usage)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest job panicked", zap.Any("panic", r))
			_ = s.docs.MarkError(ctx, doc.ID, "Internal error during processing", timeutil.NowUnix())
		}
	}()

	if err := s.docs.MarkProcessing(ctx, doc.ID, timeutil.NowUnix()); err != nil {
		logger.Error("mark processing failed", zap.Error(err))
		return
	}
	logger.Info("ingest job started")

	// Client-side extracted text only replaces the blob for PDFs; other
	// types always extract from the stored file.
	if doc.FileType != model.FileTypePDF {
		preExtracted = ""
	}
	if data == nil && preExtracted == "" {
		blob, err := s.loadBlob(ctx, doc.FileKey)
		if err != nil {
			logger.Error("load blob failed", zap.Error(err))
			_ = s.docs.MarkError(ctx, doc.ID, "Stored file could not be read", timeutil.NowUnix())
			return
		}
		data = blob
	}

	hb := func(ctx context.Context, progress int, info string) {
		_ = s.docs.UpdateProgress(ctx, doc.ID, progress, info, timeutil.NowUnix())
	}

	result, err := s.extractor.Extract(ctx, ingest.Input{
		Data:         data,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		PreExtracted: preExtracted,
	}, usage, hb)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		_ = s.docs.MarkError(ctx, doc.ID, jobErrorMessage(err), timeutil.NowUnix())
		return
	}

	hb(ctx, progressChunking, "Splitting text into chunks")
	pieces := ingest.SplitChunks(result.Text, s.chunkCfg)
	now := timeutil.NowUnix()
	rows := make([]model.DocumentChunk, 0, len(pieces))
	for i, content := range pieces {
		rows = append(rows, model.DocumentChunk{
			ID:         newID(),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			ChunkIndex: i,
			Content:    content,
			Ctime:      now,
		})
	}

	hb(ctx, progressPersisting, "Saving chunks")
	if err := s.chunks.ReplaceAll(ctx, doc.ID, rows); err != nil {
		logger.Error("persist chunks failed", zap.Error(err))
		_ = s.docs.MarkError(ctx, doc.ID, "Failed to save processed content", timeutil.NowUnix())
		return
	}

	preview := buildPreview(result.Text, doc.FileType)
	if err := s.docs.MarkReady(ctx, doc.ID, preview, result.PageCount, timeutil.NowUnix()); err != nil {
		logger.Error("mark ready failed", zap.Error(err))
		return
	}
	logger.Info("ingest job finished",
		zap.Int("chunks", len(rows)),
		zap.Int("pages", result.PageCount),
	)
}

func (s *IngestService) loadBlob(ctx context.Context, fileKey string) ([]byte, error) {
	rc, err := s.store.Open(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// flushUsage records accumulated AI usage even when the job failed; the
// calls were made and billed either way.
func (s *IngestService) flushUsage(ctx context.Context, doc *model.Document, usage *ai.Usage) {
	if len(usage.Entries) == 0 {
		return
	}
	now := timeutil.NowUnix()
	logs := make([]model.UsageLog, 0, len(usage.Entries))
	for _, entry := range usage.Entries {
		logs = append(logs, model.UsageLog{
			ID:           newID(),
			UserID:       doc.UserID,
			DocumentID:   doc.ID,
			Operation:    entry.Operation,
			InputTokens:  entry.InputTokens,
			OutputTokens: entry.OutputTokens,
			CostEstimate: entry.CostEstimate(),
			Ctime:        now,
		})
	}
	if err := s.usage.InsertBatch(ctx, logs); err != nil {
		logutil.GetLogger(ctx).Error("record usage failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}
}

// SweepStuck force-fails non-terminal documents whose liveness indicator is
// older than the stuck threshold. Returns the number of documents swept.
func (s *IngestService) SweepStuck(ctx context.Context) (int, error) {
	now := timeutil.NowUnix()
	cutoff := now - int64(s.stuckAfter.Seconds())
	stuck, err := s.docs.ListStuck(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, doc := range stuck {
		since := doc.Mtime
		if doc.ProcessingStartedAt != nil {
			since = *doc.ProcessingStartedAt
		}
		message := fmt.Sprintf("Processing stalled for %d minutes; please reprocess the document.", (now-since)/60)
		if err := s.docs.ForceError(ctx, doc.ID, message, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Error("force error failed",
				zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}

// jobErrorMessage converts pipeline failures into messages safe to surface
// on the document row.
func jobErrorMessage(err error) string {
	switch {
	case errors.Is(err, ingest.ErrPDFTooLarge):
		return "PDF is too large for server-side extraction; please re-upload with client-side text extraction."
	case errors.Is(err, ai.ErrQuotaExhausted):
		return "AI quota exhausted; please try again later."
	case errors.Is(err, ai.ErrRateLimited):
		return "AI service is rate limiting requests; please try again in a few minutes."
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return "Unsupported file type."
	case errors.Is(err, appErr.ErrInvalid):
		return "File content could not be read."
	default:
		msg := err.Error()
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return "Processing failed: " + msg
	}
}

func buildPreview(text, fileType string) string {
	cleaned := stripPageMarkers(text)
	if cleaned == "" {
		return fmt.Sprintf("[%s document]", strings.ToUpper(fileType))
	}
	runes := []rune(cleaned)
	if len(runes) <= previewChars {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:previewChars])) + "..."
}

func stripPageMarkers(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if ingest.IsPageMarkerLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
