package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/docchat/internal/ai"
	"go.uber.org/zap"
)

// extractionPhaseCap is the progress ceiling reserved for the extraction
// phase; chunking and persistence fill the remaining 80..100 band.
const extractionPhaseCap = 80

func pageBatchCount(totalPages int, batchPages int) int {
	return (totalPages + batchPages - 1) / batchPages
}

// extractPDFBatched walks the document in fixed page windows, one AI call
// per window. A failed window is substituted with a placeholder so the rest
// of the document still comes through; the batched path never fails as a
// whole. The first successful window may carry authoritative page markers,
// in which case the size-based page estimate is replaced and the remaining
// batch count recomputed.
func (e *Extractor) extractPDFBatched(ctx context.Context, data []byte, estimatedPages int, usage *ai.Usage, hb Heartbeat) (string, int) {
	logger := logutil.GetLogger(ctx)
	totalPages := estimatedPages
	batches := pageBatchCount(totalPages, e.cfg.BatchPages)
	parts := make([]string, 0, batches)
	for index := 0; index < batches; index++ {
		startPage := index*e.cfg.BatchPages + 1
		endPage := min((index+1)*e.cfg.BatchPages, totalPages)
		if hb != nil {
			progress := extractionPhaseCap * index / batches
			hb(ctx, progress, fmt.Sprintf("Extracting pages %d-%d of %d", startPage, endPage, totalPages))
		}
		text, err := e.caller.GenerateWithFile(ctx, "pdf_batch_extract", pdfBatchPrompt(startPage, endPage, totalPages), data, mimePDF, usage)
		if err != nil {
			logger.Error("pdf batch extraction failed, inserting placeholder",
				zap.Int("start_page", startPage), zap.Int("end_page", endPage), zap.Error(err))
			parts = append(parts, fmt.Sprintf("[Error extracting pages %d-%d]", startPage, endPage))
		} else {
			parts = append(parts, text)
			if index == 0 {
				if total := MarkerPageTotal(text); total > 0 && total != totalPages {
					logger.Info("page total corrected from first batch markers",
						zap.Int("estimated", totalPages), zap.Int("actual", total))
					totalPages = total
					batches = pageBatchCount(totalPages, e.cfg.BatchPages)
				}
			}
		}
		if index+1 < batches && e.cfg.BatchDelay > 0 {
			sleepCtx(ctx, e.cfg.BatchDelay)
		}
	}
	return strings.Join(parts, "\n\n"), totalPages
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
