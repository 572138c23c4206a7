package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// SweepJob is the scheduled counterpart of the opportunistic sweep in
// DocumentService.List. Both paths share IngestService.SweepStuck, and the
// status-guarded update makes concurrent sweeps harmless.
type SweepJob struct {
	ingest *IngestService
}

func NewSweepJob(ingest *IngestService) *SweepJob {
	return &SweepJob{ingest: ingest}
}

func (j *SweepJob) Name() string {
	return "stuck_document_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	swept, err := j.ingest.SweepStuck(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		logutil.GetLogger(ctx).Info("swept stuck documents", zap.Int("count", swept))
	}
	return nil
}
