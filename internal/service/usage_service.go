package service

import (
	"context"

	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/repo"
)

type UsageService struct {
	usage *repo.UsageRepo
}

func NewUsageService(usage *repo.UsageRepo) *UsageService {
	return &UsageService{usage: usage}
}

type UsageReport struct {
	Logs              []model.UsageLog `json:"logs"`
	TotalInputTokens  int              `json:"total_input_tokens"`
	TotalOutputTokens int              `json:"total_output_tokens"`
	TotalCost         float64          `json:"total_cost"`
}

// Recent returns the latest usage rows with totals over the returned window.
func (s *UsageService) Recent(ctx context.Context, userID string, limit uint) (*UsageReport, error) {
	if limit == 0 {
		limit = 100
	}
	logs, err := s.usage.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	report := &UsageReport{Logs: logs}
	for _, log := range logs {
		report.TotalInputTokens += log.InputTokens
		report.TotalOutputTokens += log.OutputTokens
		report.TotalCost += log.CostEstimate
	}
	return report, nil
}
