package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/pkg/dbutil"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) InsertBatch(ctx context.Context, logs []model.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(logs))
	for _, log := range logs {
		data = append(data, map[string]interface{}{
			"id":            log.ID,
			"user_id":       log.UserID,
			"document_id":   log.DocumentID,
			"operation":     log.Operation,
			"input_tokens":  log.InputTokens,
			"output_tokens": log.OutputTokens,
			"cost_estimate": log.CostEstimate,
			"ctime":         log.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("usage_logs", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UsageRepo) ListRecent(ctx context.Context, userID string, limit uint) ([]model.UsageLog, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
		"_limit":   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("usage_logs", where,
		[]string{"id", "user_id", "document_id", "operation", "input_tokens", "output_tokens", "cost_estimate", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := make([]model.UsageLog, 0)
	for rows.Next() {
		var log model.UsageLog
		var docID sql.NullString
		if err := rows.Scan(&log.ID, &log.UserID, &docID, &log.Operation, &log.InputTokens, &log.OutputTokens, &log.CostEstimate, &log.Ctime); err != nil {
			return nil, err
		}
		if docID.Valid {
			log.DocumentID = docID.String
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
