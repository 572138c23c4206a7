package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
)

var documentFields = []string{
	"id", "user_id", "name", "file_key", "file_type", "file_size",
	"status", "error_message", "processing_started_at", "processing_progress",
	"processing_info", "page_count", "content_preview", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":                    doc.ID,
		"user_id":               doc.UserID,
		"name":                  doc.Name,
		"file_key":              doc.FileKey,
		"file_type":             doc.FileType,
		"file_size":             doc.FileSize,
		"status":                doc.Status,
		"processing_progress":   doc.ProcessingProgress,
		"processing_info":       doc.ProcessingInfo,
		"page_count":            doc.PageCount,
		"content_preview":       doc.ContentPreview,
		"ctime":                 doc.Ctime,
		"mtime":                 doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

// ListRecentReady returns the user's most recently finished documents, used
// as retrieval candidates when the caller names no document ids.
func (r *DocumentRepo) ListRecentReady(ctx context.Context, userID string, limit uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"status":   model.DocumentStatusReady,
		"_orderby": "mtime desc",
		"_limit":   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

func (r *DocumentRepo) ListReadyByIDs(ctx context.Context, userID string, docIDs []string) ([]model.Document, error) {
	if len(docIDs) == 0 {
		return []model.Document{}, nil
	}
	ids := make([]interface{}, 0, len(docIDs))
	for _, id := range docIDs {
		ids = append(ids, id)
	}
	where := map[string]interface{}{
		"user_id":     userID,
		"status":      model.DocumentStatusReady,
		"_custom_ids": builder.In{"id": ids},
		"_orderby":    "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryDocuments(ctx, sqlStr, args)
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// MarkProcessing moves a pending document into processing, stamping
// processing_started_at and zeroing progress.
func (r *DocumentRepo) MarkProcessing(ctx context.Context, docID string, now int64) error {
	const query = `
		UPDATE documents
		SET status = $1, processing_started_at = $2, processing_progress = 0,
			processing_info = $3, error_message = NULL, mtime = $2
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, model.DocumentStatusProcessing, now, "Starting processing", docID)
	return err
}

// UpdateProgress is the job heartbeat: mtime moves forward on every write so
// the sweeper can tell a slow job from a dead one.
func (r *DocumentRepo) UpdateProgress(ctx context.Context, docID string, progress int, info string, now int64) error {
	const query = `
		UPDATE documents
		SET processing_progress = $1, processing_info = $2, mtime = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, progress, info, now, docID)
	return err
}

func (r *DocumentRepo) MarkReady(ctx context.Context, docID, preview string, pageCount int, now int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_message = NULL, processing_progress = 100,
			processing_info = $2, content_preview = $3, page_count = $4, mtime = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, model.DocumentStatusReady, "Completed", preview, pageCount, now, docID)
	return err
}

func (r *DocumentRepo) MarkError(ctx context.Context, docID, message string, now int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_message = $2, processing_info = $3, mtime = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, model.DocumentStatusError, message, "Failed", now, docID)
	return err
}

// ResetToPending re-enters the pending state for an explicit reprocess. Only
// terminal documents may re-enter; a document mid-processing is left alone.
func (r *DocumentRepo) ResetToPending(ctx context.Context, userID, docID string, now int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_message = NULL, processing_started_at = NULL,
			processing_progress = 0, processing_info = '', mtime = $2
		WHERE id = $3 AND user_id = $4 AND status IN ($5, $6)
	`
	result, err := r.db.ExecContext(ctx, query, model.DocumentStatusPending, now, docID, userID,
		model.DocumentStatusReady, model.DocumentStatusError)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrConflict
	}
	return nil
}

// ListStuck selects non-terminal documents whose liveness indicator
// (processing_started_at if stamped, else mtime) is older than cutoff.
func (r *DocumentRepo) ListStuck(ctx context.Context, cutoff int64) ([]model.Document, error) {
	const query = `
		SELECT id, user_id, name, file_key, file_type, file_size,
			status, error_message, processing_started_at, processing_progress,
			processing_info, page_count, content_preview, ctime, mtime
		FROM documents
		WHERE status IN ($1, $2) AND COALESCE(processing_started_at, mtime) < $3
	`
	rows, err := r.db.QueryContext(ctx, query, model.DocumentStatusPending, model.DocumentStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// ForceError is the sweeper's transition. The status guard makes it a no-op
// for documents that finished between selection and update.
func (r *DocumentRepo) ForceError(ctx context.Context, docID, message string, now int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_message = $2, processing_progress = 0,
			processing_info = '', mtime = $3
		WHERE id = $4 AND status IN ($5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, model.DocumentStatusError, message, now, docID,
		model.DocumentStatusPending, model.DocumentStatusProcessing)
	return err
}

func (r *DocumentRepo) queryDocuments(ctx context.Context, sqlStr string, args []interface{}) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var errMsg sql.NullString
	var startedAt sql.NullInt64
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Name, &doc.FileKey, &doc.FileType, &doc.FileSize,
		&doc.Status, &errMsg, &startedAt, &doc.ProcessingProgress,
		&doc.ProcessingInfo, &doc.PageCount, &doc.ContentPreview, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		doc.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		v := startedAt.Int64
		doc.ProcessingStartedAt = &v
	}
	return &doc, nil
}
