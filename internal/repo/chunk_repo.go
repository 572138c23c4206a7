package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/pkg/dbutil"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceAll swaps a document's chunk set atomically: delete-all then
// insert-all in one transaction. Chunks are never patched incrementally.
func (r *ChunkRepo) ReplaceAll(ctx context.Context, docID string, chunks []model.DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID); err != nil {
		return err
	}
	if len(chunks) > 0 {
		data := make([]map[string]interface{}, 0, len(chunks))
		for _, chunk := range chunks {
			data = append(data, map[string]interface{}{
				"id":          chunk.ID,
				"document_id": chunk.DocumentID,
				"user_id":     chunk.UserID,
				"chunk_index": chunk.ChunkIndex,
				"content":     chunk.Content,
				"ctime":       chunk.Ctime,
			})
		}
		sqlStr, args, err := builder.BuildInsert("document_chunks", data)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string, limit uint) ([]model.DocumentChunk, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_orderby":    "chunk_index asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	sqlStr, args, err := builder.BuildSelect("document_chunks", where,
		[]string{"id", "document_id", "user_id", "chunk_index", "content", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryChunks(ctx, sqlStr, args)
}

func (r *ChunkRepo) CountByDocuments(ctx context.Context, docIDs []string) (map[string]int, error) {
	result := make(map[string]int)
	if len(docIDs) == 0 {
		return result, nil
	}
	query := `SELECT document_id, COUNT(1) FROM document_chunks WHERE document_id IN (?) GROUP BY document_id`
	query, args, err := sqlx.In(query, docIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var docID string
		var count int
		if err := rows.Scan(&docID, &count); err != nil {
			return nil, err
		}
		result[docID] = count
	}
	return result, rows.Err()
}

func (r *ChunkRepo) queryChunks(ctx context.Context, sqlStr string, args []interface{}) ([]model.DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.DocumentChunk, 0)
	for rows.Next() {
		var chunk model.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.ChunkIndex, &chunk.Content, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
