package model

type DocumentChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Ctime      int64  `json:"ctime"`
}
