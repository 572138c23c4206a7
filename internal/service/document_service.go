package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docchat/internal/filestore"
	"github.com/xxxsen/docchat/internal/model"
	appErr "github.com/xxxsen/docchat/internal/pkg/errors"
	"github.com/xxxsen/docchat/internal/pkg/timeutil"
	"github.com/xxxsen/docchat/internal/repo"
)

type DocumentService struct {
	docs           *repo.DocumentRepo
	chunks         *repo.ChunkRepo
	store          filestore.Store
	ingest         *IngestService
	maxUploadBytes int64
}

func NewDocumentService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, store filestore.Store,
	ingest *IngestService, maxUploadBytes int64) *DocumentService {
	return &DocumentService{
		docs:           docs,
		chunks:         chunks,
		store:          store,
		ingest:         ingest,
		maxUploadBytes: maxUploadBytes,
	}
}

// DocumentView is a document row plus its chunk count, which lives in a
// different table.
type DocumentView struct {
	model.Document
	ChunkCount int `json:"chunk_count"`
}

type UploadInput struct {
	Name         string
	Size         int64
	Reader       io.Reader
	PreExtracted string
}

// Upload stores the blob, creates the pending document row and kicks off
// the ingest job. The job runs detached; the response carries the pending
// document immediately.
func (s *DocumentService) Upload(ctx context.Context, userID string, in UploadInput) (*model.Document, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", appErr.ErrInvalid)
	}
	fileType, err := fileTypeFromName(name)
	if err != nil {
		return nil, err
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}
	if in.Size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", appErr.ErrFileTooLarge, s.maxUploadBytes)
	}

	data, err := io.ReadAll(io.LimitReader(in.Reader, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", appErr.ErrFileTooLarge, s.maxUploadBytes)
	}

	fileKey := newID() + "." + fileType
	if err := s.store.Save(ctx, fileKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:       newID(),
		UserID:   userID,
		Name:     name,
		FileKey:  fileKey,
		FileType: fileType,
		FileSize: int64(len(data)),
		Status:   model.DocumentStatusPending,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.ingest.Enqueue(doc, data, in.PreExtracted)
	return doc, nil
}

// List returns the user's documents, newest first. Stuck jobs are swept
// opportunistically first so a poll after a crashed worker still converges
// to a terminal status.
func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]DocumentView, error) {
	if _, err := s.ingest.SweepStuck(ctx); err != nil {
		logutil.GetLogger(ctx).Warn("opportunistic sweep failed", zap.Error(err))
	}
	docs, err := s.docs.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.attachChunkCounts(ctx, docs)
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*DocumentView, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	views, err := s.attachChunkCounts(ctx, []model.Document{*doc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes the row (chunks cascade) and then the stored blob. A blob
// removal failure is logged, not surfaced; the row is already gone.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("delete stored blob failed",
			zap.String("document_id", docID),
			zap.String("file_key", doc.FileKey),
			zap.Error(err),
		)
	}
	return nil
}

func (s *DocumentService) attachChunkCounts(ctx context.Context, docs []model.Document) ([]DocumentView, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	counts, err := s.chunks.CountByDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, DocumentView{Document: doc, ChunkCount: counts[doc.ID]})
	}
	return views, nil
}

func fileTypeFromName(name string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch ext {
	case model.FileTypePDF, model.FileTypeDocx, model.FileTypeDoc, model.FileTypeTxt:
		return ext, nil
	default:
		return "", fmt.Errorf("%w: .%s", appErr.ErrUnsupportedType, ext)
	}
}
