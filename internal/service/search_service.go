package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/docchat/internal/config"
	"github.com/xxxsen/docchat/internal/model"
	"github.com/xxxsen/docchat/internal/repo"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

type SearchService struct {
	docs   *repo.DocumentRepo
	chunks *repo.ChunkRepo
	cfg    config.SearchConfig
	cache  *expirable.LRU[string, []model.DocumentChunk]
}

func NewSearchService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, cfg config.SearchConfig) *SearchService {
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	return &SearchService{
		docs:   docs,
		chunks: chunks,
		cfg:    cfg,
		cache:  expirable.NewLRU[string, []model.DocumentChunk](cfg.CacheSize, nil, ttl),
	}
}

type ContextSource struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
}

type ChatContext struct {
	Context  string          `json:"context"`
	Sources  []ContextSource `json:"sources"`
	Keywords []string        `json:"keywords"`
}

type scoredChunk struct {
	chunk   model.DocumentChunk
	docName string
	score   int
}

// BuildContext assembles the retrieval context for a chat turn: candidate
// documents are the requested ids (ready ones only) or the most recently
// finished documents, their chunks are scored by keyword overlap with the
// query, and the best chunks are packed into a bounded context block.
func (s *SearchService) BuildContext(ctx context.Context, userID, query string, docIDs []string) (*ChatContext, error) {
	docs, err := s.candidates(ctx, userID, docIDs)
	if err != nil {
		return nil, err
	}
	keywords := Keywords(query)
	result := &ChatContext{Sources: []ContextSource{}, Keywords: keywords}
	if len(docs) == 0 {
		return result, nil
	}

	var scored []scoredChunk
	for _, doc := range docs {
		chunks, err := s.documentChunks(ctx, doc)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			scored = append(scored, scoredChunk{
				chunk:   chunk,
				docName: doc.Name,
				score:   scoreChunk(chunk.Content, keywords),
			})
		}
	}

	selected := selectChunks(scored, s.cfg.MaxChunks)
	s.packContext(result, selected)
	return result, nil
}

func (s *SearchService) candidates(ctx context.Context, userID string, docIDs []string) ([]model.Document, error) {
	if len(docIDs) > 0 {
		return s.docs.ListReadyByIDs(ctx, userID, docIDs)
	}
	return s.docs.ListRecentReady(ctx, userID, uint(s.cfg.RecentDocLimit))
}

// documentChunks serves chunk sets from an in-process cache. The key folds
// in mtime, so reprocessing a document naturally invalidates its entry.
func (s *SearchService) documentChunks(ctx context.Context, doc model.Document) ([]model.DocumentChunk, error) {
	key := fmt.Sprintf("%s|%d", doc.ID, doc.Mtime)
	if chunks, ok := s.cache.Get(key); ok {
		return chunks, nil
	}
	chunks, err := s.chunks.ListByDocument(ctx, doc.ID, uint(s.cfg.MaxChunksPerDoc))
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, chunks)
	return chunks, nil
}

// selectChunks discards zero-score chunks and ranks the rest by score.
// The sort is stable, so ties keep document order and chunk order, which
// makes retrieval deterministic for identical inputs. A query that matches
// nothing yields an empty selection.
func selectChunks(scored []scoredChunk, maxChunks int) []scoredChunk {
	matched := make([]scoredChunk, 0, len(scored))
	for _, sc := range scored {
		if sc.score > 0 {
			matched = append(matched, sc)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	if len(matched) > maxChunks {
		matched = matched[:maxChunks]
	}
	return matched
}

// packContext greedily appends chunks until the character budget is hit.
// At least one chunk always goes in, truncated if it alone exceeds the
// budget.
func (s *SearchService) packContext(result *ChatContext, selected []scoredChunk) {
	var sb strings.Builder
	for _, sc := range selected {
		block := fmt.Sprintf("[Document: %s, part %d]\n%s", sc.docName, sc.chunk.ChunkIndex+1, sc.chunk.Content)
		if sb.Len() > 0 {
			if sb.Len()+len(block)+2 > s.cfg.MaxContextChars {
				break
			}
			sb.WriteString("\n\n")
		} else if len(block) > s.cfg.MaxContextChars {
			block = block[:s.cfg.MaxContextChars]
		}
		sb.WriteString(block)
		result.Sources = append(result.Sources, ContextSource{
			DocumentID:   sc.chunk.DocumentID,
			DocumentName: sc.docName,
			ChunkIndex:   sc.chunk.ChunkIndex,
		})
	}
	result.Context = sb.String()
}

// Keywords lowercases the query and keeps alphanumeric words of three or
// more characters, deduplicated in order.
func Keywords(query string) []string {
	words := wordRe.FindAllString(strings.ToLower(query), -1)
	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < 3 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

// scoreChunk counts how many keywords appear as substrings of the
// lowercased content.
func scoreChunk(content string, keywords []string) int {
	score := 0
	lowered := strings.ToLower(content)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			score++
		}
	}
	return score
}
