package service

import (
	"strings"
	"testing"

	"github.com/xxxsen/docchat/internal/config"
	"github.com/xxxsen/docchat/internal/model"
)

func TestKeywords(t *testing.T) {
	got := Keywords("What does the Warranty section say about water damage?")
	want := []string{"warranty", "section", "say", "water", "damage"}
	if len(got) != len(want) {
		t.Fatalf("unexpected keywords: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keyword %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestKeywords_Dedup(t *testing.T) {
	got := Keywords("refund refund REFUND policy")
	if len(got) != 2 || got[0] != "refund" || got[1] != "policy" {
		t.Fatalf("unexpected keywords: %v", got)
	}
}

func TestKeywords_Empty(t *testing.T) {
	if got := Keywords("is it a"); len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}

func TestKeywords_KeepsCommonWords(t *testing.T) {
	got := Keywords("what happens when")
	want := []string{"what", "happens", "when"}
	if len(got) != len(want) {
		t.Fatalf("unexpected keywords: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keyword %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScoreChunk(t *testing.T) {
	content := "The warranty covers water damage. Warranty claims need a receipt."
	if got := scoreChunk(content, []string{"warranty", "damage", "refund"}); got != 2 {
		t.Fatalf("score: got %d, want 2", got)
	}
}

func TestSelectChunks_RanksByScore(t *testing.T) {
	scored := []scoredChunk{
		{chunk: model.DocumentChunk{ChunkIndex: 0}, score: 1},
		{chunk: model.DocumentChunk{ChunkIndex: 1}, score: 3},
		{chunk: model.DocumentChunk{ChunkIndex: 2}, score: 2},
	}
	selected := selectChunks(scored, 10)
	if selected[0].chunk.ChunkIndex != 1 || selected[1].chunk.ChunkIndex != 2 || selected[2].chunk.ChunkIndex != 0 {
		t.Fatalf("unexpected order: %v", selected)
	}
}

func TestSelectChunks_StableOnTies(t *testing.T) {
	scored := []scoredChunk{
		{chunk: model.DocumentChunk{ChunkIndex: 0}, score: 1},
		{chunk: model.DocumentChunk{ChunkIndex: 1}, score: 1},
		{chunk: model.DocumentChunk{ChunkIndex: 2}, score: 1},
	}
	selected := selectChunks(scored, 2)
	if selected[0].chunk.ChunkIndex != 0 || selected[1].chunk.ChunkIndex != 1 {
		t.Fatalf("tie order not preserved: %v", selected)
	}
}

func TestSelectChunks_EmptyWhenNothingMatches(t *testing.T) {
	scored := []scoredChunk{
		{chunk: model.DocumentChunk{ChunkIndex: 0}},
		{chunk: model.DocumentChunk{ChunkIndex: 1}},
	}
	if selected := selectChunks(scored, 2); len(selected) != 0 {
		t.Fatalf("zero-score chunks must be discarded, got %v", selected)
	}
}

func TestPackContext_RespectsBudget(t *testing.T) {
	svc := &SearchService{cfg: config.SearchConfig{MaxContextChars: 300}}
	selected := []scoredChunk{
		{chunk: model.DocumentChunk{DocumentID: "d1", ChunkIndex: 0, Content: strings.Repeat("a", 200)}, docName: "manual.pdf"},
		{chunk: model.DocumentChunk{DocumentID: "d1", ChunkIndex: 1, Content: strings.Repeat("b", 200)}, docName: "manual.pdf"},
	}
	result := &ChatContext{Sources: []ContextSource{}}
	svc.packContext(result, selected)
	if len(result.Sources) != 1 {
		t.Fatalf("expected one source within budget, got %d", len(result.Sources))
	}
	if !strings.Contains(result.Context, "[Document: manual.pdf, part 1]") {
		t.Fatalf("context header missing: %s", result.Context)
	}
}

func TestPackContext_TruncatesOversizedFirstChunk(t *testing.T) {
	svc := &SearchService{cfg: config.SearchConfig{MaxContextChars: 100}}
	selected := []scoredChunk{
		{chunk: model.DocumentChunk{DocumentID: "d1", ChunkIndex: 0, Content: strings.Repeat("x", 500)}, docName: "big.txt"},
	}
	result := &ChatContext{Sources: []ContextSource{}}
	svc.packContext(result, selected)
	if len(result.Context) != 100 {
		t.Fatalf("expected truncation to 100 chars, got %d", len(result.Context))
	}
	if len(result.Sources) != 1 {
		t.Fatalf("truncated chunk still counts as a source")
	}
}
