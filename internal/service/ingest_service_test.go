package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/xxxsen/docchat/internal/ai"
	"github.com/xxxsen/docchat/internal/ingest"
)

func TestBuildPreview_ShortText(t *testing.T) {
	got := buildPreview("A short document body.", "txt")
	if got != "A short document body." {
		t.Fatalf("unexpected preview: %s", got)
	}
}

func TestBuildPreview_StripsMarkersAndTruncates(t *testing.T) {
	text := "=== PDF PAGE 1 of 2 ===\n" + strings.Repeat("content ", 100)
	got := buildPreview(text, "pdf")
	if strings.Contains(got, "=== PDF PAGE") {
		t.Fatalf("marker leaked into preview: %s", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long preview should be truncated: %s", got)
	}
	if len([]rune(got)) > previewChars+3 {
		t.Fatalf("preview too long: %d", len(got))
	}
}

func TestBuildPreview_EmptyFallsBackToTypeTag(t *testing.T) {
	got := buildPreview("=== PDF PAGE 1 of 1 ===\n", "pdf")
	if got != "[PDF document]" {
		t.Fatalf("unexpected preview: %s", got)
	}
}

func TestJobErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ingest.ErrPDFTooLarge, "client-side text extraction"},
		{ai.ErrQuotaExhausted, "quota exhausted"},
		{ai.ErrRateLimited, "rate limiting"},
		{ingest.ErrUnsupportedFileType, "Unsupported file type."},
		{errors.New("boom"), "Processing failed: boom"},
	}
	for _, c := range cases {
		got := jobErrorMessage(c.err)
		if !strings.Contains(got, c.want) {
			t.Fatalf("message for %v: got %q, want substring %q", c.err, got, c.want)
		}
	}
}

func TestJobErrorMessage_TruncatesLongErrors(t *testing.T) {
	err := errors.New(strings.Repeat("x", 1000))
	got := jobErrorMessage(err)
	if len(got) > 320 {
		t.Fatalf("message not truncated: %d chars", len(got))
	}
}

func TestFileTypeFromName(t *testing.T) {
	for name, want := range map[string]string{
		"report.PDF":    "pdf",
		"notes.txt":     "txt",
		"contract.docx": "docx",
		"legacy.doc":    "doc",
	} {
		got, err := fileTypeFromName(name)
		if err != nil || got != want {
			t.Fatalf("%s: got %s err %v", name, got, err)
		}
	}
	if _, err := fileTypeFromName("sheet.xlsx"); err == nil {
		t.Fatal("xlsx should be rejected")
	}
	if _, err := fileTypeFromName("noext"); err == nil {
		t.Fatal("missing extension should be rejected")
	}
}
