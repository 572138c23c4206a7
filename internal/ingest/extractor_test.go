package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/docchat/internal/ai"
)

type stubProvider struct {
	fileFunc  func(prompt string, data []byte, mimeType string) (string, error)
	fileCalls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubProvider) GenerateWithFile(ctx context.Context, model string, prompt string, data []byte, mimeType string) (string, error) {
	s.fileCalls++
	return s.fileFunc(prompt, data, mimeType)
}

func testConfig() Config {
	return Config{
		MaxServerPDFBytes:   2 * 1024 * 1024,
		BytesPerPage:        80 * 1024,
		PageSizeChars:       2000,
		SinglePassPageLimit: 15,
		BatchPages:          10,
		BatchDelay:          0,
	}
}

func testExtractor(p *stubProvider) *Extractor {
	caller := ai.NewCaller(p, "test-model", time.Second, 1, time.Millisecond)
	return NewExtractor(caller, testConfig())
}

func TestExtractTxt(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		Data:     []byte("hello world"),
		FileType: "txt",
		FileSize: 11,
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Text)
	require.Equal(t, 1, res.PageCount)
	require.Empty(t, usage.Entries)
}

func TestExtractTxtMultiPageEstimate(t *testing.T) {
	e := testExtractor(&stubProvider{})
	text := strings.Repeat("a", 6500)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		Data:     []byte(text),
		FileType: "txt",
		FileSize: int64(len(text)),
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.PageCount)
}

func TestExtractTxtInvalidUTF8(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	_, err := e.Extract(context.Background(), Input{
		Data:     []byte{0xff, 0xfe, 0xfd},
		FileType: "txt",
		FileSize: 3,
	}, &usage, nil)
	require.Error(t, err)
}

func TestExtractUnsupportedType(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	_, err := e.Extract(context.Background(), Input{FileType: "xlsx"}, &usage, nil)
	require.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestExtractPDFPreExtracted(t *testing.T) {
	stub := &stubProvider{fileFunc: func(string, []byte, string) (string, error) {
		t.Fatal("pre-extracted text must not trigger an AI call")
		return "", nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType:     "pdf",
		FileSize:     5 * 1024 * 1024,
		PreExtracted: "=== PAGE 1 of 4 ===\nsome text\n=== PAGE 4 of 4 ===\nlast page",
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 4, res.PageCount)
	require.Zero(t, stub.fileCalls)
}

func TestExtractPDFPreExtractedUndercountedTotal(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType:     "pdf",
		FileSize:     1024,
		PreExtracted: "=== PAGE 1 of 2 ===\nfirst\n=== PAGE 5 of 2 ===\nstraggler",
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 5, res.PageCount)
}

func TestExtractPDFPreExtractedNoMarkers(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType:     "pdf",
		FileSize:     1024,
		PreExtracted: strings.Repeat("b", 4100),
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.PageCount)
}

func TestExtractPDFTooLarge(t *testing.T) {
	e := testExtractor(&stubProvider{})
	var usage ai.Usage
	_, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: 3 * 1024 * 1024,
		Data:     []byte("%PDF"),
	}, &usage, nil)
	require.ErrorIs(t, err, ErrPDFTooLarge)
}

func TestExtractPDFSinglePass(t *testing.T) {
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		require.Equal(t, mimePDF, mimeType)
		require.NotContains(t, prompt, "Only transcribe pages")
		return "=== PDF PAGE 1 of 2 ===\nfirst\n=== PDF PAGE 2 of 2 ===\nsecond", nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: 100 * 1024,
		Data:     []byte("%PDF"),
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stub.fileCalls)
	require.Equal(t, 2, res.PageCount)
	require.Len(t, usage.Entries, 1)
	require.Equal(t, "pdf_extract", usage.Entries[0].Operation)
}

func TestExtractDocx(t *testing.T) {
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		require.Equal(t, mimeDocx, mimeType)
		return "# Heading\n\n" + strings.Repeat("body text ", 250), nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType: "docx",
		FileSize: 2048,
		Data:     []byte("PK"),
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stub.fileCalls)
	require.Greater(t, res.PageCount, 0)
	require.Contains(t, res.Text, "# Heading")
}

func TestExtractDocFallsBackToLegacyMime(t *testing.T) {
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		require.Equal(t, mimeDoc, mimeType)
		return "legacy document body with enough text to count", nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	_, err := e.Extract(context.Background(), Input{
		FileType: "doc",
		FileSize: 2048,
		Data:     []byte{0xd0, 0xcf},
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stub.fileCalls)
}

func TestExtractPDFSinglePassFailure(t *testing.T) {
	stub := &stubProvider{fileFunc: func(string, []byte, string) (string, error) {
		return "", fmt.Errorf("model rejected the request")
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	_, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: 100 * 1024,
		Data:     []byte("%PDF"),
	}, &usage, nil)
	require.Error(t, err)
}
