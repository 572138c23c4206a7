package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/docchat/internal/ai"
)

// 25 estimated pages with a 10-page batch size gives 3 batches.
const batchedPDFSize = 25 * 80 * 1024

func TestExtractPDFBatched(t *testing.T) {
	var prompts []string
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		prompts = append(prompts, prompt)
		n := len(prompts)
		return fmt.Sprintf("=== PDF PAGE %d of 25 ===\nbatch %d content", (n-1)*10+1, n), nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	var beats []int
	res, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: batchedPDFSize,
		Data:     []byte("%PDF"),
	}, &usage, func(ctx context.Context, progress int, info string) {
		beats = append(beats, progress)
		require.Contains(t, info, "Extracting pages")
	})
	require.NoError(t, err)
	require.Equal(t, 3, stub.fileCalls)
	require.Equal(t, 25, res.PageCount)
	require.Contains(t, prompts[0], "pages 1 through 10")
	require.Contains(t, prompts[1], "pages 11 through 20")
	require.Contains(t, prompts[2], "pages 21 through 25")
	require.Contains(t, res.Text, "batch 1 content")
	require.Contains(t, res.Text, "batch 3 content")
	// Heartbeats stay inside the extraction progress band and ascend.
	require.Equal(t, []int{0, 26, 53}, beats)
	require.Len(t, usage.Entries, 3)
}

func TestExtractPDFBatchedPartialFailure(t *testing.T) {
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		if strings.Contains(prompt, "pages 11 through 20") {
			return "", errors.New("model overloaded")
		}
		return "=== PDF PAGE 1 of 25 ===\nrecovered content", nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: batchedPDFSize,
		Data:     []byte("%PDF"),
	}, &usage, nil)
	require.NoError(t, err)
	require.Equal(t, 3, stub.fileCalls)
	require.Contains(t, res.Text, "[Error extracting pages 11-20]")
	require.Contains(t, res.Text, "recovered content")
}

func TestExtractPDFBatchedTotalOverride(t *testing.T) {
	stub := &stubProvider{fileFunc: func(prompt string, data []byte, mimeType string) (string, error) {
		// The document turns out to be 12 pages, not the 25 the file
		// size suggested.
		return "=== PDF PAGE 1 of 12 ===\nactual content", nil
	}}
	e := testExtractor(stub)
	var usage ai.Usage
	res, err := e.Extract(context.Background(), Input{
		FileType: "pdf",
		FileSize: batchedPDFSize,
		Data:     []byte("%PDF"),
	}, &usage, nil)
	require.NoError(t, err)
	// Batch count shrinks after the first batch reports the real total.
	require.Equal(t, 2, stub.fileCalls)
	require.Equal(t, 12, res.PageCount)
}
