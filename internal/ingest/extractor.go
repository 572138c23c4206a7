package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/docchat/internal/ai"
)

const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDoc  = "application/msword"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrPDFTooLarge asks the caller to retry with client-side extracted
	// text; server-side AI extraction is only viable for small PDFs.
	ErrPDFTooLarge = errors.New("pdf too large for server-side extraction, please retry with client-side text extraction")
)

// Config carries the extraction policy knobs; see config.IngestConfig for
// the tuned defaults.
type Config struct {
	MaxServerPDFBytes   int64
	BytesPerPage        int64
	PageSizeChars       int
	SinglePassPageLimit int
	BatchPages          int
	BatchDelay          time.Duration
}

// Input is one file to extract: the raw blob, its declared type and size,
// and optionally text already extracted client-side.
type Input struct {
	Data         []byte
	FileType     string
	FileSize     int64
	PreExtracted string
}

type Result struct {
	Text      string
	PageCount int
}

// Heartbeat lets long extractions report liveness and progress; the write
// lands on the document row before each outbound AI call.
type Heartbeat func(ctx context.Context, progress int, info string)

type Extractor struct {
	caller *ai.Caller
	cfg    Config
}

func NewExtractor(caller *ai.Caller, cfg Config) *Extractor {
	return &Extractor{caller: caller, cfg: cfg}
}

// Extract converts a raw file into plain/marked-up text plus a page count.
// usage accumulates one entry per AI call made on the way.
func (e *Extractor) Extract(ctx context.Context, in Input, usage *ai.Usage, hb Heartbeat) (*Result, error) {
	switch strings.ToLower(in.FileType) {
	case "txt":
		return e.extractTxt(in)
	case "pdf":
		return e.extractPDF(ctx, in, usage, hb)
	case "docx":
		return e.extractWord(ctx, in, usage, mimeDocx)
	case "doc":
		return e.extractWord(ctx, in, usage, mimeDoc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, in.FileType)
	}
}

func (e *Extractor) extractTxt(in Input) (*Result, error) {
	text := string(in.Data)
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("text file is not valid utf-8")
	}
	return &Result{
		Text:      text,
		PageCount: e.estimatePagesFromChars(len(text)),
	}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, in Input, usage *ai.Usage, hb Heartbeat) (*Result, error) {
	// Client-side extracted text short-circuits AI extraction entirely.
	if in.PreExtracted != "" {
		pages := MarkerPageTotal(in.PreExtracted)
		// Client extractors sometimes declare a total smaller than the
		// pages they actually emitted. The highest page number wins.
		if maxPage := MarkerMaxPage(in.PreExtracted); maxPage > pages {
			pages = maxPage
		}
		if pages == 0 {
			pages = e.estimatePagesFromChars(len(in.PreExtracted))
		}
		return &Result{Text: in.PreExtracted, PageCount: pages}, nil
	}
	if in.FileSize > e.cfg.MaxServerPDFBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrPDFTooLarge, in.FileSize, e.cfg.MaxServerPDFBytes)
	}

	estimatedPages := e.estimatePagesFromSize(in.FileSize)
	if estimatedPages <= e.cfg.SinglePassPageLimit {
		text, err := e.caller.GenerateWithFile(ctx, "pdf_extract", pdfExtractPrompt, in.Data, mimePDF, usage)
		if err != nil {
			return nil, fmt.Errorf("pdf extraction: %w", err)
		}
		pages := MarkerPageTotal(text)
		if pages == 0 {
			pages = estimatedPages
		}
		return &Result{Text: text, PageCount: pages}, nil
	}

	text, pages := e.extractPDFBatched(ctx, in.Data, estimatedPages, usage, hb)
	return &Result{Text: text, PageCount: pages}, nil
}

func (e *Extractor) extractWord(ctx context.Context, in Input, usage *ai.Usage, mimeType string) (*Result, error) {
	text, err := e.caller.GenerateWithFile(ctx, "docx_extract", docxExtractPrompt, in.Data, mimeType, usage)
	if err != nil {
		return nil, fmt.Errorf("word extraction: %w", err)
	}
	return &Result{
		Text:      text,
		PageCount: e.estimatePagesFromChars(len(text)),
	}, nil
}

func (e *Extractor) estimatePagesFromChars(chars int) int {
	pages := chars / e.cfg.PageSizeChars
	if pages < 1 {
		return 1
	}
	return pages
}

func (e *Extractor) estimatePagesFromSize(size int64) int {
	pages := int(size / e.cfg.BytesPerPage)
	if pages < 1 {
		return 1
	}
	return pages
}
