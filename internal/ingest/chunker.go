package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkConfig sizes the retrieval chunks. Target size is expressed as a
// token budget times a fixed chars-per-token divisor.
type ChunkConfig struct {
	TargetTokens  int
	OverlapTokens int
	CharsPerToken int
	MinChunkChars int
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetTokens:  400,
		OverlapTokens: 80,
		CharsPerToken: 4,
		MinChunkChars: 50,
	}
}

// Abbreviations whose trailing period must not be mistaken for a sentence
// end. Masked before splitting, restored after.
var protectedAbbreviations = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.", "St.",
	"vs.", "etc.", "e.g.", "i.e.", "Inc.", "Ltd.", "Co.", "No.", "Fig.",
}

const (
	abbrevMask = "\x00"
	markerMask = "\x01"
)

var (
	sentenceEndRe  = regexp.MustCompile(`[.!?]["')\]]*(\s+)`)
	maskedMarkerRe = regexp.MustCompile("\x01([0-9]+)\x01")
)

// SplitChunks splits extracted text into overlapping, sentence-bounded
// chunks. Page markers pass through whole; they are masked as atomic tokens
// during sentence splitting and restored afterwards, so a marker can never
// be fragmented across a chunk boundary.
func SplitChunks(text string, cfg ChunkConfig) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.TargetTokens <= 0 || cfg.CharsPerToken <= 0 {
		cfg = DefaultChunkConfig()
	}

	masked, markers := maskPageMarkers(text)
	masked = maskAbbreviations(masked)
	sentences := splitSentences(masked)

	targetChars := cfg.TargetTokens * cfg.CharsPerToken
	overlapChars := cfg.OverlapTokens * cfg.CharsPerToken

	var chunks []string
	var current []string
	currentLen := 0
	for _, sentence := range sentences {
		if currentLen > 0 && currentLen+len(sentence)+1 > targetChars {
			chunks = append(chunks, strings.Join(current, " "))
			current, currentLen = overlapTail(current, overlapChars)
		}
		current = append(current, sentence)
		currentLen += len(sentence) + 1
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		restored := restorePageMarkers(restoreAbbreviations(chunk), markers)
		if len(restored) < cfg.MinChunkChars {
			continue
		}
		out = append(out, restored)
	}
	return out
}

// overlapTail seeds the next chunk with the most recent sentences of the
// previous one, up to the overlap budget, so information spanning a chunk
// boundary stays searchable from either side.
func overlapTail(sentences []string, overlapChars int) ([]string, int) {
	if len(sentences) <= 1 {
		return nil, 0
	}
	var tail []string
	length := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		if length+len(sentences[i]) > overlapChars {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		length += len(sentences[i]) + 1
	}
	return tail, length
}

// splitSentences cuts masked text at punctuation followed by a capital
// letter, or punctuation followed by a newline. Anything else (lowercase
// continuation, digits, abbreviations already masked) is not a boundary.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(text, -1) {
		wsStart, wsEnd := loc[2], loc[3]
		if !isSentenceBoundary(text, wsStart, wsEnd) {
			continue
		}
		if sentence := strings.TrimSpace(text[start:wsStart]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = wsEnd
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSentenceBoundary(text string, wsStart, wsEnd int) bool {
	if strings.Contains(text[wsStart:wsEnd], "\n") {
		return true
	}
	if wsEnd >= len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[wsEnd:])
	return unicode.IsUpper(next) || next == '\x01'
}

func maskPageMarkers(text string) (string, []string) {
	var markers []string
	masked := pageMarkerRe.ReplaceAllStringFunc(text, func(marker string) string {
		markers = append(markers, marker)
		return markerMask + strconv.Itoa(len(markers)-1) + markerMask
	})
	return masked, markers
}

func restorePageMarkers(text string, markers []string) string {
	if len(markers) == 0 {
		return text
	}
	return maskedMarkerRe.ReplaceAllStringFunc(text, func(token string) string {
		idx, err := strconv.Atoi(strings.Trim(token, markerMask))
		if err != nil || idx < 0 || idx >= len(markers) {
			return token
		}
		return markers[idx]
	})
}

func maskAbbreviations(text string) string {
	for _, abbrev := range protectedAbbreviations {
		masked := strings.TrimSuffix(abbrev, ".") + abbrevMask
		text = strings.ReplaceAll(text, abbrev, masked)
	}
	return text
}

func restoreAbbreviations(text string) string {
	return strings.ReplaceAll(text, abbrevMask, ".")
}
