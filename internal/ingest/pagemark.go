package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Page markers are a tagged-text protocol threaded through extraction and
// chunking. The wire formats must be preserved byte-for-byte:
//
//	=== PDF PAGE <n> of <total> ===   (AI-assisted PDF extraction)
//	=== PAGE <n> of <total> ===       (client-side extracted PDF text)
var pageMarkerRe = regexp.MustCompile(`=== (?:PDF )?PAGE (\d+) of (\d+) ===`)

// MarkerPageTotal returns the highest page total recorded by any marker in
// text, or 0 when no marker carries one.
func MarkerPageTotal(text string) int {
	total := 0
	for _, match := range pageMarkerRe.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.Atoi(match[2]); err == nil && v > total {
			total = v
		}
	}
	return total
}

// IsPageMarkerLine reports whether line is nothing but a page marker,
// ignoring surrounding whitespace.
func IsPageMarkerLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	loc := pageMarkerRe.FindStringIndex(trimmed)
	return loc != nil && loc[0] == 0 && loc[1] == len(trimmed)
}

// MarkerMaxPage returns the highest page number seen in any marker.
func MarkerMaxPage(text string) int {
	max := 0
	for _, match := range pageMarkerRe.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.Atoi(match[1]); err == nil && v > max {
			max = v
		}
	}
	return max
}
