package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkerPageTotal(t *testing.T) {
	text := "=== PDF PAGE 1 of 12 ===\nfirst page\n=== PDF PAGE 2 of 12 ===\nsecond page"
	require.Equal(t, 12, MarkerPageTotal(text))
	require.Equal(t, 2, MarkerMaxPage(text))
}

func TestMarkerClientSideFormat(t *testing.T) {
	text := "=== PAGE 3 of 7 ===\nclient extracted content"
	require.Equal(t, 7, MarkerPageTotal(text))
	require.Equal(t, 3, MarkerMaxPage(text))
}

func TestMarkerNoMarkers(t *testing.T) {
	require.Equal(t, 0, MarkerPageTotal("plain text with no markers"))
	require.Equal(t, 0, MarkerMaxPage("plain text with no markers"))
}

func TestMarkerFormatStrict(t *testing.T) {
	// Near-miss formats must not match.
	for _, text := range []string{
		"== PDF PAGE 1 of 2 ==",
		"=== pdf page 1 of 2 ===",
		"=== PDF PAGE one of two ===",
		"=== PDF PAGE 1 / 2 ===",
	} {
		require.Equal(t, 0, MarkerPageTotal(text), text)
	}
}
