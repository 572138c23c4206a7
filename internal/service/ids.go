package service

import (
	"crypto/rand"
	"encoding/hex"
)

// newID returns a 32-char hex identifier, used for documents, chunks and
// usage rows alike.
func newID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
