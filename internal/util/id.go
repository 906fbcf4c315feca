package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character hex id used for every persisted entity.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
