package plife

import (
	"crypto/rand"
	"encoding/hex"
	"math"
)

// NewRandomID returns a random 16 character hex identifier, used for worlds
// created without an explicit ID.
func NewRandomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
