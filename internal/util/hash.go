package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey hashes parts with a NUL between them, so ("ab", "c") and ("a", "bc")
// differ.
func HashKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
