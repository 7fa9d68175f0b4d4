package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// FingerprintID returns the 16-hex-char fingerprint of a chunk: the first 64
// bits of SHA-256 over (filePath || lineStart || lineEnd). It is stable
// across re-indexing of unchanged code and is a pure function of its inputs.
func FingerprintID(filePath string, lineStart, lineEnd int) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte(strconv.Itoa(lineStart)))
	h.Write([]byte(strconv.Itoa(lineEnd)))

	sum := h.Sum(nil)

	return hex.EncodeToString(sum[:8])
}
