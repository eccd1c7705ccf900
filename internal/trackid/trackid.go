// Package trackid computes the deterministic fingerprint that identifies a
// generation request and doubles as its cache key and output filename stem.
package trackid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Compute returns the 16 lowercase-hex-character fingerprint of a request's
// generation parameters: the first 8 bytes of SHA-256("prompt:seed:duration:
// model_version:backend"). Two requests with identical parameters always
// produce the same id.
func Compute(prompt string, seed uint64, durationSec int, modelVersion, backend string) string {
	input := fmt.Sprintf("%s:%d:%d:%s:%s", prompt, seed, durationSec, modelVersion, backend)
	sum := sha256.Sum256([]byte(input))

	return hex.EncodeToString(sum[:8])
}
