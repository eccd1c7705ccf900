// Package track defines the immutable Track cache entry produced by a
// successful generation.
package track

import "time"

// Track is an immutable record of a successfully generated audio file.
// Once created it is never mutated; the cache evicts it wholesale.
type Track struct {
	TrackID           string
	Path              string
	Prompt            string
	DurationSec       float64
	SampleRate        int
	Seed              uint64
	ModelVersion      string
	Backend           string
	GenerationTimeSec float64
	CreatedAt         time.Time
}
