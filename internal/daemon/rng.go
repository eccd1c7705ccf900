package daemon

import (
	"math/rand/v2"

	"github.com/willibrandon/lofid/internal/runtime/tensor"
)

// newSeededRNG returns a deterministic generator seeded from the job's
// resolved seed, satisfying musicgen.RNG.
func newSeededRNG(seed uint64) *rand.Rand {
	return tensor.NewSeededRNG(seed)
}
