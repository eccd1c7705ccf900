package tensor

import "math/rand/v2"

// NewSeededRNG returns a deterministic generator for seed, the source every
// seeded fill in the generation pipelines draws from.
func NewSeededRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Randn creates a tensor filled with standard Gaussian noise drawn from a
// generator seeded deterministically from seed.
func Randn(shape []int64, seed uint64) (*Tensor, error) {
	t, err := Zeros(shape)
	if err != nil {
		return nil, err
	}

	FillRandn(t.data, NewSeededRNG(seed))

	return t, nil
}

// FillRandn overwrites dst with standard Gaussian draws from rng.
func FillRandn(dst []float32, rng *rand.Rand) {
	for i := range dst {
		dst[i] = float32(rng.NormFloat64())
	}
}
