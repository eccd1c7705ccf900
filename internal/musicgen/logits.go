package musicgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/willibrandon/lofid/internal/runtime/tensor"
)

// DefaultGuidanceScale is the classifier-free guidance scale applied to the
// autoregressive backend's logits unless a caller overrides it.
const DefaultGuidanceScale = 3

// DefaultTopK is the number of highest-probability candidates considered by
// top-k sampling unless a caller overrides it.
const DefaultTopK = 250

// Sample is one top-k sampling result: the chosen token id and the natural
// log of its softmax probability.
type Sample struct {
	TokenID int64
	LogProb float64
}

// ApplyCFG applies classifier-free guidance to a (2B, V) logits matrix: the
// first B rows are conditional (prompt-conditioned), the next B rows are
// unconditional. It returns the guided (B, V) matrix
// uncond + guidanceScale*(cond-uncond).
func ApplyCFG(logits [][]float32, guidanceScale float64) ([][]float32, error) {
	if len(logits)%2 != 0 {
		return nil, fmt.Errorf("musicgen: CFG requires an even batch dimension, got %d", len(logits))
	}

	b := len(logits) / 2
	out := make([][]float32, b)

	for i := range b {
		cond := logits[i]
		uncond := logits[b+i]

		if len(cond) != len(uncond) {
			return nil, fmt.Errorf("musicgen: CFG row %d: cond width %d != uncond width %d", i, len(cond), len(uncond))
		}

		out[i] = tensor.LerpVec(uncond, cond, guidanceScale)
	}

	return out, nil
}

// RNG is the minimal random source top-k sampling needs. *rand.Rand from
// math/rand/v2 satisfies it.
type RNG interface {
	Float64() float64
}

// SampleTopK performs softmax over each row, retains the k highest
// probability entries, and draws one index per row from that categorical
// distribution weighted by its (un-renormalized) softmax probability. The
// returned log-probability is of the raw softmax probability of the
// sampled id, not the top-k-renormalized one. Ties in probability are
// broken by ascending index, matching stable-sort-then-truncate semantics.
func SampleTopK(logits [][]float32, k int, rng RNG) ([]Sample, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	out := make([]Sample, len(logits))

	for r, row := range logits {
		if len(row) == 0 {
			return nil, fmt.Errorf("musicgen: sample_top_k row %d is empty", r)
		}

		probs := tensor.Softmax1D(row)

		type cand struct {
			idx  int64
			prob float32
		}

		cands := make([]cand, len(probs))
		for i, p := range probs {
			cands[i] = cand{idx: int64(i), prob: p}
		}

		sort.SliceStable(cands, func(a, b int) bool { return cands[a].prob > cands[b].prob })

		kk := min(k, len(cands))
		cands = cands[:kk]

		var total float64
		for _, c := range cands {
			total += float64(c.prob)
		}

		if total <= 0 {
			return nil, fmt.Errorf("musicgen: sample_top_k row %d has non-positive weight total", r)
		}

		draw := rng.Float64() * total

		chosen := cands[len(cands)-1]

		var cum float64
		for _, c := range cands {
			cum += float64(c.prob)
			if draw <= cum {
				chosen = c
				break
			}
		}

		out[r] = Sample{TokenID: chosen.idx, LogProb: math.Log(float64(chosen.prob))}
	}

	return out, nil
}
