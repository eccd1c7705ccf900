// Package acestep implements the flow-matching diffusion schedulers and
// generation driver for the diffusion audio backend.
package acestep

import (
	"math"

	"github.com/willibrandon/lofid/internal/runtime/tensor"
)

// DefaultShift is the sigma-schedule shift parameter used unless a caller
// overrides it.
const DefaultShift = 3.0

// DefaultOmega is the mean-shifting omega scale applied by the deterministic
// solvers.
const DefaultOmega = 10.0

// SigmaSchedule computes the flow-matching noise schedule for n user steps
// with the given shift. It returns n+1 sigmas (strictly decreasing, ending
// at 0) and n timesteps (sigma*1000 for the first n sigmas).
func SigmaSchedule(n int, shift float64) (sigmas, timesteps []float64) {
	sigmas = make([]float64, n+1)
	timesteps = make([]float64, n)

	for i := 0; i < n; i++ {
		t := 1 - float64(i)/float64(n)
		sigmas[i] = shift * t / (1 + (shift-1)*t)
		timesteps[i] = sigmas[i] * 1000
	}

	sigmas[n] = 0

	return sigmas, timesteps
}

// omegaShiftFactor is the logistic mean-shift scale ω' applied to a
// solver's raw derivative, ranging over (0.9, 1.1) as omega varies.
func omegaShiftFactor(omega float64) float64 {
	return 0.9 + 0.2/(1+math.Exp(-0.1*omega))
}

// meanShift returns d rescaled so it has the same mean as before but its
// deviation from that mean is multiplied by factor, matching the
// omega-mean-shifting step shared by the Euler and Heun solvers.
func meanShift(d []float32, factor float64) []float32 {
	if len(d) == 0 {
		return d
	}

	mean := tensor.MeanVec(d)

	out := make([]float32, len(d))
	for i, v := range d {
		out[i] = float32((float64(v)-mean)*factor + mean)
	}

	return out
}
