package acestep

import (
	"math/rand/v2"

	"github.com/willibrandon/lofid/internal/runtime/tensor"
)

// PingPongScheduler is the stochastic SDE flow-matching solver. Given the
// same seed, two runs produce bit-identical outputs; omega mean-shifting is
// not applied.
type PingPongScheduler struct {
	numSteps  int
	sigmas    []float64
	timesteps []float64
	step      int
	rng       *rand.Rand
}

// NewPingPongScheduler builds a PingPong scheduler for numSteps user steps,
// seeded deterministically from seed.
func NewPingPongScheduler(numSteps int, shift float64, seed uint64) *PingPongScheduler {
	sigmas, timesteps := SigmaSchedule(numSteps, shift)

	return &PingPongScheduler{
		numSteps:  numSteps,
		sigmas:    sigmas,
		timesteps: timesteps,
		rng:       tensor.NewSeededRNG(seed),
	}
}

func (s *PingPongScheduler) Timestep() float64 { return s.timesteps[s.step] }
func (s *PingPongScheduler) Sigma() float64    { return s.sigmas[s.step] }

// Step computes the denoised prediction x̂ = latent − σ_cur·model_output,
// draws Gaussian noise ε of the latent's shape, and returns
// (1−σ_next)·x̂ + σ_next·ε.
func (s *PingPongScheduler) Step(latent, modelOutput []float32) []float32 {
	sigmaCur := s.sigmas[s.step]
	sigmaNext := s.sigmas[s.step+1]

	xhat := tensor.AddVec(latent, tensor.ScaleVec(modelOutput, -sigmaCur))

	noise := make([]float32, len(latent))
	tensor.FillRandn(noise, s.rng)

	next := tensor.AddVec(tensor.ScaleVec(xhat, 1-sigmaNext), tensor.ScaleVec(noise, sigmaNext))

	s.step++

	return next
}

func (s *PingPongScheduler) IsDone() bool                 { return s.step >= s.numSteps }
func (s *PingPongScheduler) UserStep() int                { return s.step }
func (s *PingPongScheduler) UserNumSteps() int            { return s.numSteps }
func (s *PingPongScheduler) RequiresTwoEvaluations() bool { return false }
