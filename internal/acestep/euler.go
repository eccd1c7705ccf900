package acestep

import "github.com/willibrandon/lofid/internal/runtime/tensor"

// EulerScheduler is the deterministic first-order flow-matching solver: one
// model evaluation per user-visible step.
type EulerScheduler struct {
	numSteps    int
	omegaFactor float64
	sigmas      []float64
	timesteps   []float64
	step        int
}

// NewEulerScheduler builds an Euler scheduler for numSteps user steps.
func NewEulerScheduler(numSteps int, shift, omega float64) *EulerScheduler {
	sigmas, timesteps := SigmaSchedule(numSteps, shift)

	return &EulerScheduler{
		numSteps:    numSteps,
		omegaFactor: omegaShiftFactor(omega),
		sigmas:      sigmas,
		timesteps:   timesteps,
	}
}

func (s *EulerScheduler) Timestep() float64 { return s.timesteps[s.step] }
func (s *EulerScheduler) Sigma() float64    { return s.sigmas[s.step] }

// Step applies Δ = σ_next − σ_cur; d = model_output·Δ; mean-shifts d by ω';
// returns latent + d'.
func (s *EulerScheduler) Step(latent, modelOutput []float32) []float32 {
	sigmaCur := s.sigmas[s.step]
	sigmaNext := s.sigmas[s.step+1]
	delta := sigmaNext - sigmaCur

	d := tensor.ScaleVec(modelOutput, delta)
	dShifted := meanShift(d, s.omegaFactor)
	next := tensor.AddVec(latent, dShifted)

	s.step++

	return next
}

func (s *EulerScheduler) IsDone() bool                  { return s.step >= s.numSteps }
func (s *EulerScheduler) UserStep() int                 { return s.step }
func (s *EulerScheduler) UserNumSteps() int             { return s.numSteps }
func (s *EulerScheduler) RequiresTwoEvaluations() bool  { return false }
