package acestep

import "github.com/willibrandon/lofid/internal/runtime/tensor"

// HeunScheduler is the deterministic second-order flow-matching solver.
// Every user-visible step costs two model evaluations: a predictor
// sub-step followed by a corrector sub-step.
type HeunScheduler struct {
	numSteps    int
	omegaFactor float64
	sigmas      []float64
	timesteps   []float64

	userStep int
	corrector bool // false: next Step call is the predictor; true: the corrector

	// state carried from predictor to corrector
	storedLatent []float32
	storedD      []float32
	storedDelta  float64
	sigmaCur     float64
	sigmaNext    float64
}

// NewHeunScheduler builds a Heun scheduler for numSteps user-visible steps.
func NewHeunScheduler(numSteps int, shift, omega float64) *HeunScheduler {
	sigmas, timesteps := SigmaSchedule(numSteps, shift)

	return &HeunScheduler{
		numSteps:    numSteps,
		omegaFactor: omegaShiftFactor(omega),
		sigmas:      sigmas,
		timesteps:   timesteps,
	}
}

// Timestep returns the timestep for whichever sub-step is next: the
// current step's timestep before the predictor call, the next step's
// timestep before the corrector call.
func (s *HeunScheduler) Timestep() float64 {
	if !s.corrector {
		return s.timesteps[s.userStep]
	}

	return s.sigmaNext * 1000
}

// Sigma mirrors Timestep's sub-step distinction.
func (s *HeunScheduler) Sigma() float64 {
	if !s.corrector {
		return s.sigmas[s.userStep]
	}

	return s.sigmaNext
}

// Step runs whichever sub-step is pending. The predictor call takes the
// step's input latent and returns a predicted latent the driver must
// re-evaluate the denoiser on before calling Step again for the corrector.
func (s *HeunScheduler) Step(latent, modelOutput []float32) []float32 {
	if !s.corrector {
		return s.predict(latent, modelOutput)
	}

	return s.correct(latent, modelOutput)
}

func (s *HeunScheduler) predict(latent, modelOutput []float32) []float32 {
	s.sigmaCur = s.sigmas[s.userStep]
	s.sigmaNext = s.sigmas[s.userStep+1]

	xhat := tensor.AddVec(latent, tensor.ScaleVec(modelOutput, -s.sigmaCur))
	d := tensor.ScaleVec(tensor.SubVec(latent, xhat), 1/s.sigmaCur)

	s.storedLatent = latent
	s.storedD = d
	s.storedDelta = s.sigmaNext - s.sigmaCur
	s.corrector = true

	predicted := tensor.AddVec(latent, meanShift(tensor.ScaleVec(d, s.storedDelta), s.omegaFactor))

	return predicted
}

func (s *HeunScheduler) correct(predictedLatent, modelOutput []float32) []float32 {
	var dPrime []float32

	if s.sigmaNext > 0 {
		xhat := tensor.AddVec(predictedLatent, tensor.ScaleVec(modelOutput, -s.sigmaNext))
		dPrime = tensor.ScaleVec(tensor.SubVec(predictedLatent, xhat), 1/s.sigmaNext)
	} else {
		dPrime = make([]float32, len(predictedLatent))
	}

	dBar := tensor.ScaleVec(tensor.AddVec(s.storedD, dPrime), 0.5)
	next := tensor.AddVec(s.storedLatent, meanShift(tensor.ScaleVec(dBar, s.storedDelta), s.omegaFactor))

	s.corrector = false
	s.userStep++

	return next
}

func (s *HeunScheduler) IsDone() bool                 { return s.userStep >= s.numSteps }
func (s *HeunScheduler) UserStep() int                { return s.userStep }
func (s *HeunScheduler) UserNumSteps() int            { return s.numSteps }
func (s *HeunScheduler) RequiresTwoEvaluations() bool { return true }
