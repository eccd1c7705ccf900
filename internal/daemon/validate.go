package daemon

import (
	"math/rand/v2"

	"github.com/willibrandon/lofid/internal/acestep"
	"github.com/willibrandon/lofid/internal/config"
	"github.com/willibrandon/lofid/internal/daemonerr"
	"github.com/willibrandon/lofid/internal/job"
	"github.com/willibrandon/lofid/internal/protocol"
)

// ValidatedGenerate is a "generate" request's parameters after defaulting
// and bounds-checking, ready to become a job.Params. Synchronous validation
// failures never mutate server state.
type ValidatedGenerate struct {
	Prompt         string
	DurationSec    int
	Seed           uint64
	Priority       job.Priority
	Backend        string
	InferenceSteps int
	Scheduler      string
	GuidanceScale  float64
}

// ValidateGenerateParams bounds-checks a GenerateParams, defaulting backend, duration, priority, and the diffusion-only fields,
// and resolves an unset seed to a random value.
func ValidateGenerateParams(p protocol.GenerateParams, defaults config.DaemonConfig) (ValidatedGenerate, *daemonerr.Error) {
	if err := job.ValidatePrompt(p.Prompt); err != nil {
		return ValidatedGenerate{}, daemonerr.InvalidPrompt(err.Error())
	}

	backend, err := config.NormalizeBackend(firstNonEmpty(p.Backend, defaults.Backend))
	if err != nil {
		return ValidatedGenerate{}, daemonerr.InvalidBackend(p.Backend)
	}

	durationSec := 30
	if p.DurationSec != nil {
		durationSec = *p.DurationSec
	}

	minDuration, maxDuration := MusicgenMinDurationSec, MusicgenMaxDurationSec
	if backend == config.BackendAceStep {
		minDuration, maxDuration = AceStepMinDurationSec, AceStepMaxDurationSec
	}

	if durationSec < minDuration || durationSec > maxDuration {
		return ValidatedGenerate{}, daemonerr.InvalidDuration(backend, durationSec, minDuration, maxDuration)
	}

	priority := job.PriorityNormal
	switch p.Priority {
	case "", string(job.PriorityNormal):
		priority = job.PriorityNormal
	case string(job.PriorityHigh):
		priority = job.PriorityHigh
	default:
		return ValidatedGenerate{}, daemonerr.InvalidParams("priority must be \"normal\" or \"high\"")
	}

	seed := rand.Uint64()
	if p.Seed != nil {
		seed = *p.Seed
	}

	inferenceSteps := defaults.AceStepSteps
	if p.InferenceSteps != nil {
		inferenceSteps = *p.InferenceSteps
	}

	if backend == config.BackendAceStep && (inferenceSteps < 1 || inferenceSteps > 200) {
		return ValidatedGenerate{}, daemonerr.InvalidInferenceSteps(inferenceSteps)
	}

	scheduler := defaults.AceStepScheduler
	if p.Scheduler != "" {
		scheduler = p.Scheduler
	}

	if backend == config.BackendAceStep {
		if _, ok := acestep.ParseSchedulerName(scheduler); !ok {
			return ValidatedGenerate{}, daemonerr.InvalidScheduler(scheduler)
		}
	}

	guidanceScale := defaults.AceStepGuidance
	if p.GuidanceScale != nil {
		guidanceScale = *p.GuidanceScale
	}

	if backend == config.BackendAceStep && (guidanceScale < 1.0 || guidanceScale > 30.0) {
		return ValidatedGenerate{}, daemonerr.InvalidGuidanceScale(guidanceScale)
	}

	return ValidatedGenerate{
		Prompt:         p.Prompt,
		DurationSec:    durationSec,
		Seed:           seed,
		Priority:       priority,
		Backend:        backend,
		InferenceSteps: inferenceSteps,
		Scheduler:      scheduler,
		GuidanceScale:  guidanceScale,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
