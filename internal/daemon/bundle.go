// Package daemon wires the queue, cache, worker, and protocol layers into
// the running server: request admission on the protocol goroutine, one
// serial worker goroutine driving whichever backend is loaded.
package daemon

import (
	"context"
)

// Sample rates and duration bounds per backend.
const (
	MusicgenSampleRate     = 32000
	MusicgenFramesPerSec   = 50
	MusicgenMinDurationSec = 5
	MusicgenMaxDurationSec = 120

	AceStepSampleRate     = 44100
	AceStepMinDurationSec = 5
	AceStepMaxDurationSec = 240
)

// GenerateJobParams is the backend-agnostic parameter set a Bundle needs to
// run one generation, translated from a job.GenerationJob.
type GenerateJobParams struct {
	Prompt         string
	DurationSec    int
	Seed           uint64
	InferenceSteps int
	Scheduler      string
	GuidanceScale  float64
}

// Bundle is one backend's loaded generation pipeline plus the ONNX
// resources it owns. Exactly one Bundle is resident at a time, and the
// worker owns it exclusively while a job executes.
type Bundle interface {
	Backend() string
	ModelVersion() string
	SampleRate() int
	DurationRange() (min, max int)
	Generate(ctx context.Context, p GenerateJobParams, onProgress func(current, total int)) ([]float32, error)
	Close() error
}
