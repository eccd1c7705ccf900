// Package job defines the mutable GenerationJob request descriptor that
// flows through the priority queue and worker, covering both the
// autoregressive and diffusion backends' parameter sets.
package job

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/willibrandon/lofid/internal/trackid"
)

// Priority is a job's queue-admission priority class.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Status is a GenerationJob's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// IsTerminal reports whether s is one of the three terminal statuses.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// GenerationJob tracks one generation request from admission through a
// terminal outcome.
type GenerationJob struct {
	JobID           string
	TrackID         string
	Prompt          string
	DurationSec     int
	Seed            uint64
	Priority        Priority
	Backend         string
	ModelVersion    string
	InferenceSteps  int
	Scheduler       string
	GuidanceScale   float64
	Status          Status
	QueuePosition   *int
	ProgressPercent int
	TokensGenerated int
	TokensEstimated int
	ETASec          float64
	ErrorCode       string
	ErrorMessage    string
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
}

// Params bundles the fields needed to construct a new GenerationJob so New
// doesn't take an unwieldy positional argument list.
type Params struct {
	Prompt         string
	DurationSec    int
	Seed           uint64
	Priority       Priority
	Backend        string
	ModelVersion   string
	InferenceSteps int
	Scheduler      string
	GuidanceScale  float64
}

// New creates a pending GenerationJob. The caller is responsible for having
// already resolved Seed (never left unset) and computed TokensEstimated'
// inputs appropriately for the target backend.
func New(jobID string, p Params, tokensPerSecond int) *GenerationJob {
	trackID := trackid.Compute(p.Prompt, p.Seed, p.DurationSec, p.ModelVersion, p.Backend)

	tokensEstimated := 0
	if tokensPerSecond > 0 {
		tokensEstimated = p.DurationSec * tokensPerSecond
	}

	return &GenerationJob{
		JobID:           jobID,
		TrackID:         trackID,
		Prompt:          p.Prompt,
		DurationSec:     p.DurationSec,
		Seed:            p.Seed,
		Priority:        p.Priority,
		Backend:         p.Backend,
		ModelVersion:    p.ModelVersion,
		InferenceSteps:  p.InferenceSteps,
		Scheduler:       p.Scheduler,
		GuidanceScale:   p.GuidanceScale,
		Status:          StatusPending,
		TokensEstimated: tokensEstimated,
		CreatedAt:       time.Now(),
	}
}

// UpdateProgress recomputes ProgressPercent (capped at 99) and ETASec from a
// raw tokens-generated count and a measured generation rate.
func (j *GenerationJob) UpdateProgress(tokensGenerated int, tokensPerSec float64) {
	j.TokensGenerated = tokensGenerated

	percent := 0
	if j.TokensEstimated > 0 {
		percent = int(float64(tokensGenerated) / float64(j.TokensEstimated) * 100)
	}

	if percent > 99 {
		percent = 99
	}

	if percent < 0 {
		percent = 0
	}

	j.ProgressPercent = percent

	remaining := j.TokensEstimated - tokensGenerated
	if remaining < 0 {
		remaining = 0
	}

	if tokensPerSec > 0 {
		j.ETASec = float64(remaining) / tokensPerSec
	} else {
		j.ETASec = 0
	}
}

// SetQueued marks the job queued at the given position.
func (j *GenerationJob) SetQueued(position int) {
	j.Status = StatusQueued
	j.QueuePosition = &position
}

// SetGenerating marks the job actively generating and records the start time.
func (j *GenerationJob) SetGenerating() {
	j.Status = StatusGenerating
	j.QueuePosition = nil
	j.StartedAt = time.Now()
}

// SetComplete marks the job done: progress pins to 100, ETA clears.
func (j *GenerationJob) SetComplete() {
	j.Status = StatusComplete
	j.ProgressPercent = 100
	j.ETASec = 0
	j.CompletedAt = time.Now()
}

// SetFailed marks the job failed with the given error code/message.
func (j *GenerationJob) SetFailed(code, message string) {
	j.Status = StatusFailed
	j.ErrorCode = code
	j.ErrorMessage = message
	j.CompletedAt = time.Now()
}

// SetRejected marks the job rejected (failed validation or admission) with
// the given error code/message.
func (j *GenerationJob) SetRejected(code, message string) {
	j.Status = StatusRejected
	j.ErrorCode = code
	j.ErrorMessage = message
	j.CompletedAt = time.Now()
}

// ValidatePrompt reports an error if prompt is empty or exceeds 1000 chars.
func ValidatePrompt(prompt string) error {
	if len(prompt) == 0 {
		return fmt.Errorf("prompt must not be empty")
	}

	if n := utf8.RuneCountInString(prompt); n > 1000 {
		return fmt.Errorf("prompt too long: %d characters (max 1000)", n)
	}

	return nil
}
