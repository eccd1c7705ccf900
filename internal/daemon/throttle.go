package daemon

import (
	"time"

	"github.com/willibrandon/lofid/internal/job"
)

// ProgressThrottle converts raw (current, total) ticks from inside a
// driver into 5-percent-banded generation_progress notifications:
// p = min(floor(100*current/total), 99), emitted when p crosses the next
// multiple of 5 or when current == total.
type ProgressThrottle struct {
	startedAt  time.Time
	lastBand   int
	sawAny     bool
}

// NewProgressThrottle starts a throttle whose elapsed-time clock begins now.
func NewProgressThrottle() *ProgressThrottle {
	return &ProgressThrottle{startedAt: time.Now(), lastBand: -1}
}

// Tick updates j's progress/ETA fields from (current, total) and reports
// whether this tick crosses a new 5-percent band (or reaches total),
// meaning the caller should emit a generation_progress notification.
func (t *ProgressThrottle) Tick(j *job.GenerationJob, current, total int) bool {
	elapsed := time.Since(t.startedAt).Seconds()

	tokensPerSec := 0.0
	if current > 0 && elapsed > 0 {
		tokensPerSec = float64(current) / elapsed
	}

	j.UpdateProgress(current, tokensPerSec)

	band := j.ProgressPercent / 5

	terminal := total > 0 && current == total
	crossed := !t.sawAny || band > t.lastBand

	t.sawAny = true
	t.lastBand = band

	return crossed || terminal
}
