// Package queue implements the bounded two-class FIFO priority queue that
// admits pending GenerationJobs.
package queue

import (
	"fmt"

	"github.com/willibrandon/lofid/internal/job"
)

// MaxSize is the queue's fixed capacity.
const MaxSize = 10

// ErrFull is returned by Add when the queue is already at MaxSize.
type ErrFull struct {
	CurrentSize int
}

func (e *ErrFull) Error() string {
	return fmt.Sprintf("queue is full (%d jobs, max %d)", e.CurrentSize, MaxSize)
}

// Queue is a bounded, priority-ordered sequence of pending jobs. High
// priority jobs occupy a contiguous prefix; within a class, order is FIFO.
//
// Queue is not safe for concurrent use on its own: the daemon shares one
// state mutex across the queue, the result cache, and the active job, so
// admission and the worker's pop never interleave mid-decision.
type Queue struct {
	jobs []*job.GenerationJob
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{jobs: make([]*job.GenerationJob, 0, MaxSize)}
}

// Add admits j, inserting it after the last high-priority entry if j is
// high priority, or appending it otherwise. It returns j's resulting index
// or *ErrFull if the queue was already at capacity.
func (q *Queue) Add(j *job.GenerationJob) (int, error) {
	if len(q.jobs) >= MaxSize {
		return 0, &ErrFull{CurrentSize: len(q.jobs)}
	}

	var insertAt int

	if j.Priority == job.PriorityHigh {
		insertAt = len(q.jobs)

		for i, existing := range q.jobs {
			if existing.Priority != job.PriorityHigh {
				insertAt = i
				break
			}
		}

		q.jobs = append(q.jobs, nil)
		copy(q.jobs[insertAt+1:], q.jobs[insertAt:])
		q.jobs[insertAt] = j
	} else {
		insertAt = len(q.jobs)
		q.jobs = append(q.jobs, j)
	}

	q.renumber()

	return insertAt, nil
}

// PopNext removes and returns the job at index 0, or nil if the queue is
// empty.
func (q *Queue) PopNext() *job.GenerationJob {
	if len(q.jobs) == 0 {
		return nil
	}

	next := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.renumber()

	return next
}

// Position returns the current index of the job with the given id, or false
// if not present.
func (q *Queue) Position(jobID string) (int, bool) {
	for i, j := range q.jobs {
		if j.JobID == jobID {
			return i, true
		}
	}

	return 0, false
}

// FindByTrackID returns the pending job carrying the given fingerprint and
// its current index, or false if no queued job matches.
func (q *Queue) FindByTrackID(trackID string) (*job.GenerationJob, int, bool) {
	for i, j := range q.jobs {
		if j.TrackID == trackID {
			return j, i, true
		}
	}

	return nil, 0, false
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// IsFull reports whether the queue is at MaxSize.
func (q *Queue) IsFull() bool {
	return len(q.jobs) >= MaxSize
}

// renumber re-assigns every job's QueuePosition to match its index.
func (q *Queue) renumber() {
	for i, j := range q.jobs {
		j.SetQueued(i)
	}
}
