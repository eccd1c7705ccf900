package queue

import (
	"errors"
	"testing"

	"github.com/willibrandon/lofid/internal/job"
)

func makeJob(id string, p job.Priority) *job.GenerationJob {
	return job.New(id, job.Params{
		Prompt:   "test prompt " + id,
		Priority: p,
		Backend:  "musicgen",
	}, 0)
}

func TestAddAssignsContiguousPositions(t *testing.T) {
	q := New()

	for i := 0; i < 3; i++ {
		j := makeJob(string(rune('a'+i)), job.PriorityNormal)
		pos, err := q.Add(j)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if pos != i {
			t.Fatalf("job %d: expected position %d, got %d", i, i, pos)
		}
	}
}

func TestAddRejectsWhenFull(t *testing.T) {
	q := New()

	for i := 0; i < MaxSize; i++ {
		if _, err := q.Add(makeJob(string(rune('a'+i)), job.PriorityNormal)); err != nil {
			t.Fatalf("job %d: unexpected error: %v", i, err)
		}
	}

	_, err := q.Add(makeJob("overflow", job.PriorityNormal))
	if err == nil {
		t.Fatal("expected error admitting an 11th job")
	}

	var full *ErrFull
	if !errors.As(err, &full) {
		t.Fatalf("expected *ErrFull, got %T", err)
	}

	if full.CurrentSize != MaxSize {
		t.Fatalf("expected CurrentSize %d, got %d", MaxSize, full.CurrentSize)
	}

	// Popping one makes room again.
	q.PopNext()

	if _, err := q.Add(makeJob("after-pop", job.PriorityNormal)); err != nil {
		t.Fatalf("expected admission after pop to succeed, got %v", err)
	}
}

func TestHighPriorityJumpsNormalQueue(t *testing.T) {
	q := New()

	q.Add(makeJob("normal-1", job.PriorityNormal))
	q.Add(makeJob("normal-2", job.PriorityNormal))
	q.Add(makeJob("high-1", job.PriorityHigh))

	next := q.PopNext()
	if next.JobID != "high-1" {
		t.Fatalf("expected high-1 first, got %s", next.JobID)
	}

	next = q.PopNext()
	if next.JobID != "normal-1" {
		t.Fatalf("expected normal-1 second, got %s", next.JobID)
	}

	next = q.PopNext()
	if next.JobID != "normal-2" {
		t.Fatalf("expected normal-2 third, got %s", next.JobID)
	}
}

func TestHighPriorityOrderedAmongThemselves(t *testing.T) {
	q := New()

	q.Add(makeJob("normal-1", job.PriorityNormal))
	q.Add(makeJob("high-1", job.PriorityHigh))
	q.Add(makeJob("high-2", job.PriorityHigh))

	if next := q.PopNext(); next.JobID != "high-1" {
		t.Fatalf("expected high-1 first, got %s", next.JobID)
	}

	if next := q.PopNext(); next.JobID != "high-2" {
		t.Fatalf("expected high-2 second, got %s", next.JobID)
	}

	if next := q.PopNext(); next.JobID != "normal-1" {
		t.Fatalf("expected normal-1 last, got %s", next.JobID)
	}
}

func TestPositionRenumberingAfterPop(t *testing.T) {
	q := New()

	q.Add(makeJob("a", job.PriorityNormal))
	q.Add(makeJob("b", job.PriorityNormal))
	q.Add(makeJob("c", job.PriorityNormal))

	q.PopNext()

	posB, ok := q.Position("b")
	if !ok || posB != 0 {
		t.Fatalf("expected b at position 0 after pop, got %d (ok=%v)", posB, ok)
	}

	posC, ok := q.Position("c")
	if !ok || posC != 1 {
		t.Fatalf("expected c at position 1 after pop, got %d (ok=%v)", posC, ok)
	}
}

func TestPopNextOnEmptyReturnsNil(t *testing.T) {
	q := New()
	if next := q.PopNext(); next != nil {
		t.Fatalf("expected nil from empty queue, got %+v", next)
	}
}

func TestPositionMissingReturnsFalse(t *testing.T) {
	q := New()
	q.Add(makeJob("a", job.PriorityNormal))

	if _, ok := q.Position("missing"); ok {
		t.Fatal("expected miss for unknown job id")
	}
}

func TestIsFull(t *testing.T) {
	q := New()

	if q.IsFull() {
		t.Fatal("expected new queue to not be full")
	}

	for i := 0; i < MaxSize; i++ {
		q.Add(makeJob(string(rune('a'+i)), job.PriorityNormal))
	}

	if !q.IsFull() {
		t.Fatal("expected queue at MaxSize to report full")
	}
}
