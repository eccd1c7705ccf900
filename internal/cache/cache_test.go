package cache

import (
	"testing"
	"time"

	"github.com/willibrandon/lofid/internal/track"
)

func makeTrack(id string) track.Track {
	return track.Track{
		TrackID:      id,
		Path:         "/cache/" + id + ".wav",
		Prompt:       "test prompt",
		DurationSec:  10,
		SampleRate:   32000,
		Seed:         12345,
		ModelVersion: "musicgen-small-fp16-v1",
		Backend:      "musicgen",
		CreatedAt:    time.Now(),
	}
}

func TestNewCacheIsEmpty(t *testing.T) {
	c := New(0)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestPutAndGet(t *testing.T) {
	c := New(10)
	c.Put(makeTrack("abc123"))

	got, ok := c.Get("abc123")
	if !ok {
		t.Fatal("expected hit for abc123")
	}

	if got.TrackID != "abc123" {
		t.Fatalf("got track id %q", got.TrackID)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(10)
	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected miss")
	}
}

func TestEvictsLeastRecentlyAccessed(t *testing.T) {
	c := New(2)

	c.Put(makeTrack("first"))
	time.Sleep(2 * time.Millisecond)
	c.Put(makeTrack("second"))

	// Touch "first" so it is now the most recently accessed.
	c.Get("first")
	time.Sleep(2 * time.Millisecond)

	c.Put(makeTrack("third"))

	if _, ok := c.Get("first"); !ok {
		t.Error("expected first to survive eviction")
	}

	if _, ok := c.Get("second"); ok {
		t.Error("expected second to be evicted")
	}

	if _, ok := c.Get("third"); !ok {
		t.Error("expected third to be present")
	}
}

func TestPutOverwritesInPlace(t *testing.T) {
	c := New(10)
	c.Put(makeTrack("abc"))
	c.Put(makeTrack("abc"))

	if c.Len() != 1 {
		t.Fatalf("expected overwrite to keep a single entry, got %d", c.Len())
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New(3)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		c.Put(makeTrack(id))
		time.Sleep(time.Millisecond)
	}

	if c.Len() > 3 {
		t.Fatalf("expected at most 3 entries, got %d", c.Len())
	}
}
