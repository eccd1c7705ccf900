package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/willibrandon/lofid/internal/audio"
	"github.com/willibrandon/lofid/internal/daemonerr"
	"github.com/willibrandon/lofid/internal/job"
	"github.com/willibrandon/lofid/internal/track"
)

// runWorker is the single serial consumer: exactly one generation is
// active at any moment. It sleeps until rung, then drains the queue to
// empty before sleeping again; once shutdown has begun it starts no
// further queued job. It runs as the sole goroutine
// conc.WaitGroup supervises in Server.Run.
func (s *Server) runWorker() {
	for {
		select {
		case <-s.done:
			return
		case <-s.doorbell:
		}

		for {
			select {
			case <-s.done:
				return
			default:
			}

			j := s.claimNextJob()
			if j == nil {
				break
			}

			s.processJob(j)
		}
	}
}

// claimNextJob pops the queue head and marks it the active job in a single
// stateMu critical section, so the fingerprint never goes dark between
// leaving the queue and becoming visible to admission dedup.
func (s *Server) claimNextJob() *job.GenerationJob {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	j := s.queue.PopNext()
	if j != nil {
		s.activeJob = j
	}

	return j
}

// failJob releases the active-job slot and reports the failure. The failed
// fingerprint is deliberately not cached, so a retry re-admits.
func (s *Server) failJob(j *job.GenerationJob, code daemonerr.Code, derr *daemonerr.Error) {
	j.SetFailed(code.Symbol(), derr.Error())

	s.stateMu.Lock()
	s.activeJob = nil
	s.stateMu.Unlock()

	s.emitError(j, derr)
}

// finishJob inserts the completed track and clears the active-job slot in
// one critical section, the mirror image of claimNextJob: the fingerprint
// moves from active to cached with no gap for a duplicate admission.
func (s *Server) finishJob(j *job.GenerationJob, t track.Track) {
	j.SetComplete()

	s.stateMu.Lock()
	s.cache.Put(t)
	s.activeJob = nil
	s.stateMu.Unlock()

	s.emitComplete(j, t)
}

// processJob runs one job to a terminal state, emitting progress and a
// terminal notification along the way. It never panics the worker
// goroutine on a driver failure; that surfaces as generation_error and the
// worker moves on to the next queued job.
func (s *Server) processJob(j *job.GenerationJob) {
	j.SetGenerating()

	bundle, err := s.ensureBundle(j.Backend)
	if err != nil {
		s.failJob(j, daemonerr.CodeModelLoadFailed, daemonerr.ModelLoadFailed(j.Backend, err))

		return
	}

	throttle := NewProgressThrottle()
	onProgress := func(current, total int) {
		if throttle.Tick(j, current, total) {
			s.emitProgress(j)
		}
	}

	startedAt := time.Now()

	samples, err := bundle.Generate(context.Background(), GenerateJobParams{
		Prompt:         j.Prompt,
		DurationSec:    j.DurationSec,
		Seed:           j.Seed,
		InferenceSteps: j.InferenceSteps,
		Scheduler:      j.Scheduler,
		GuidanceScale:  j.GuidanceScale,
	}, onProgress)
	if err != nil {
		s.failJob(j, daemonerr.CodeModelInferenceFailed, daemonerr.ModelInferenceFailed(err.Error(), err))

		return
	}

	generationTimeSec := time.Since(startedAt).Seconds()

	wavBytes, err := audio.EncodeWAVFloat32(samples, bundle.SampleRate(), false)
	if err != nil {
		s.failJob(j, daemonerr.CodeInternalError, daemonerr.Internal(err.Error()))

		return
	}

	path, err := s.writeTrackFile(j.TrackID, wavBytes)
	if err != nil {
		s.failJob(j, daemonerr.CodeInternalError, daemonerr.Internal(err.Error()))

		return
	}

	t := track.Track{
		TrackID:           j.TrackID,
		Path:              path,
		Prompt:            j.Prompt,
		DurationSec:       float64(len(samples)) / float64(bundle.SampleRate()),
		SampleRate:        bundle.SampleRate(),
		Seed:              j.Seed,
		ModelVersion:      bundle.ModelVersion(),
		Backend:           j.Backend,
		GenerationTimeSec: generationTimeSec,
		CreatedAt:         time.Now(),
	}

	s.finishJob(j, t)
}

// ensureBundle returns the currently loaded Bundle if it already matches
// backend, else drops it and loads the requested one: switching backends
// releases the previous bundle before the next is constructed. Admission
// only verifies the weight files exist (BACKEND_NOT_INSTALLED); session
// construction is lazy, so a load failure here surfaces asynchronously as
// a MODEL_LOAD_FAILED generation_error rather than a request error.
func (s *Server) ensureBundle(backend string) (Bundle, error) {
	s.bundleMu.Lock()
	defer s.bundleMu.Unlock()

	if s.bundle != nil && s.bundle.Backend() == backend {
		return s.bundle, nil
	}

	if s.bundle != nil {
		if err := s.bundle.Close(); err != nil {
			s.log.Error("daemon: error releasing previous model bundle", "error", err)
		}

		s.bundle = nil
	}

	b, err := s.loadBundle(s.cfg, backend)
	if err != nil {
		return nil, err
	}

	s.bundle = b

	return b, nil
}

func (s *Server) writeTrackFile(trackID string, wavBytes []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.Daemon.CachePath, 0o755); err != nil {
		return "", fmt.Errorf("daemon: create cache dir: %w", err)
	}

	path := filepath.Join(s.cfg.Daemon.CachePath, trackID+".wav")
	if err := os.WriteFile(path, wavBytes, 0o644); err != nil {
		return "", fmt.Errorf("daemon: write track file: %w", err)
	}

	return path, nil
}
