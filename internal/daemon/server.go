package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"

	"github.com/willibrandon/lofid/internal/cache"
	"github.com/willibrandon/lofid/internal/config"
	"github.com/willibrandon/lofid/internal/daemonerr"
	"github.com/willibrandon/lofid/internal/job"
	"github.com/willibrandon/lofid/internal/protocol"
	"github.com/willibrandon/lofid/internal/queue"
	"github.com/willibrandon/lofid/internal/track"
	"github.com/willibrandon/lofid/internal/trackid"
)

// Server is the single long-lived process state: the bounded queue, the
// result cache, at most one loaded model Bundle, and the line-framed
// protocol connecting them to a client.
type Server struct {
	cfg    config.Config
	framer *protocol.Framer
	log    *slog.Logger

	// stateMu is the single mutex covering the queue, the result cache,
	// and the active-job slot. Holding it across a whole admission
	// decision (cache lookup, in-flight dedup, enqueue) and across the
	// worker's pop-and-claim keeps a fingerprint visible as exactly one
	// of cached, active, or queued at all times. It is held only across
	// those short critical sections, never across a session call.
	stateMu   sync.Mutex
	queue     *queue.Queue
	cache     *cache.Cache
	activeJob *job.GenerationJob

	bundleMu sync.Mutex
	bundle   Bundle

	doorbell chan struct{}
	done     chan struct{}
	wg       *conc.WaitGroup

	// loadBundle is swapped for a fake in tests; production always uses
	// LoadBundle.
	loadBundle func(config.Config, string) (Bundle, error)

	nextJobID atomic.Uint64
}

// NewServer builds a Server reading requests from r and writing
// responses/notifications to w.
func NewServer(cfg config.Config, r io.Reader, w io.Writer) *Server {
	capacity := cfg.Daemon.CacheCapacity
	if capacity <= 0 {
		capacity = cache.DefaultCapacity
	}

	return &Server{
		cfg:        cfg,
		framer:     protocol.NewFramer(r, w),
		queue:      queue.New(),
		cache:      cache.New(capacity),
		log:        slog.Default(),
		loadBundle: LoadBundle,
	}
}

// Run drives the read-dispatch-respond loop until "shutdown" is received
// or stdin reaches EOF, at which point it releases the worker and any
// loaded Bundle before returning. An error from ReadLine other than
// io.EOF means stdin is unreadable, which is fatal; Run returns it so
// main can exit non-zero.
func (s *Server) Run() error {
	s.doorbell = make(chan struct{}, 1)
	s.done = make(chan struct{})
	s.wg = conc.NewWaitGroup()
	s.wg.Go(s.runWorker)

	defer s.shutdown()

	for {
		line, err := s.framer.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("daemon: fatal read error: %w", err)
		}

		if s.handleLine(line) {
			return nil
		}
	}
}

// shutdown stops the worker goroutine, waits for any in-flight job to
// finish its current driver call (there is no in-band cancellation), and
// releases the loaded Bundle.
func (s *Server) shutdown() {
	close(s.done)
	s.wg.Wait()

	s.bundleMu.Lock()
	defer s.bundleMu.Unlock()

	if s.bundle != nil {
		if err := s.bundle.Close(); err != nil {
			s.log.Error("daemon: error releasing model bundle", "error", err)
		}

		s.bundle = nil
	}
}

// handleLine parses and dispatches one request line, reporting whether the
// caller should stop the read loop (a successful "shutdown" call).
func (s *Server) handleLine(line []byte) bool {
	req, err := protocol.ParseRequest(line)
	if err != nil {
		s.writeErr(nil, daemonerr.ParseError(err.Error()))
		return false
	}

	if req.JSONRPC != protocol.Version {
		s.writeErr(&req.ID, daemonerr.InvalidRequest(fmt.Sprintf("unsupported protocol version %q", req.JSONRPC)))
		return false
	}

	switch req.Method {
	case "ping":
		s.writeResult(req.ID, protocol.PingResult{Status: "ok"})
		return false
	case "shutdown":
		s.writeResult(req.ID, protocol.ShutdownResult{Status: "shutting_down"})
		return true
	case "get_backends":
		s.writeResult(req.ID, s.getBackends())
		return false
	case "generate":
		s.handleGenerate(req)
		return false
	default:
		s.writeErr(&req.ID, daemonerr.MethodNotFound(req.Method))
		return false
	}
}

// handleGenerate is the synchronous half of a generation request:
// parameter validation, fingerprint, cache lookup, in-flight dedup, and
// queue admission. Actual generation happens later in the worker
// goroutine.
func (s *Server) handleGenerate(req protocol.Request) {
	params, err := protocol.ParseGenerateParams(req.Params)
	if err != nil {
		s.writeErr(&req.ID, daemonerr.InvalidParams(err.Error()))
		return
	}

	vg, verr := ValidateGenerateParams(params, s.cfg.Daemon)
	if verr != nil {
		s.writeErr(&req.ID, verr)
		return
	}

	modelDir := s.modelDirFor(vg.Backend)
	if !BackendAvailable(vg.Backend, modelDir) {
		s.writeErr(&req.ID, daemonerr.BackendNotInstalled(vg.Backend))
		return
	}

	modelVersion := detectModelVersion(modelDir, vg.Backend)
	trackID := trackid.Compute(vg.Prompt, vg.Seed, vg.DurationSec, modelVersion, vg.Backend)

	result, qerr := s.admit(trackID, vg, modelVersion)
	if qerr != nil {
		var full *queue.ErrFull
		if errors.As(qerr, &full) {
			s.writeErr(&req.ID, daemonerr.QueueFull(full.CurrentSize))
			return
		}

		s.writeErr(&req.ID, daemonerr.Internal(qerr.Error()))
		return
	}

	s.writeResult(req.ID, result)

	if result.Status != "complete" {
		s.ring()
	}
}

// admit runs the whole admission decision for trackID in one stateMu
// critical section: cached tracks answer complete, an in-flight or queued
// job with the same fingerprint answers its current status instead of
// enqueuing a duplicate, and only a fingerprint with no live job admits a
// new one.
func (s *Server) admit(trackID string, vg ValidatedGenerate, modelVersion string) (protocol.GenerateResult, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if t, ok := s.cache.Get(trackID); ok {
		return protocol.GenerateResult{
			TrackID:  trackID,
			Status:   "complete",
			Position: 0,
			Seed:     t.Seed,
			Backend:  t.Backend,
		}, nil
	}

	if active := s.activeJob; active != nil && active.TrackID == trackID {
		return protocol.GenerateResult{
			TrackID:  trackID,
			Status:   "generating",
			Position: 0,
			Seed:     active.Seed,
			Backend:  active.Backend,
		}, nil
	}

	if pending, position, ok := s.queue.FindByTrackID(trackID); ok {
		return protocol.GenerateResult{
			TrackID:  trackID,
			Status:   "queued",
			Position: position,
			Seed:     pending.Seed,
			Backend:  pending.Backend,
		}, nil
	}

	j := job.New(s.newJobID(), job.Params{
		Prompt:         vg.Prompt,
		DurationSec:    vg.DurationSec,
		Seed:           vg.Seed,
		Priority:       vg.Priority,
		Backend:        vg.Backend,
		ModelVersion:   modelVersion,
		InferenceSteps: vg.InferenceSteps,
		Scheduler:      vg.Scheduler,
		GuidanceScale:  vg.GuidanceScale,
	}, tokensPerSecondFor(vg.Backend))

	if vg.Backend == config.BackendAceStep {
		j.TokensEstimated = vg.InferenceSteps
	}

	position, err := s.queue.Add(j)
	if err != nil {
		return protocol.GenerateResult{}, err
	}

	status := "queued"
	if position == 0 && s.activeJob == nil {
		status = "generating"
	}

	return protocol.GenerateResult{
		TrackID:  trackID,
		Status:   status,
		Position: position,
		Seed:     vg.Seed,
		Backend:  vg.Backend,
	}, nil
}

func (s *Server) getBackends() protocol.GetBackendsResult {
	return DescribeBackends(s.cfg)
}

func (s *Server) modelDirFor(backend string) string {
	return ModelDirFor(s.cfg, backend)
}

// tokensPerSecondFor returns the rate job.New uses to estimate
// TokensEstimated from DurationSec. The diffusion backend's step count
// isn't duration-derived, so admit overrides TokensEstimated
// directly for ace_step after construction.
func tokensPerSecondFor(backend string) int {
	if backend == config.BackendMusicgen {
		return MusicgenFramesPerSec
	}

	return 0
}

func (s *Server) newJobID() string {
	return fmt.Sprintf("job-%d", s.nextJobID.Inc())
}

// ring wakes the worker if it is sleeping; a worker already draining the
// queue will simply loop again, so a dropped doorbell send never loses work.
func (s *Server) ring() {
	select {
	case s.doorbell <- struct{}{}:
	default:
	}
}

func (s *Server) emitProgress(j *job.GenerationJob) {
	s.writeNotification(protocol.NewNotification("generation_progress", protocol.GenerationProgressParams{
		TrackID:         j.TrackID,
		Percent:         j.ProgressPercent,
		TokensGenerated: j.TokensGenerated,
		TokensEstimated: j.TokensEstimated,
		ETASec:          j.ETASec,
	}))
}

func (s *Server) emitComplete(j *job.GenerationJob, t track.Track) {
	s.writeNotification(protocol.NewNotification("generation_complete", protocol.GenerationCompleteParams{
		TrackID:           t.TrackID,
		Path:              t.Path,
		DurationSec:       t.DurationSec,
		SampleRate:        t.SampleRate,
		Prompt:            t.Prompt,
		Seed:              t.Seed,
		GenerationTimeSec: t.GenerationTimeSec,
		ModelVersion:      t.ModelVersion,
		Backend:           t.Backend,
	}))
}

func (s *Server) emitError(j *job.GenerationJob, derr *daemonerr.Error) {
	s.writeNotification(protocol.NewNotification("generation_error", protocol.GenerationErrorParams{
		TrackID: j.TrackID,
		Code:    derr.Code.Symbol(),
		Message: derr.Error(),
	}))
}

func (s *Server) writeResult(id protocol.RequestID, result any) {
	if err := s.framer.WriteResponse(protocol.NewResponse(id, result)); err != nil {
		s.log.Error("daemon: write response failed", "error", err)
	}
}

func (s *Server) writeErr(id *protocol.RequestID, derr *daemonerr.Error) {
	resp := protocol.NewErrorResponse(id, int(derr.Code), derr.Message, derr.Code.Symbol(), derr.Details)
	if err := s.framer.WriteErrorResponse(resp); err != nil {
		s.log.Error("daemon: write error response failed", "error", err)
	}
}

func (s *Server) writeNotification(n protocol.Notification) {
	if err := s.framer.WriteNotification(n); err != nil {
		s.log.Error("daemon: write notification failed", "error", err)
	}
}
