package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/willibrandon/lofid/internal/acestep"
	"github.com/willibrandon/lofid/internal/config"
	"github.com/willibrandon/lofid/internal/model"
	"github.com/willibrandon/lofid/internal/musicgen"
	"github.com/willibrandon/lofid/internal/onnx"
	"github.com/willibrandon/lofid/internal/tokenizer"
)

// Named graphs each backend's manifest.json is expected to declare.
const (
	graphMusicgenTextEncoder     = "text_encoder"
	graphMusicgenDecoderModel    = "decoder_model"
	graphMusicgenDecoderWithPast = "decoder_with_past"
	graphMusicgenCodec           = "audio_codec"

	graphAceStepTextEncoder = "text_encoder"
	graphAceStepTransformer = "transformer"
	graphAceStepDenoiser    = "denoiser"
	graphAceStepDecoder     = "dcae_decoder"
	graphAceStepVocoder     = "vocoder"
)

// musicgenConfig mirrors the subset of a HuggingFace-style config.json the
// split-decoder loop needs.
type musicgenConfig struct {
	NumHiddenLayers int   `json:"num_hidden_layers"`
	PadTokenID      int64 `json:"pad_token_id"`
}

// defaultMusicgenConfig matches facebookresearch/musicgen-small's decoder:
// 24 transformer layers, codebook vocabulary padded at id 2048.
var defaultMusicgenConfig = musicgenConfig{NumHiddenLayers: 24, PadTokenID: 2048}

func loadMusicgenConfig(modelDir string) musicgenConfig {
	data, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return defaultMusicgenConfig
	}

	cfg := defaultMusicgenConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaultMusicgenConfig
	}

	return cfg
}

// ortRunnerConfig bundles the ONNX Runtime settings LoadBundle takes from
// the daemon config. Only LibraryPath reaches the onnx.RunnerConfig of each
// NewRunner call; Threads is carried but not applied to the sessions.
type ortRunnerConfig struct {
	LibraryPath string
	Threads     int
}

// LoadBundle loads the requested backend's full generation pipeline using
// cfg's model directories and ONNX Runtime settings. Shared by the worker's
// hot-swap path and the CLI's one-shot generate command.
func LoadBundle(cfg config.Config, backend string) (Bundle, error) {
	rt, err := onnx.Bootstrap(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("daemon: onnx runtime: %w", err)
	}

	modelDir := ModelDirFor(cfg, backend)
	rtCfg := ortRunnerConfig{LibraryPath: rt.LibraryPath, Threads: cfg.Daemon.Threads}

	switch backend {
	case config.BackendMusicgen:
		return LoadMusicgenBundle(modelDir, rtCfg)
	case config.BackendAceStep:
		return LoadAceStepBundle(modelDir, rtCfg)
	default:
		return nil, fmt.Errorf("daemon: unknown backend %q", backend)
	}
}

// MusicgenBundle implements Bundle for the autoregressive backend.
type MusicgenBundle struct {
	driver       *musicgen.Driver
	textEncoder  *musicgen.TextEncoder
	runners      []*onnx.Runner
	modelVersion string
}

// LoadMusicgenBundle ensures weights are present, loads the manifest-driven
// ONNX sessions, and wires the text encoder, split decoder, and codec into
// a Driver.
func LoadMusicgenBundle(modelDir string, cfg ortRunnerConfig) (*MusicgenBundle, error) {
	if err := model.EnsurePresent(modelDir); err != nil {
		return nil, fmt.Errorf("daemon: musicgen weights: %w", err)
	}

	sm, err := onnx.NewSessionManager(filepath.Join(modelDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("daemon: musicgen manifest: %w", err)
	}

	runnerCfg := onnx.RunnerConfig{LibraryPath: cfg.LibraryPath}

	textEncoderRunner, err := newNamedRunner(sm, graphMusicgenTextEncoder, runnerCfg)
	if err != nil {
		return nil, err
	}

	decoderModelRunner, err := newNamedRunner(sm, graphMusicgenDecoderModel, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		return nil, err
	}

	decoderWithPastRunner, err := newNamedRunner(sm, graphMusicgenDecoderWithPast, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		decoderModelRunner.Close()
		return nil, err
	}

	codecRunner, err := newNamedRunner(sm, graphMusicgenCodec, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		decoderModelRunner.Close()
		decoderWithPastRunner.Close()
		return nil, err
	}

	tok, err := tokenizer.NewSentencePieceTokenizer(filepath.Join(modelDir, "tokenizer.model"))
	if err != nil {
		textEncoderRunner.Close()
		decoderModelRunner.Close()
		decoderWithPastRunner.Close()
		codecRunner.Close()
		return nil, fmt.Errorf("daemon: musicgen tokenizer: %w", err)
	}

	modelConfig := loadMusicgenConfig(modelDir)

	return &MusicgenBundle{
		driver: &musicgen.Driver{
			DecoderModel:    decoderModelRunner,
			DecoderWithPast: decoderWithPastRunner,
			Codec:           &musicgen.CodecDecoder{Runner: codecRunner},
			NumHiddenLayers: modelConfig.NumHiddenLayers,
			PadTokenID:      modelConfig.PadTokenID,
		},
		textEncoder:  &musicgen.TextEncoder{Tokenizer: tok, Runner: textEncoderRunner},
		runners:      []*onnx.Runner{textEncoderRunner, decoderModelRunner, decoderWithPastRunner, codecRunner},
		modelVersion: detectModelVersion(modelDir, "musicgen"),
	}, nil
}

func (b *MusicgenBundle) Backend() string      { return "musicgen" }
func (b *MusicgenBundle) ModelVersion() string { return b.modelVersion }
func (b *MusicgenBundle) SampleRate() int      { return MusicgenSampleRate }

func (b *MusicgenBundle) DurationRange() (int, int) {
	return MusicgenMinDurationSec, MusicgenMaxDurationSec
}

func (b *MusicgenBundle) Generate(ctx context.Context, p GenerateJobParams, onProgress func(current, total int)) ([]float32, error) {
	hidden, mask, err := b.textEncoder.Encode(ctx, p.Prompt)
	if err != nil {
		return nil, fmt.Errorf("daemon: musicgen text encode: %w", err)
	}

	maxLen := p.DurationSec * MusicgenFramesPerSec

	// guidance_scale is a diffusion-only request parameter, so the
	// autoregressive backend always mixes at its own default scale.
	return b.driver.Generate(ctx, musicgen.Params{
		EncoderHiddenStates: hidden,
		EncoderAttnMask:     mask,
		MaxLen:              maxLen,
		GuidanceScale:       musicgen.DefaultGuidanceScale,
		TopK:                musicgen.DefaultTopK,
		RNG:                 newSeededRNG(p.Seed),
	}, onProgress)
}

func (b *MusicgenBundle) Close() error {
	return closeRunners(b.runners)
}

// AceStepBundle implements Bundle for the diffusion backend.
type AceStepBundle struct {
	driver       *acestep.Driver
	runners      []*onnx.Runner
	modelVersion string
}

// LoadAceStepBundle ensures weights are present and wires the diffusion
// pipeline's text encoder, denoiser, decoder, and vocoder.
func LoadAceStepBundle(modelDir string, cfg ortRunnerConfig) (*AceStepBundle, error) {
	if err := model.EnsurePresent(modelDir); err != nil {
		return nil, fmt.Errorf("daemon: ace_step weights: %w", err)
	}

	sm, err := onnx.NewSessionManager(filepath.Join(modelDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("daemon: ace_step manifest: %w", err)
	}

	runnerCfg := onnx.RunnerConfig{LibraryPath: cfg.LibraryPath}

	textEncoderRunner, err := newNamedRunner(sm, graphAceStepTextEncoder, runnerCfg)
	if err != nil {
		return nil, err
	}

	transformerRunner, err := newNamedRunner(sm, graphAceStepTransformer, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		return nil, err
	}

	denoiserRunner, err := newNamedRunner(sm, graphAceStepDenoiser, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		transformerRunner.Close()
		return nil, err
	}

	decoderRunner, err := newNamedRunner(sm, graphAceStepDecoder, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		transformerRunner.Close()
		denoiserRunner.Close()
		return nil, err
	}

	vocoderRunner, err := newNamedRunner(sm, graphAceStepVocoder, runnerCfg)
	if err != nil {
		textEncoderRunner.Close()
		transformerRunner.Close()
		denoiserRunner.Close()
		decoderRunner.Close()
		return nil, err
	}

	tok, err := tokenizer.NewSentencePieceTokenizer(filepath.Join(modelDir, "tokenizer.model"))
	if err != nil {
		textEncoderRunner.Close()
		transformerRunner.Close()
		denoiserRunner.Close()
		decoderRunner.Close()
		vocoderRunner.Close()
		return nil, fmt.Errorf("daemon: ace_step tokenizer: %w", err)
	}

	return &AceStepBundle{
		driver: &acestep.Driver{
			TextEncoder: &acestep.OnnxTextEncoder{Tokenizer: tok, TextEncoder: textEncoderRunner, Transformer: transformerRunner},
			Denoiser:    &acestep.OnnxDenoiser{Runner: denoiserRunner},
			Decoder:     &acestep.OnnxChunkDecoder{Runner: decoderRunner},
			Vocoder:     &acestep.OnnxVocoder{Runner: vocoderRunner},
		},
		runners:      []*onnx.Runner{textEncoderRunner, transformerRunner, denoiserRunner, decoderRunner, vocoderRunner},
		modelVersion: detectModelVersion(modelDir, "ace_step"),
	}, nil
}

func (b *AceStepBundle) Backend() string      { return "ace_step" }
func (b *AceStepBundle) ModelVersion() string { return b.modelVersion }
func (b *AceStepBundle) SampleRate() int      { return AceStepSampleRate }

func (b *AceStepBundle) DurationRange() (int, int) {
	return AceStepMinDurationSec, AceStepMaxDurationSec
}

func (b *AceStepBundle) Generate(ctx context.Context, p GenerateJobParams, onProgress func(current, total int)) ([]float32, error) {
	scheduler, ok := acestep.ParseSchedulerName(p.Scheduler)
	if !ok {
		scheduler = acestep.SchedulerEuler
	}

	inferenceSteps := p.InferenceSteps
	if inferenceSteps == 0 {
		inferenceSteps = acestep.DefaultInferenceSteps
	}

	guidanceScale := p.GuidanceScale
	if guidanceScale == 0 {
		guidanceScale = acestep.DefaultGuidanceScale
	}

	return b.driver.Generate(ctx, acestep.Params{
		Prompt:         p.Prompt,
		DurationSec:    float64(p.DurationSec),
		Seed:           p.Seed,
		InferenceSteps: inferenceSteps,
		Scheduler:      scheduler,
		GuidanceScale:  guidanceScale,
	}, onProgress)
}

func (b *AceStepBundle) Close() error {
	return closeRunners(b.runners)
}

func newNamedRunner(sm *onnx.SessionManager, name string, cfg onnx.RunnerConfig) (*onnx.Runner, error) {
	session, ok := sm.Session(name)
	if !ok {
		return nil, fmt.Errorf("daemon: manifest missing graph %q", name)
	}

	runner, err := onnx.NewRunner(session, cfg)
	if err != nil {
		return nil, fmt.Errorf("daemon: load graph %q: %w", name, err)
	}

	return runner, nil
}

// closeRunners closes every runner, recovering a panic from any individual
// Close into an error rather than letting it take down the whole release
// sequence, and aggregates every failure via multierr so a hot-swap or
// shutdown reports all of them instead of only the first.
func closeRunners(runners []*onnx.Runner) (err error) {
	for _, r := range runners {
		err = multierr.Append(err, safeClose(r))
	}

	return err
}

func safeClose(r *onnx.Runner) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("daemon: panic closing runner %q: %v", r.Name(), rec)
		}
	}()

	r.Close()

	return nil
}

// detectModelVersion reads a "version" field out of the model directory's
// config.json, falling back to "<backend>-unknown" when absent.
func detectModelVersion(modelDir, backend string) string {
	data, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return backend + "-unknown"
	}

	var v struct {
		Version string `json:"version"`
	}

	if err := json.Unmarshal(data, &v); err != nil || v.Version == "" {
		return backend + "-unknown"
	}

	return v.Version
}

// requiredFiles lists the files BackendAvailable checks for before
// attempting to load a backend.
var requiredFiles = map[string][]string{
	"musicgen": {"manifest.json", "tokenizer.model"},
	"ace_step": {"manifest.json", "tokenizer.model"},
}

// BackendAvailable reports whether every file requiredFiles names for
// backend exists under modelDir, without loading any ONNX session.
func BackendAvailable(backend, modelDir string) bool {
	files, ok := requiredFiles[backend]
	if !ok {
		return false
	}

	for _, f := range files {
		if _, err := os.Stat(filepath.Join(modelDir, f)); err != nil {
			return false
		}
	}

	return true
}
