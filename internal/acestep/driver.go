package acestep

import (
	"context"
	"fmt"
	"time"

	"github.com/willibrandon/lofid/internal/runtime/tensor"
)

// DefaultGuidanceScale is the classifier-free guidance scale used unless a
// caller overrides it.
const DefaultGuidanceScale = 7.0

// DefaultInferenceSteps is the number of user-visible diffusion steps used
// unless a caller overrides it.
const DefaultInferenceSteps = 60

// TextContext is an encoded text prompt ready to condition the denoiser:
// an opaque hidden-state tensor plus its attention mask, both produced by
// TextEncoder.Encode.
type TextContext struct {
	Hidden      []float32
	HiddenShape []int64
	Mask        []float32
	MaskShape   []int64
}

// TextEncoder turns a prompt string into a transformer context.
type TextEncoder interface {
	Encode(ctx context.Context, prompt string) (TextContext, error)
}

// Denoiser predicts the noise residual for one diffusion step given the
// current latent, timestep, and a conditioning context.
type Denoiser interface {
	PredictNoise(ctx context.Context, latent []float32, frameLength int, timestep float64, textCtx TextContext) ([]float32, error)
}

// Vocoder synthesizes PCM audio from a mel-spectrogram.
type Vocoder interface {
	Synthesize(ctx context.Context, mel []float32, melBins, timeFrames int) ([]float32, error)
}

// Params configures one diffusion generation run.
type Params struct {
	Prompt         string
	DurationSec    float64
	Seed           uint64
	InferenceSteps int
	Scheduler      SchedulerName
	GuidanceScale  float64
}

// ProgressFunc reports (current_user_step, total_user_steps) as the
// driver advances. It is called from inside the diffusion loop.
type ProgressFunc func(currentUserStep, totalUserSteps int)

// Driver wires a text encoder, denoiser, chunked latent decoder, and
// vocoder into the full flow-matching diffusion pipeline.
type Driver struct {
	TextEncoder TextEncoder
	Denoiser    Denoiser
	Decoder     ChunkDecoder
	Vocoder     Vocoder
}

// Generate runs one end-to-end diffusion generation and returns the
// synthesized PCM samples.
func (d *Driver) Generate(ctx context.Context, p Params, onProgress ProgressFunc) ([]float32, error) {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	condCtx, err := d.TextEncoder.Encode(ctx, p.Prompt)
	if err != nil {
		return nil, fmt.Errorf("acestep: encode prompt: %w", err)
	}

	uncondCtx, err := d.TextEncoder.Encode(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("acestep: encode unconditional prompt: %w", err)
	}

	frameLength := CalculateFrameLength(p.DurationSec)

	scheduler, err := New(p.Scheduler, p.InferenceSteps, p.Seed)
	if err != nil {
		return nil, err
	}

	latent := InitializeLatent(frameLength, scheduler.Sigma(), p.Seed)

	totalUserSteps := scheduler.UserNumSteps()

	lastReported := -1

	for !scheduler.IsDone() {
		if userStep := scheduler.UserStep(); userStep != lastReported {
			onProgress(userStep, totalUserSteps)
			lastReported = userStep
		}

		timestep := scheduler.Timestep()

		condNoise, err := d.Denoiser.PredictNoise(ctx, latent, frameLength, timestep, condCtx)
		if err != nil {
			return nil, fmt.Errorf("acestep: conditional denoise: %w", err)
		}

		uncondNoise, err := d.Denoiser.PredictNoise(ctx, latent, frameLength, timestep, uncondCtx)
		if err != nil {
			return nil, fmt.Errorf("acestep: unconditional denoise: %w", err)
		}

		guided, err := applyCFG(condNoise, uncondNoise, p.GuidanceScale)
		if err != nil {
			return nil, err
		}

		latent = scheduler.Step(latent, guided)
	}

	onProgress(totalUserSteps, totalUserSteps)

	mel, timeFrames, err := DecodeLatent(ctx, d.Decoder, latent, frameLength)
	if err != nil {
		return nil, fmt.Errorf("acestep: decode latent: %w", err)
	}

	audio, err := d.Vocoder.Synthesize(ctx, mel, MelBins, timeFrames)
	if err != nil {
		return nil, fmt.Errorf("acestep: vocoder: %w", err)
	}

	return audio, nil
}

// applyCFG computes ε_g = ε_uncond + g·(ε_cond - ε_uncond) elementwise.
func applyCFG(cond, uncond []float32, guidanceScale float64) ([]float32, error) {
	if len(cond) != len(uncond) {
		return nil, fmt.Errorf("acestep: CFG shape mismatch: cond=%d uncond=%d", len(cond), len(uncond))
	}

	return tensor.LerpVec(uncond, cond, guidanceScale), nil
}

// EstimateGenerationTime mirrors the original implementation's rough
// per-request ETA before any steps have run: a fixed per-step cost plus a
// constant warm-up overhead.
func EstimateGenerationTime(inferenceSteps int) time.Duration {
	const (
		stepTime = 200 * time.Millisecond
		overhead = 2 * time.Second
	)

	return time.Duration(inferenceSteps)*stepTime + overhead
}
