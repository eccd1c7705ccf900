package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/lofid/internal/audio"
	"github.com/willibrandon/lofid/internal/daemon"
	"github.com/willibrandon/lofid/internal/protocol"
	"github.com/willibrandon/lofid/internal/trackid"
)

func newGenerateCmd() *cobra.Command {
	var prompt string
	var durationSec int
	var out string
	var seed uint64
	var pcm16 bool
	var normalize bool
	var dcBlock bool
	var fadeInMS float64
	var fadeOutMS float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a one-shot generation and write a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			params := protocol.GenerateParams{
				Prompt:      prompt,
				DurationSec: &durationSec,
				Backend:     cfg.Daemon.Backend,
			}
			if cmd.Flags().Changed("seed") {
				params.Seed = &seed
			}

			vg, verr := daemon.ValidateGenerateParams(params, cfg.Daemon)
			if verr != nil {
				return verr
			}

			modelDir := daemon.ModelDirFor(cfg, vg.Backend)
			if !daemon.BackendAvailable(vg.Backend, modelDir) {
				return fmt.Errorf("backend %q is not installed under %s", vg.Backend, modelDir)
			}

			bundle, err := daemon.LoadBundle(cfg, vg.Backend)
			if err != nil {
				return err
			}
			defer func() {
				_ = bundle.Close()
			}()

			startedAt := time.Now()

			samples, err := bundle.Generate(cmd.Context(), daemon.GenerateJobParams{
				Prompt:         vg.Prompt,
				DurationSec:    vg.DurationSec,
				Seed:           vg.Seed,
				InferenceSteps: vg.InferenceSteps,
				Scheduler:      vg.Scheduler,
				GuidanceScale:  vg.GuidanceScale,
			}, oneShotProgress(os.Stderr))
			if err != nil {
				return err
			}

			samples = applyDSP(samples, bundle.SampleRate(), dspOptions{
				Normalize: normalize,
				DCBlock:   dcBlock,
				FadeInMS:  fadeInMS,
				FadeOutMS: fadeOutMS,
			})

			var wavBytes []byte
			if pcm16 {
				wavBytes, err = audio.EncodeWAVPCM16(samples, bundle.SampleRate())
			} else {
				wavBytes, err = audio.EncodeWAVFloat32(samples, bundle.SampleRate(), false)
			}
			if err != nil {
				return err
			}

			if out == "" {
				id := trackid.Compute(vg.Prompt, vg.Seed, vg.DurationSec, bundle.ModelVersion(), vg.Backend)
				out = id + ".wav"
			}

			return writeGenerateOutput(out, wavBytes, startedAt, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Text prompt describing the music to generate")
	cmd.Flags().IntVar(&durationSec, "duration", 30, "Target audio duration in seconds")
	cmd.Flags().StringVar(&out, "output", "", "Output WAV path ('-' for stdout, default <track_id>.wav)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Generation seed (omit for a random seed)")
	cmd.Flags().BoolVar(&pcm16, "pcm16", false, "Write 16-bit PCM instead of 32-bit float samples")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Peak-normalize output audio")
	cmd.Flags().BoolVar(&dcBlock, "dc-block", false, "Apply DC-block high-pass filter")
	cmd.Flags().Float64Var(&fadeInMS, "fade-in-ms", 0, "Apply linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&fadeOutMS, "fade-out-ms", 0, "Apply linear fade-out duration in milliseconds")

	return cmd
}

type dspOptions struct {
	Normalize bool
	DCBlock   bool
	FadeInMS  float64
	FadeOutMS float64
}

// applyDSP builds the post-processing hook chain the flags ask for and runs
// it over the generated samples.
func applyDSP(samples []float32, sampleRate int, opts dspOptions) []float32 {
	var hooks []audio.Hook

	if opts.DCBlock {
		hooks = append(hooks, func(s []float32) []float32 { return audio.DCBlock(s, sampleRate) })
	}

	if opts.Normalize {
		hooks = append(hooks, audio.PeakNormalize)
	}

	if opts.FadeInMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return audio.FadeIn(s, sampleRate, opts.FadeInMS) })
	}

	if opts.FadeOutMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return audio.FadeOut(s, sampleRate, opts.FadeOutMS) })
	}

	return audio.ApplyHooks(samples, hooks...)
}

// oneShotProgress prints 5-percent-banded progress lines to w, reusing the
// daemon's band arithmetic so one-shot and protocol progress agree.
func oneShotProgress(w *os.File) func(current, total int) {
	lastBand := -1

	return func(current, total int) {
		if total <= 0 {
			return
		}

		p := 100 * current / total
		if p > 99 {
			p = 99
		}

		band := p / 5
		if band <= lastBand && current != total {
			return
		}
		lastBand = band

		_, _ = fmt.Fprintf(w, "progress: %d%% (%d/%d)\n", p, current, total)
	}
}

func writeGenerateOutput(out string, wavBytes []byte, startedAt time.Time, status *os.File) error {
	if out == "-" {
		_, err := os.Stdout.Write(wavBytes)
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	if err := os.WriteFile(out, wavBytes, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	_, _ = fmt.Fprintf(status, "wrote %s in %.1fs\n", out, time.Since(startedAt).Seconds())

	return nil
}
