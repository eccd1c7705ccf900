package acestep

import (
	"context"
	"fmt"

	"github.com/willibrandon/lofid/internal/onnx"
	"github.com/willibrandon/lofid/internal/text"
	"github.com/willibrandon/lofid/internal/tokenizer"
)

// OnnxTextEncoder runs the text encoder and transformer context graphs in
// sequence to produce a conditioning TextContext.
type OnnxTextEncoder struct {
	Tokenizer   tokenizer.Tokenizer
	TextEncoder *onnx.Runner
	Transformer *onnx.Runner
}

func (e *OnnxTextEncoder) Encode(ctx context.Context, prompt string) (TextContext, error) {
	if prompt != "" {
		normalized, err := text.Normalize(prompt)
		if err != nil {
			return TextContext{}, fmt.Errorf("acestep: normalize prompt: %w", err)
		}

		prompt = normalized
	}

	ids, err := e.Tokenizer.Encode(prompt)
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: tokenize prompt: %w", err)
	}

	if len(ids) == 0 {
		ids = []int64{0}
	}

	shape := []int64{1, int64(len(ids))}

	idsTensor, err := onnx.NewTensor(ids, shape)
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: input_ids tensor: %w", err)
	}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}

	maskTensor, err := onnx.NewTensor(mask, shape)
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: attention_mask tensor: %w", err)
	}

	encOut, err := e.TextEncoder.Run(ctx, map[string]*onnx.Tensor{
		"input_ids":      idsTensor,
		"attention_mask": maskTensor,
	})
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: text encoder: %w", err)
	}

	hiddenStates, ok := encOut["hidden_states"]
	if !ok {
		return TextContext{}, fmt.Errorf("acestep: text encoder missing hidden_states output")
	}

	ctxOut, err := e.Transformer.Run(ctx, map[string]*onnx.Tensor{
		"hidden_states":  hiddenStates,
		"attention_mask": maskTensor,
	})
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: transformer context: %w", err)
	}

	contextTensor, ok := ctxOut["context"]
	if !ok {
		return TextContext{}, fmt.Errorf("acestep: transformer missing context output")
	}

	contextMask, ok := ctxOut["context_mask"]
	if !ok {
		return TextContext{}, fmt.Errorf("acestep: transformer missing context_mask output")
	}

	hiddenFloat, err := onnx.ExtractFloat32Promoting(contextTensor)
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: extract context: %w", err)
	}

	maskFloat, err := onnx.ExtractFloat32Promoting(contextMask)
	if err != nil {
		return TextContext{}, fmt.Errorf("acestep: extract context_mask: %w", err)
	}

	return TextContext{
		Hidden:      hiddenFloat,
		HiddenShape: contextTensor.Shape(),
		Mask:        maskFloat,
		MaskShape:   contextMask.Shape(),
	}, nil
}

// OnnxDenoiser wraps the transformer's noise-prediction graph.
type OnnxDenoiser struct {
	Runner *onnx.Runner
}

func (d *OnnxDenoiser) PredictNoise(ctx context.Context, latent []float32, frameLength int, timestep float64, textCtx TextContext) ([]float32, error) {
	latentTensor, err := onnx.NewTensor(latent, []int64{1, LatentChannels, LatentHeight, int64(frameLength)})
	if err != nil {
		return nil, fmt.Errorf("acestep: latent tensor: %w", err)
	}

	timestepTensor, err := onnx.NewTensor([]float32{float32(timestep)}, []int64{1})
	if err != nil {
		return nil, fmt.Errorf("acestep: timestep tensor: %w", err)
	}

	contextTensor, err := onnx.NewTensor(textCtx.Hidden, textCtx.HiddenShape)
	if err != nil {
		return nil, fmt.Errorf("acestep: context tensor: %w", err)
	}

	maskTensor, err := onnx.NewTensor(textCtx.Mask, textCtx.MaskShape)
	if err != nil {
		return nil, fmt.Errorf("acestep: context mask tensor: %w", err)
	}

	out, err := d.Runner.Run(ctx, map[string]*onnx.Tensor{
		"latent":       latentTensor,
		"timestep":     timestepTensor,
		"context":      contextTensor,
		"context_mask": maskTensor,
	})
	if err != nil {
		return nil, fmt.Errorf("acestep: predict noise: %w", err)
	}

	noise, ok := out["noise_pred"]
	if !ok {
		return nil, fmt.Errorf("acestep: denoiser missing noise_pred output")
	}

	return onnx.ExtractFloat32Promoting(noise)
}

// OnnxChunkDecoder wraps the DCAE latent decoder graph, decoding one
// fixed-window latent chunk per call.
type OnnxChunkDecoder struct {
	Runner *onnx.Runner
}

func (d *OnnxChunkDecoder) DecodeChunk(ctx context.Context, latent []float32) ([]float32, int, error) {
	frameLength := len(latent) / (LatentChannels * LatentHeight)

	latentTensor, err := onnx.NewTensor(latent, []int64{1, LatentChannels, LatentHeight, int64(frameLength)})
	if err != nil {
		return nil, 0, fmt.Errorf("acestep: decoder latent tensor: %w", err)
	}

	out, err := d.Runner.Run(ctx, map[string]*onnx.Tensor{"latents": latentTensor})
	if err != nil {
		return nil, 0, fmt.Errorf("acestep: DCAE decode: %w", err)
	}

	mel, ok := out["mel_spectrogram"]
	if !ok {
		return nil, 0, fmt.Errorf("acestep: decoder missing mel_spectrogram output")
	}

	melShape := mel.Shape()

	melData, err := onnx.ExtractFloat32Promoting(mel)
	if err != nil {
		return nil, 0, fmt.Errorf("acestep: extract mel_spectrogram: %w", err)
	}

	switch len(melShape) {
	case 4:
		timeFrames := int(melShape[3])
		return TakeFirstChannel(melData, MelBins, timeFrames), timeFrames, nil
	case 3:
		timeFrames := int(melShape[2])
		return melData, timeFrames, nil
	default:
		return nil, 0, fmt.Errorf("acestep: unexpected DCAE output rank %d", len(melShape))
	}
}

// OnnxVocoder wraps the vocoder graph that synthesizes PCM from mel frames.
type OnnxVocoder struct {
	Runner *onnx.Runner
}

func (v *OnnxVocoder) Synthesize(ctx context.Context, mel []float32, melBins, timeFrames int) ([]float32, error) {
	melTensor, err := onnx.NewTensor(mel, []int64{1, int64(melBins), int64(timeFrames)})
	if err != nil {
		return nil, fmt.Errorf("acestep: mel tensor: %w", err)
	}

	out, err := v.Runner.Run(ctx, map[string]*onnx.Tensor{"mel_spectrogram": melTensor})
	if err != nil {
		return nil, fmt.Errorf("acestep: vocoder: %w", err)
	}

	audio, ok := out["audio_values"]
	if !ok {
		return nil, fmt.Errorf("acestep: vocoder missing audio_values output")
	}

	return onnx.ExtractFloat32Promoting(audio)
}
