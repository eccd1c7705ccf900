package musicgen

import (
	"context"
	"fmt"

	"github.com/willibrandon/lofid/internal/onnx"
)

// GraphRunner is the subset of *onnx.Runner the driver needs, narrowed so
// tests can substitute a fake ONNX session.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error)
}

// Driver runs the split-decoder autoregressive generation loop with KV
// cache reuse: one warm-up pass through the full decoder, then
// decoder-with-past steps that only grow the self-attention halves.
type Driver struct {
	// DecoderModel is the full (no-past) decoder graph used for the first
	// (warm-up) pass.
	DecoderModel GraphRunner
	// DecoderWithPast is the KV-cache-accepting decoder graph used for
	// every subsequent step.
	DecoderWithPast GraphRunner
	Codec           *CodecDecoder

	NumHiddenLayers int
	PadTokenID      int64
}

// Params configures one autoregressive generation run.
type Params struct {
	EncoderHiddenStates *onnx.Tensor
	EncoderAttnMask     *onnx.Tensor
	MaxLen              int
	GuidanceScale       float64
	TopK                int
	RNG                 RNG
}

// ProgressFunc reports (framesGenerated, targetFrames) as the loop advances.
type ProgressFunc func(framesGenerated, targetFrames int)

// Generate drives the warm-up pass, the KV-cache autoregressive loop, and
// the final codec decode, returning synthesized PCM samples.
func (d *Driver) Generate(ctx context.Context, p Params, onProgress ProgressFunc) ([]float32, error) {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	generationLen := p.MaxLen + (numCodebooks - 1)

	dupHidden, err := duplicateFloat32Batch(p.EncoderHiddenStates)
	if err != nil {
		return nil, fmt.Errorf("musicgen: duplicate encoder_hidden_states: %w", err)
	}

	dupMask, err := duplicateInt64Batch(p.EncoderAttnMask)
	if err != nil {
		return nil, fmt.Errorf("musicgen: duplicate encoder_attention_mask: %w", err)
	}

	initialIDs := make([]int64, numCodebooks*2)
	for i := range initialIDs {
		initialIDs[i] = d.PadTokenID
	}

	initialTensor, err := onnx.NewTensor(initialIDs, []int64{numCodebooks * 2, 1})
	if err != nil {
		return nil, fmt.Errorf("musicgen: initial input_ids tensor: %w", err)
	}

	outputs, err := d.DecoderModel.Run(ctx, map[string]*onnx.Tensor{
		"encoder_attention_mask": dupMask,
		"encoder_hidden_states":  dupHidden,
		"input_ids":              initialTensor,
	})
	if err != nil {
		return nil, fmt.Errorf("musicgen: initial decoder inference: %w", err)
	}

	delayPattern := NewDelayPattern()

	if err := sampleAndPush(outputs, p.GuidanceScale, p.TopK, p.RNG, delayPattern); err != nil {
		return nil, err
	}

	kvCache, err := harvestKVCache(outputs, d.NumHiddenLayers)
	if err != nil {
		return nil, err
	}

	var frames [][numCodebooks]int64

	for step := 0; step < generationLen; step++ {
		ids := delayPattern.LastDelayedMasked(d.PadTokenID)

		inputIDs := make([]int64, numCodebooks*2)
		copy(inputIDs[:numCodebooks], ids[:])
		copy(inputIDs[numCodebooks:], ids[:])

		inputTensor, err := onnx.NewTensor(inputIDs, []int64{numCodebooks * 2, 1})
		if err != nil {
			return nil, fmt.Errorf("musicgen: step %d input_ids tensor: %w", step, err)
		}

		stepInputs := map[string]*onnx.Tensor{
			"input_ids":              inputTensor,
			"encoder_attention_mask": dupMask,
		}

		for k, v := range kvCache {
			stepInputs[k] = v
		}

		outputs, err = d.DecoderWithPast.Run(ctx, stepInputs)
		if err != nil {
			return nil, fmt.Errorf("musicgen: step %d decoder_with_past inference: %w", step, err)
		}

		if err := sampleAndPush(outputs, p.GuidanceScale, p.TopK, p.RNG, delayPattern); err != nil {
			return nil, fmt.Errorf("musicgen: step %d: %w", step, err)
		}

		if frame, ok := delayPattern.LastDeDelayed(); ok {
			frames = append(frames, frame)
			onProgress(len(frames), p.MaxLen)
		}

		if err := updateDecoderKV(kvCache, outputs, d.NumHiddenLayers); err != nil {
			return nil, fmt.Errorf("musicgen: step %d: %w", step, err)
		}
	}

	return d.Codec.Decode(ctx, frames)
}

func sampleAndPush(outputs map[string]*onnx.Tensor, guidanceScale float64, topK int, rng RNG, delayPattern *DelayPattern) error {
	logitsTensor, ok := outputs["logits"]
	if !ok {
		return fmt.Errorf("musicgen: logits not found in output")
	}

	rows, err := reshapeLogits(logitsTensor)
	if err != nil {
		return err
	}

	guided, err := ApplyCFG(rows, guidanceScale)
	if err != nil {
		return err
	}

	samples, err := SampleTopK(guided, topK, rng)
	if err != nil {
		return err
	}

	if len(samples) != numCodebooks {
		return fmt.Errorf("musicgen: expected %d guided logit rows, got %d", numCodebooks, len(samples))
	}

	var ids [numCodebooks]int64
	for i, s := range samples {
		ids[i] = s.TokenID
	}

	delayPattern.Push(ids)

	return nil
}

// reshapeLogits flattens a (rows, 1, vocab) logits tensor into one
// []float32 row per batch entry.
func reshapeLogits(t *onnx.Tensor) ([][]float32, error) {
	shape := t.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("musicgen: expected 3D logits tensor, got %dD", len(shape))
	}

	rows := int(shape[0])
	vocab := int(shape[2])

	data, err := onnx.ExtractFloat32Promoting(t)
	if err != nil {
		return nil, fmt.Errorf("musicgen: extract logits: %w", err)
	}

	if len(data) != rows*vocab {
		return nil, fmt.Errorf("musicgen: logits tensor shape %v does not match data length %d", shape, len(data))
	}

	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		out[r] = data[r*vocab : (r+1)*vocab]
	}

	return out, nil
}

// harvestKVCache extracts the first pass's per-layer present.* outputs
// into the past_key_values.* inputs the with-past decoder expects.
func harvestKVCache(outputs map[string]*onnx.Tensor, numHiddenLayers int) (map[string]*onnx.Tensor, error) {
	cache := make(map[string]*onnx.Tensor, numHiddenLayers*4)

	for j := 0; j < numHiddenLayers; j++ {
		for _, kind := range [...]string{"decoder.key", "decoder.value", "encoder.key", "encoder.value"} {
			src := fmt.Sprintf("present.%d.%s", j, kind)
			dst := fmt.Sprintf("past_key_values.%d.%s", j, kind)

			t, ok := outputs[src]
			if !ok {
				return nil, fmt.Errorf("musicgen: %s not found in decoder output", src)
			}

			cache[dst] = t
		}
	}

	return cache, nil
}

// updateDecoderKV replaces only the decoder key/value cache entries with
// the latest step's output; the encoder key/value entries stay frozen
// from the warm-up pass.
func updateDecoderKV(cache map[string]*onnx.Tensor, outputs map[string]*onnx.Tensor, numHiddenLayers int) error {
	for j := 0; j < numHiddenLayers; j++ {
		for _, kind := range [...]string{"decoder.key", "decoder.value"} {
			src := fmt.Sprintf("present.%d.%s", j, kind)
			dst := fmt.Sprintf("past_key_values.%d.%s", j, kind)

			t, ok := outputs[src]
			if !ok {
				return fmt.Errorf("musicgen: %s not found in decoder_with_past output", src)
			}

			cache[dst] = t
		}
	}

	return nil
}

// duplicateFloat32Batch doubles a tensor's batch (first) dimension,
// filling the new half with zeros so a single forward pass covers both
// the conditional and unconditional classifier-free-guidance rows.
func duplicateFloat32Batch(t *onnx.Tensor) (*onnx.Tensor, error) {
	data, err := onnx.ExtractFloat32Promoting(t)
	if err != nil {
		return nil, err
	}

	combined := make([]float32, len(data)*2)
	copy(combined, data)

	shape := t.Shape()
	newShape := append([]int64(nil), shape...)
	newShape[0] *= 2

	return onnx.NewTensor(combined, newShape)
}

// duplicateInt64Batch is duplicateFloat32Batch's int64 counterpart, used
// for encoder_attention_mask.
func duplicateInt64Batch(t *onnx.Tensor) (*onnx.Tensor, error) {
	data, err := onnx.ExtractInt64(t)
	if err != nil {
		return nil, err
	}

	combined := make([]int64, len(data)*2)
	copy(combined, data)

	shape := t.Shape()
	newShape := append([]int64(nil), shape...)
	newShape[0] *= 2

	return onnx.NewTensor(combined, newShape)
}
