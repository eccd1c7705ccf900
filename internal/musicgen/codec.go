package musicgen

import (
	"context"
	"fmt"

	"github.com/willibrandon/lofid/internal/onnx"
)

// CodecDecoder decodes a de-delayed token sequence into PCM audio samples
// through an ONNX EnCodec decoder graph.
type CodecDecoder struct {
	Runner GraphRunner
}

// Decode transposes tokens (one [4]int64 per timestep) into the codec's
// expected [1, 1, 4, seq_len] layout and returns the synthesized samples.
func (c *CodecDecoder) Decode(ctx context.Context, tokens [][4]int64) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	seqLen := len(tokens)
	transposed := make([]int64, 4*seqLen)

	for i, frame := range tokens {
		for j := 0; j < 4; j++ {
			transposed[j*seqLen+i] = frame[j]
		}
	}

	inputTensor, err := onnx.NewTensor(transposed, []int64{1, 1, 4, int64(seqLen)})
	if err != nil {
		return nil, fmt.Errorf("musicgen: codec input tensor: %w", err)
	}

	out, err := c.Runner.Run(ctx, map[string]*onnx.Tensor{"input_ids": inputTensor})
	if err != nil {
		return nil, fmt.Errorf("musicgen: audio codec inference: %w", err)
	}

	audio, ok := out["audio_values"]
	if !ok {
		return nil, fmt.Errorf("musicgen: audio codec missing audio_values output")
	}

	samples, err := onnx.ExtractFloat32Promoting(audio)
	if err != nil {
		return nil, fmt.Errorf("musicgen: extract audio_values: %w", err)
	}

	return samples, nil
}
