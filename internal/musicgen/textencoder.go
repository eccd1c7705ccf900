package musicgen

import (
	"context"
	"fmt"

	"github.com/willibrandon/lofid/internal/onnx"
	"github.com/willibrandon/lofid/internal/text"
	"github.com/willibrandon/lofid/internal/tokenizer"
)

// TextEncoder tokenizes a prompt and runs it through the T5 text_encoder
// graph to produce the conditioning hidden state for the decoder.
type TextEncoder struct {
	Tokenizer tokenizer.Tokenizer
	Runner    GraphRunner
}

// Encode returns the encoder's last_hidden_state alongside an all-ones
// attention mask covering every token. The mask is shaped [1, tokens_len];
// the hidden state is the graph's [1, tokens_len, d_model] output.
func (e *TextEncoder) Encode(ctx context.Context, prompt string) (*onnx.Tensor, *onnx.Tensor, error) {
	prompt, err := text.Normalize(prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: normalize prompt: %w", err)
	}

	ids, err := e.Tokenizer.Encode(prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: tokenize prompt: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("musicgen: tokenizer produced no tokens for prompt")
	}

	tokensLen := int64(len(ids))

	inputIDs, err := onnx.NewTensor(ids, []int64{1, tokensLen})
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: input_ids tensor: %w", err)
	}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}

	attnMask, err := onnx.NewTensor(mask, []int64{1, tokensLen})
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: attention_mask tensor: %w", err)
	}

	out, err := e.Runner.Run(ctx, map[string]*onnx.Tensor{
		"input_ids":      inputIDs,
		"attention_mask": attnMask,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: text encoder inference: %w", err)
	}

	hidden, ok := out["last_hidden_state"]
	if !ok {
		return nil, nil, fmt.Errorf("musicgen: text encoder missing last_hidden_state output")
	}

	decoderMask, err := onnx.NewTensor(append([]int64(nil), mask...), []int64{1, tokensLen})
	if err != nil {
		return nil, nil, fmt.Errorf("musicgen: decoder attention_mask tensor: %w", err)
	}

	return hidden, decoderMask, nil
}
