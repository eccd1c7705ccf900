package musicgen

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/willibrandon/lofid/internal/onnx"
)

const testVocab = 8
const testLayers = 2

// fakeDecoderModel simulates the full decoder_model.onnx graph: it returns
// logits for an 8-row batch plus a present.* KV cache entry per layer.
type fakeDecoderModel struct{}

func (fakeDecoderModel) Run(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	return fakeDecoderOutputs(inputs)
}

type fakeDecoderWithPast struct {
	calls int
}

func (f *fakeDecoderWithPast) Run(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	f.calls++
	return fakeDecoderOutputs(inputs)
}

func fakeDecoderOutputs(inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	idsTensor := inputs["input_ids"]
	rows := idsTensor.Shape()[0]

	logitsData := make([]float32, int(rows)*testVocab)
	for i := range logitsData {
		logitsData[i] = float32(i%testVocab) * 0.01
	}

	logits, err := onnx.NewTensor(logitsData, []int64{rows, 1, testVocab})
	if err != nil {
		return nil, err
	}

	out := map[string]*onnx.Tensor{"logits": logits}

	for j := 0; j < testLayers; j++ {
		for _, kind := range [...]string{"decoder.key", "decoder.value", "encoder.key", "encoder.value"} {
			t, err := onnx.NewTensor([]float32{1, 2, 3}, []int64{1, 3})
			if err != nil {
				return nil, err
			}

			out[presentName(j, kind)] = t
		}
	}

	return out, nil
}

func presentName(layer int, kind string) string {
	return "present." + itoa(layer) + "." + kind
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}

type fakeCodec struct {
	decodedFrames int
}

func (f *fakeCodec) Run(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	idsTensor := inputs["input_ids"]
	shape := idsTensor.Shape()
	seqLen := shape[3]
	f.decodedFrames = int(seqLen)

	audio := make([]float32, seqLen*2)

	out, err := onnx.NewTensor(audio, []int64{int64(len(audio))})
	if err != nil {
		return nil, err
	}

	return map[string]*onnx.Tensor{"audio_values": out}, nil
}

func TestDriverGenerateProducesAudio(t *testing.T) {
	withPast := &fakeDecoderWithPast{}
	codecRunner := &fakeCodec{}

	d := &Driver{
		DecoderModel:    fakeDecoderModel{},
		DecoderWithPast: withPast,
		Codec:           &CodecDecoder{Runner: codecRunner},
		NumHiddenLayers: testLayers,
		PadTokenID:      0,
	}

	encHidden, err := onnx.NewTensor([]float32{0.1, 0.2, 0.3, 0.4}, []int64{1, 2, 2})
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}

	encMask, err := onnx.NewTensor([]int64{1, 1}, []int64{1, 2})
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 1))

	var progressCalls int

	audio, err := d.Generate(context.Background(), Params{
		EncoderHiddenStates: encHidden,
		EncoderAttnMask:     encMask,
		MaxLen:              5,
		GuidanceScale:       DefaultGuidanceScale,
		TopK:                DefaultTopK,
		RNG:                 rng,
	}, func(current, total int) {
		progressCalls++
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// generationLen = maxLen+3 = 8 steps; after the warm-up push (n=1), each
	// of the 8 loop steps pushes once more (n=2..9), and de-delay fires
	// once n>=4, so frames = 9-4+1 = 6.
	if codecRunner.decodedFrames != 6 {
		t.Fatalf("expected 6 de-delayed frames reaching the codec, got %d", codecRunner.decodedFrames)
	}

	if len(audio) == 0 {
		t.Fatal("expected non-empty audio")
	}

	if progressCalls != 6 {
		t.Fatalf("expected 6 progress callbacks (one per emitted frame), got %d", progressCalls)
	}

	// generationLen=8 -> decoder_with_past called 8 times.
	if withPast.calls != 8 {
		t.Fatalf("expected 8 decoder_with_past calls, got %d", withPast.calls)
	}
}
