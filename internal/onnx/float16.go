package onnx

import (
	"fmt"
	"math"
)

// float16ToFloat32 decodes one IEEE-754 binary16 bit pattern to float32,
// handling subnormals and Inf/NaN. Ported from the bit-manipulation used by
// the safetensors loader for its F16 tensor dtype; no dependency in this
// module's corpus exposes half-float decode as a library call, so this is
// hand-written rather than pulled in from elsewhere (see DESIGN.md).
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x03ff)

	var bits uint32

	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			// Subnormal: normalize.
			e := int32(-14)

			for (frac & 0x0400) == 0 {
				frac <<= 1
				e--
			}

			frac &= 0x03ff
			exp32 := uint32(e + 127)
			bits = (sign << 31) | (exp32 << 23) | (frac << 13)
		}
	case 0x1f:
		// Inf / NaN.
		bits = (sign << 31) | 0x7f800000 | (frac << 13)
	default:
		exp32 := exp + (127 - 15)
		bits = (sign << 31) | (exp32 << 23) | (frac << 13)
	}

	return math.Float32frombits(bits)
}

// PromoteFloat16 decodes a slice of half-precision bit patterns to float32.
func PromoteFloat16(data []uint16) []float32 {
	out := make([]float32, len(data))
	for i, h := range data {
		out[i] = float16ToFloat32(h)
	}

	return out
}

// ExtractFloat32Promoting extracts a tensor's data as float32, promoting
// from float16 if that is the tensor's native dtype. Graphs such as the
// audio codec decoder and the autoregressive decoder's fp16 weight variant
// emit either dtype depending on the loaded checkpoint; callers that only
// care about the resulting float32 values use this instead of ExtractFloat32
// so both variants are handled uniformly.
func ExtractFloat32Promoting(output any) ([]float32, error) {
	if data, err := ExtractFloat32(output); err == nil {
		return data, nil
	}

	v, err := unwrapData(output)
	if err != nil {
		return nil, err
	}

	switch out := v.(type) {
	case []uint16:
		return PromoteFloat16(out), nil
	case Tensor:
		return extractFloat16Tensor(&out)
	case *Tensor:
		if out == nil {
			return nil, fmt.Errorf("expected *Tensor output, got nil")
		}

		return extractFloat16Tensor(out)
	default:
		return nil, fmt.Errorf("expected float32 or float16 output, got %T", v)
	}
}

func extractFloat16Tensor(out *Tensor) ([]float32, error) {
	if out.dtype != DTypeFloat16 {
		return nil, fmt.Errorf("expected float16 tensor, got %s", out.dtype)
	}

	data, ok := out.data.([]uint16)
	if !ok {
		return nil, fmt.Errorf("float16 tensor has unexpected backing type %T", out.data)
	}

	return PromoteFloat16(data), nil
}
