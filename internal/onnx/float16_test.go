package onnx

import (
	"math"
	"testing"
)

func TestFloat16ToFloat32(t *testing.T) {
	tests := []struct {
		name string
		h    uint16
		want float32
	}{
		{name: "positive zero", h: 0x0000, want: 0.0},
		{name: "negative zero", h: 0x8000, want: float32(math.Copysign(0, -1))},
		{name: "one", h: 0x3c00, want: 1.0},
		{name: "negative one", h: 0xbc00, want: -1.0},
		{name: "half", h: 0x3800, want: 0.5},
		{name: "two", h: 0x4000, want: 2.0},
		{name: "max normal", h: 0x7bff, want: 65504.0},
		{name: "positive infinity", h: 0x7c00, want: float32(math.Inf(1))},
		{name: "negative infinity", h: 0xfc00, want: float32(math.Inf(-1))},
		{name: "NaN", h: 0x7e00, want: float32(math.NaN())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float16ToFloat32(tt.h)
			if math.IsNaN(float64(tt.want)) {
				if !math.IsNaN(float64(got)) {
					t.Fatalf("float16ToFloat32(0x%04x) = %v; want NaN", tt.h, got)
				}
				return
			}

			if got != tt.want {
				t.Fatalf("float16ToFloat32(0x%04x) = %v; want %v", tt.h, got, tt.want)
			}
		})
	}
}

func TestPromoteFloat16(t *testing.T) {
	got := PromoteFloat16([]uint16{0x3c00, 0xc000, 0x3800})
	want := []float32{1.0, -2.0, 0.5}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PromoteFloat16()[%d] = %v; want %v", i, got[i], want[i])
		}
	}
}

func TestExtractFloat32Promoting_Float32Passthrough(t *testing.T) {
	tn, err := NewTensor([]float32{1, 2, 3}, []int64{3})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	got, err := ExtractFloat32Promoting(tn)
	if err != nil {
		t.Fatalf("ExtractFloat32Promoting: %v", err)
	}

	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestExtractFloat32Promoting_Float16Promotes(t *testing.T) {
	tn, err := NewFloat16Tensor([]uint16{0x3c00, 0x4000}, []int64{2})
	if err != nil {
		t.Fatalf("NewFloat16Tensor: %v", err)
	}

	got, err := ExtractFloat32Promoting(tn)
	if err != nil {
		t.Fatalf("ExtractFloat32Promoting: %v", err)
	}

	if len(got) != 2 || got[0] != 1.0 || got[1] != 2.0 {
		t.Fatalf("unexpected result %v", got)
	}
}
