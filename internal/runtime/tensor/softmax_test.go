package tensor

import (
	"math"
	"testing"
)

func TestSoftmax1D_SumsToOne(t *testing.T) {
	out := Softmax1D([]float32{1, 2, 3, 4})

	var sum float64
	for _, v := range out {
		sum += float64(v)
	}

	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("softmax sum = %v, want 1", sum)
	}

	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			t.Errorf("softmax must be increasing for increasing logits, got %v", out)
		}
	}
}

func TestSoftmax1D_LargeLogitsStable(t *testing.T) {
	out := Softmax1D([]float32{1000, 1000})

	for i, v := range out {
		if math.IsNaN(float64(v)) || math.Abs(float64(v)-0.5) > 1e-5 {
			t.Errorf("softmax[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestSoftmax_LastAxisRows(t *testing.T) {
	tt, _ := New([]float32{0, 0, 1000, 1000}, []int64{2, 2})

	out, err := tt.Softmax()
	if err != nil {
		t.Fatalf("Softmax: %v", err)
	}

	for i, v := range out.RawData() {
		if math.Abs(float64(v)-0.5) > 1e-5 {
			t.Errorf("Softmax[%d] = %v, want 0.5", i, v)
		}
	}
}
