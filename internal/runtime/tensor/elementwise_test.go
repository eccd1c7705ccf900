package tensor

import (
	"math"
	"testing"
)

func TestTensorAddSubScale(t *testing.T) {
	a, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	b, _ := New([]float32{10, 20, 30, 40}, []int64{2, 2})

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	wantSum := []float32{11, 22, 33, 44}
	for i, v := range sum.RawData() {
		if v != wantSum[i] {
			t.Errorf("Add[%d] = %v, want %v", i, v, wantSum[i])
		}
	}

	diff, err := b.Sub(a)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	wantDiff := []float32{9, 18, 27, 36}
	for i, v := range diff.RawData() {
		if v != wantDiff[i] {
			t.Errorf("Sub[%d] = %v, want %v", i, v, wantDiff[i])
		}
	}

	half := a.Scale(0.5)

	wantHalf := []float32{0.5, 1, 1.5, 2}
	for i, v := range half.RawData() {
		if v != wantHalf[i] {
			t.Errorf("Scale[%d] = %v, want %v", i, v, wantHalf[i])
		}
	}
}

func TestTensorAdd_ShapeMismatch(t *testing.T) {
	a, _ := New([]float32{1, 2}, []int64{2})
	b, _ := New([]float32{1, 2}, []int64{1, 2})

	if _, err := a.Add(b); err == nil {
		t.Fatal("expected rank-mismatch error")
	}
}

func TestLerpVec(t *testing.T) {
	uncond := []float32{0, 0, 2}
	cond := []float32{1, -1, 4}

	// t=0 returns a, t=1 returns b, t=3 extrapolates past b.
	cases := []struct {
		t    float64
		want []float32
	}{
		{0, []float32{0, 0, 2}},
		{1, []float32{1, -1, 4}},
		{3, []float32{3, -3, 8}},
	}

	for _, tc := range cases {
		got := LerpVec(uncond, cond, tc.t)
		for i, v := range got {
			if math.Abs(float64(v-tc.want[i])) > 1e-6 {
				t.Errorf("LerpVec(t=%v)[%d] = %v, want %v", tc.t, i, v, tc.want[i])
			}
		}
	}
}
