package tensor

import (
	"math"
	"testing"
)

func TestMeanVec(t *testing.T) {
	if got := MeanVec(nil); got != 0 {
		t.Errorf("MeanVec(nil) = %v, want 0", got)
	}

	if got := MeanVec([]float32{1, 2, 3, 4}); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("MeanVec = %v, want 2.5", got)
	}
}

func TestMean_Axis(t *testing.T) {
	// (2, 3): rows [1 2 3], [4 5 6].
	tt, _ := New([]float32{1, 2, 3, 4, 5, 6}, []int64{2, 3})

	rowMeans, err := tt.Mean(1)
	if err != nil {
		t.Fatalf("Mean(1): %v", err)
	}

	if got := rowMeans.Shape(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("Mean(1) shape = %v, want [2]", got)
	}

	want := []float32{2, 5}
	for i, v := range rowMeans.RawData() {
		if v != want[i] {
			t.Errorf("Mean(1)[%d] = %v, want %v", i, v, want[i])
		}
	}

	colMeans, err := tt.Mean(0)
	if err != nil {
		t.Fatalf("Mean(0): %v", err)
	}

	wantCols := []float32{2.5, 3.5, 4.5}
	for i, v := range colMeans.RawData() {
		if v != wantCols[i] {
			t.Errorf("Mean(0)[%d] = %v, want %v", i, v, wantCols[i])
		}
	}
}

func TestMax_Axis(t *testing.T) {
	tt, _ := New([]float32{1, 9, 3, 4, 5, 6}, []int64{2, 3})

	rowMax, err := tt.Max(-1)
	if err != nil {
		t.Fatalf("Max(-1): %v", err)
	}

	want := []float32{9, 6}
	for i, v := range rowMax.RawData() {
		if v != want[i] {
			t.Errorf("Max(-1)[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestMean_BadDim(t *testing.T) {
	tt, _ := New([]float32{1, 2}, []int64{2})

	if _, err := tt.Mean(2); err == nil {
		t.Fatal("expected out-of-range dim error")
	}
}
