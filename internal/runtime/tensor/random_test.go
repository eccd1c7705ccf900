package tensor

import (
	"math"
	"testing"
)

func TestRandn_DeterministicForSeed(t *testing.T) {
	a, err := Randn([]int64{1, 8, 16, 10}, 42)
	if err != nil {
		t.Fatalf("Randn: %v", err)
	}

	b, err := Randn([]int64{1, 8, 16, 10}, 42)
	if err != nil {
		t.Fatalf("Randn: %v", err)
	}

	for i, v := range a.RawData() {
		if v != b.RawData()[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, v, b.RawData()[i])
		}
	}

	c, err := Randn([]int64{1, 8, 16, 10}, 43)
	if err != nil {
		t.Fatalf("Randn: %v", err)
	}

	same := true
	for i, v := range a.RawData() {
		if v != c.RawData()[i] {
			same = false
			break
		}
	}

	if same {
		t.Error("different seeds produced identical noise")
	}
}

func TestRandn_RoughlyStandard(t *testing.T) {
	tt, err := Randn([]int64{1, 100, 100}, 7)
	if err != nil {
		t.Fatalf("Randn: %v", err)
	}

	mean := MeanVec(tt.RawData())
	if math.Abs(mean) > 0.05 {
		t.Errorf("mean = %v, want ~0", mean)
	}

	var sq float64
	for _, v := range tt.RawData() {
		sq += float64(v) * float64(v)
	}

	variance := sq/float64(tt.ElemCount()) - mean*mean
	if math.Abs(variance-1) > 0.1 {
		t.Errorf("variance = %v, want ~1", variance)
	}
}
