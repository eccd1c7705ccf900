package tensor

import "fmt"

// Add returns t + other, element-wise. Shapes must match exactly.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if err := sameShape(t, other); err != nil {
		return nil, err
	}

	return newOwned(AddVec(t.data, other.data), t.Shape()), nil
}

// Sub returns t − other, element-wise. Shapes must match exactly.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	if err := sameShape(t, other); err != nil {
		return nil, err
	}

	return newOwned(SubVec(t.data, other.data), t.Shape()), nil
}

// Scale returns t with every element multiplied by s.
func (t *Tensor) Scale(s float64) *Tensor {
	if t == nil {
		return nil
	}

	return newOwned(ScaleVec(t.data, s), t.Shape())
}

func sameShape(a, b *Tensor) error {
	if a == nil || b == nil {
		return fmt.Errorf("tensor: nil operand")
	}

	if len(a.shape) != len(b.shape) {
		return fmt.Errorf("tensor: rank mismatch %v vs %v", a.shape, b.shape)
	}

	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return fmt.Errorf("tensor: shape mismatch %v vs %v", a.shape, b.shape)
		}
	}

	return nil
}

// AddVec returns a + b, element-wise. The slices must be the same length.
func AddVec(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}

	return out
}

// SubVec returns a − b, element-wise. The slices must be the same length.
func SubVec(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}

	return out
}

// ScaleVec returns a with every element multiplied by s.
func ScaleVec(a []float32, s float64) []float32 {
	out := make([]float32, len(a))
	for i, v := range a {
		out[i] = float32(float64(v) * s)
	}

	return out
}

// LerpVec returns a + t·(b − a), element-wise: the linear blend used by
// classifier-free guidance. The slices must be the same length.
func LerpVec(a, b []float32, t float64) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + float32(t)*(b[i]-a[i])
	}

	return out
}
