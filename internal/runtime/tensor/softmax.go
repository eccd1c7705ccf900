package tensor

import "math"

// Softmax1D returns the softmax of row, computed in float64 with the usual
// max-subtraction for numeric stability.
func Softmax1D(row []float32) []float32 {
	if len(row) == 0 {
		return nil
	}

	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}

	out := make([]float32, len(row))

	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}

	inv := float32(1.0 / sum)
	for i := range out {
		out[i] *= inv
	}

	return out
}

// Softmax applies Softmax1D independently over every slice of t's last
// axis.
func (t *Tensor) Softmax() (*Tensor, error) {
	d, err := normalizeDim(-1, t.Rank())
	if err != nil {
		return nil, err
	}

	width := int(t.shape[d])
	out := make([]float32, len(t.data))

	for off := 0; off < len(t.data); off += width {
		copy(out[off:off+width], Softmax1D(t.data[off:off+width]))
	}

	return newOwned(out, t.Shape()), nil
}
