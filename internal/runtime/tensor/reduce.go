package tensor

// SumVec returns the float64 sum of a's elements.
func SumVec(a []float32) float64 {
	var sum float64
	for _, v := range a {
		sum += float64(v)
	}

	return sum
}

// MeanVec returns the float64 mean of a's elements, or 0 for an empty slice.
func MeanVec(a []float32) float64 {
	if len(a) == 0 {
		return 0
	}

	return SumVec(a) / float64(len(a))
}

// Mean reduces t along dim, averaging over that axis. The returned tensor
// has dim removed from its shape.
func (t *Tensor) Mean(dim int) (*Tensor, error) {
	return t.reduce(dim, func(acc, v float32) float32 { return acc + v }, true)
}

// Max reduces t along dim, keeping the largest value over that axis. The
// returned tensor has dim removed from its shape.
func (t *Tensor) Max(dim int) (*Tensor, error) {
	return t.reduce(dim, func(acc, v float32) float32 {
		if v > acc {
			return v
		}

		return acc
	}, false)
}

func (t *Tensor) reduce(dim int, combine func(acc, v float32) float32, divide bool) (*Tensor, error) {
	d, err := normalizeDim(dim, t.Rank())
	if err != nil {
		return nil, err
	}

	outer := 1
	for _, s := range t.shape[:d] {
		outer *= int(s)
	}

	axis := int(t.shape[d])

	inner := 1
	for _, s := range t.shape[d+1:] {
		inner *= int(s)
	}

	outShape := make([]int64, 0, t.Rank()-1)
	outShape = append(outShape, t.shape[:d]...)
	outShape = append(outShape, t.shape[d+1:]...)

	out := make([]float32, outer*inner)

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			acc := t.data[o*axis*inner+in]
			for a := 1; a < axis; a++ {
				acc = combine(acc, t.data[(o*axis+a)*inner+in])
			}

			if divide && axis > 0 {
				acc /= float32(axis)
			}

			out[o*inner+in] = acc
		}
	}

	return newOwned(out, outShape), nil
}
