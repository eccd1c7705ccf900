package musicgen

// numCodebooks is the fixed number of parallel codebook streams the
// autoregressive backend was trained with.
const numCodebooks = 4

// DelayPattern accumulates four parallel codebook streams with staggered
// delays and emits aligned frames once enough steps have accumulated. It
// implements the triangular delay pattern the autoregressive model expects
// at its input and the anti-diagonal de-delay recovery at its output.
type DelayPattern struct {
	streams [numCodebooks][]int64
}

// NewDelayPattern returns an empty delay-pattern buffer.
func NewDelayPattern() *DelayPattern {
	return &DelayPattern{}
}

// Push appends one sampled id per codebook. All four streams grow by
// exactly one element.
func (d *DelayPattern) Push(ids [numCodebooks]int64) {
	for i := range d.streams {
		d.streams[i] = append(d.streams[i], ids[i])
	}
}

// Len returns the number of pushes so far (length of any single stream).
func (d *DelayPattern) Len() int {
	return len(d.streams[0])
}

// LastDelayedMasked returns, for row i, pad if fewer than i+1 pushes have
// occurred, else the most recent element of stream i. This produces the
// triangular delay pattern fed back into the decoder at each step.
func (d *DelayPattern) LastDelayedMasked(pad int64) [numCodebooks]int64 {
	var out [numCodebooks]int64

	n := d.Len()
	for i := range out {
		if n <= i {
			out[i] = pad
			continue
		}

		out[i] = d.streams[i][n-1]
	}

	return out
}

// LastDeDelayed returns the anti-diagonal aligned audio frame
// [b0[n-4], b1[n-3], b2[n-2], b3[n-1]] once at least 4 pushes have
// occurred, recovering one frame per step after the 3-step warm-up. The
// second return value is false before that point.
func (d *DelayPattern) LastDeDelayed() ([numCodebooks]int64, bool) {
	n := d.Len()
	if n < numCodebooks {
		return [numCodebooks]int64{}, false
	}

	var out [numCodebooks]int64
	for i := range out {
		out[i] = d.streams[i][n-numCodebooks+i]
	}

	return out, true
}
