package acestep

import "github.com/willibrandon/lofid/internal/runtime/tensor"

// LatentChannels and LatentHeight are the fixed dimensions of ACE-Step's
// DCAE latent space: shape (1, LatentChannels, LatentHeight, F).
const (
	LatentChannels = 8
	LatentHeight   = 16
)

// LatentRateFramesPerSec is the number of latent frames per second of
// output audio; CalculateFrameLength derives F from this rate.
const LatentRateFramesPerSec = 25

// CalculateFrameLength returns the number of latent frames F needed for
// durationSec seconds of audio.
func CalculateFrameLength(durationSec float64) int {
	f := int(durationSec * LatentRateFramesPerSec)
	if f < 1 {
		f = 1
	}

	return f
}

// InitializeLatent draws a Gaussian-noise latent of shape
// (1, LatentChannels, LatentHeight, frameLength), scaled by initialSigma,
// seeded deterministically from seed.
func InitializeLatent(frameLength int, initialSigma float64, seed uint64) []float32 {
	shape := []int64{1, LatentChannels, LatentHeight, int64(frameLength)}

	noise, err := tensor.Randn(shape, seed)
	if err != nil {
		return nil
	}

	return noise.Scale(initialSigma).RawData()
}
