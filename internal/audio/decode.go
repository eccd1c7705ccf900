package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
)

// ErrFormatMismatch is returned when a decoded WAV does not match the
// format the caller asked for.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeWAVPCM16 decodes a mono 16-bit PCM WAV at any sample rate and
// returns its float32 samples plus the container's declared rate. This is
// the read-side counterpart of EncodeWAVPCM16; the daemon's own float
// track files are read with DecodeWAVFloat32 instead.
func DecodeWAVPCM16(data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("empty WAV input")
	}

	r := bytes.NewReader(data)
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}

	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("%w: bit depth %d, want 16", ErrFormatMismatch, dec.BitDepth)
	}
	if dec.NumChans != 1 {
		return nil, 0, fmt.Errorf("%w: channels %d, want 1", ErrFormatMismatch, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading PCM data: %w", err)
	}

	return buf.Data, int(dec.SampleRate), nil
}
