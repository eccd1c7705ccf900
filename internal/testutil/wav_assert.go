package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// AssertValidFloatWAV checks that data is a valid 32-bit IEEE-float PCM WAV
// file (RIFF format code 3) at the given sample rate and channel count, as
// produced by the daemon's track encoder, and that it contains at least one
// sample.
func AssertValidFloatWAV(tb testing.TB, data []byte, sampleRate, channels int) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	const wavFormatIEEEFloat = 3

	audioFmt := binary.LittleEndian.Uint16(data[20:22])
	if audioFmt != wavFormatIEEEFloat {
		tb.Fatalf("WAV: expected IEEE-float format (3), got %d", audioFmt)
	}

	gotChannels := binary.LittleEndian.Uint16(data[22:24])
	if int(gotChannels) != channels {
		tb.Fatalf("WAV: expected %d channel(s), got %d", channels, gotChannels)
	}

	gotRate := binary.LittleEndian.Uint32(data[24:28])
	if int(gotRate) != sampleRate {
		tb.Fatalf("WAV: expected sample rate %d, got %d", sampleRate, gotRate)
	}

	bitDepth := binary.LittleEndian.Uint16(data[34:36])
	if bitDepth != 32 {
		tb.Fatalf("WAV: expected 32-bit depth, got %d", bitDepth)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	sampleCount := dataSize / 4 // 32-bit = 4 bytes per sample
	if sampleCount == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertFloatWAVDurationApprox asserts that a 32-bit float WAV's audio
// duration falls within [minSec, maxSec] at the given sample rate and
// channel count.
func AssertFloatWAVDurationApprox(tb testing.TB, data []byte, sampleRate, channels int, minSec, maxSec float64) {
	tb.Helper()

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	frameCount := dataSize / (4 * uint32(channels))
	durationSec := float64(frameCount) / float64(sampleRate)

	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}

// findDataChunkSize walks the WAV chunk list to locate the "data" sub-chunk
// and returns its size in bytes.
func findDataChunkSize(data []byte) (uint32, error) {
	// Start after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return size, nil
		}

		offset += 8 + int(size)
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return 0, errors.New("data chunk not found in WAV")
}
