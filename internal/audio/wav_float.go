package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

func toUint32Checked(value int64, label string) (uint32, error) {
	const maxUint32 = int64(^uint32(0))
	if value < 0 || value > maxUint32 {
		return 0, fmt.Errorf("%s exceeds uint32: %d", label, value)
	}

	return uint32(value), nil
}

// FormatIEEEFloat is the RIFF fmt chunk's audio format code for 32-bit
// IEEE-754 float PCM (as opposed to the integer PCM format code 1 that
// EncodeWAVPCM16 writes).
const FormatIEEEFloat = 3

// EncodeWAVFloat32 writes samples as a little-endian RIFF/WAVE container
// of 32-bit IEEE float PCM at sampleRate, the layout every generated
// track file uses. When stereo is true, the mono signal is duplicated into both
// channels; the container always declares stereo output in that case.
func EncodeWAVFloat32(samples []float32, sampleRate int, stereo bool) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	channels := 1
	if stereo {
		channels = 2
	}

	const bitsPerSample = 32
	byteRate := int64(sampleRate) * int64(channels) * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	frameCount := int64(len(samples))
	dataSize := frameCount * int64(channels) * 4
	riffSize := int64(4+(8+16)+8) + dataSize

	riffSizeU32, err := toUint32Checked(riffSize, "riff size")
	if err != nil {
		return nil, err
	}

	sampleRateU32, err := toUint32Checked(int64(sampleRate), "sample rate")
	if err != nil {
		return nil, err
	}

	byteRateU32, err := toUint32Checked(byteRate, "byte rate")
	if err != nil {
		return nil, err
	}

	dataSizeU32, err := toUint32Checked(dataSize, "data size")
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, riffSizeU32)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(FormatIEEEFloat))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, sampleRateU32)
	_ = binary.Write(buf, binary.LittleEndian, byteRateU32)
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSizeU32)

	for _, s := range samples {
		_ = binary.Write(buf, binary.LittleEndian, s)

		if stereo {
			_ = binary.Write(buf, binary.LittleEndian, s)
		}
	}

	return buf.Bytes(), nil
}

// WAVFloat32 is a decoded 32-bit float RIFF/WAVE file's content.
type WAVFloat32 struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// DecodeWAVFloat32 parses a RIFF/WAVE container written by
// EncodeWAVFloat32 (format code FormatIEEEFloat, 32-bit samples). Stereo
// input is not down-mixed; Samples holds interleaved frames when
// Channels == 2.
func DecodeWAVFloat32(data []byte) (WAVFloat32, error) {
	r := bytes.NewReader(data)

	var riffHeader [12]byte
	if _, err := r.Read(riffHeader[:]); err != nil {
		return WAVFloat32{}, fmt.Errorf("read RIFF header: %w", err)
	}

	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return WAVFloat32{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    uint32
		channels      uint16
		bitsPerSample uint16
		audioFormat   uint16
		haveFmt       bool
		samples       []float32
	)

	for {
		var chunkHeader [8]byte

		n, err := r.Read(chunkHeader[:])
		if n < 8 || err != nil {
			break
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := r.Read(body); err != nil {
				return WAVFloat32{}, fmt.Errorf("read fmt chunk: %w", err)
			}

			if len(body) < 16 {
				return WAVFloat32{}, fmt.Errorf("fmt chunk too short: %d bytes", len(body))
			}

			audioFormat = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return WAVFloat32{}, fmt.Errorf("data chunk precedes fmt chunk")
			}

			if audioFormat != FormatIEEEFloat {
				return WAVFloat32{}, fmt.Errorf("%w: expected format %d, got %d", ErrFormatMismatch, FormatIEEEFloat, audioFormat)
			}

			if bitsPerSample != 32 {
				return WAVFloat32{}, fmt.Errorf("%w: expected 32-bit samples, got %d", ErrFormatMismatch, bitsPerSample)
			}

			body := make([]byte, chunkSize)
			if _, err := r.Read(body); err != nil {
				return WAVFloat32{}, fmt.Errorf("read data chunk: %w", err)
			}

			samples = make([]float32, len(body)/4)
			for i := range samples {
				bits := binary.LittleEndian.Uint32(body[i*4 : i*4+4])
				samples[i] = math.Float32frombits(bits)
			}

		default:
			if _, err := r.Seek(int64(chunkSize), 1); err != nil {
				return WAVFloat32{}, fmt.Errorf("skip chunk %q: %w", chunkID, err)
			}
		}
	}

	if !haveFmt || samples == nil {
		return WAVFloat32{}, fmt.Errorf("missing fmt or data chunk")
	}

	return WAVFloat32{
		Samples:    samples,
		SampleRate: int(sampleRate),
		Channels:   int(channels),
	}, nil
}
