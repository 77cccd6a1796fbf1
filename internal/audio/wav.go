// Package audio converts between raw PCM samples and WAV clips.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// SampleRate used for microphone capture (speech recognizers expect 16 kHz).
	SampleRate = 16000
	// Channels used for microphone capture.
	Channels = 1

	wavHeaderSize = 44
	formatPCM     = 1
)

var ErrInvalidWAV = errors.New("invalid WAV data")

// PCM is 16-bit interleaved audio.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration returns the playback length in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate == 0 || p.Channels == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate*p.Channels)
}

// EncodeWAV wraps 16-bit samples in a canonical 44-byte RIFF header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*2))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// DecodeWAV reads a 16-bit PCM WAV clip. Unknown chunks (LIST, fact, ...)
// are skipped.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		pcm       PCM
		haveFmt   bool
		bitsPerSm uint16
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streaming writers leave the data size unset; take what is there.
			if id == "data" {
				end = len(data)
			} else {
				return PCM{}, fmt.Errorf("%w: chunk %q overruns buffer", ErrInvalidWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return PCM{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != formatPCM {
				return PCM{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidWAV, format)
			}
			pcm.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSm = binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bitsPerSm != 16 {
				return PCM{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitsPerSm)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			n := (end - body) / 2
			pcm.Samples = make([]int16, n)
			for i := 0; i < n; i++ {
				pcm.Samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i:]))
			}
			return pcm, nil
		}

		pos = end
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	return PCM{}, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

// FloatToInt16 converts [-1, 1] float samples to 16-bit, clipping overflow.
func FloatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}
