package device

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/hablaconmigo/backend/internal/audio"
)

// Player plays WAV clips on the default output device.
type Player struct{}

// NewPlayer creates a Player. Initialize must have been called.
func NewPlayer() *Player {
	return &Player{}
}

// Play decodes wav and blocks until it has been written to the device or ctx
// is cancelled.
func (p *Player) Play(ctx context.Context, wav []byte) error {
	pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return err
	}
	if len(pcm.Samples) == 0 {
		return nil
	}

	blocks := blocksOf(pcm.Samples, FramesPerBuffer*pcm.Channels)
	buf := make([]int16, FramesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), FramesPerBuffer, buf)
	if err != nil {
		return deviceError(err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return deviceError(err)
	}
	defer stream.Stop()

	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(buf, block)
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	return nil
}

// blocksOf splits samples into fixed-size blocks, zero-padding the last one.
func blocksOf(samples []int16, size int) [][]int16 {
	if size <= 0 {
		return nil
	}
	var blocks [][]int16
	for start := 0; start < len(samples); start += size {
		block := make([]int16, size)
		copy(block, samples[start:min(start+size, len(samples))])
		blocks = append(blocks, block)
	}
	return blocks
}
