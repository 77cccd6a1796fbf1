// Package device records from and plays to the default sound card via PortAudio.
package device

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/hablaconmigo/backend/internal/audio"
	"github.com/hablaconmigo/backend/internal/voice"
)

const (
	// FramesPerBuffer is the PortAudio read/write block size.
	FramesPerBuffer = 1024
	// MinSamples pads very short clips to 200ms so the recognizer accepts them.
	MinSamples = audio.SampleRate / 5

	pollInterval = 10 * time.Millisecond
)

// Initialize must be called once before any Recorder or Player is used.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return deviceError(err)
	}
	return nil
}

// Terminate releases PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// Recorder opens microphone streams on the default input device.
type Recorder struct{}

// NewRecorder creates a Recorder. Initialize must have been called.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Open starts recording and returns the live stream.
func (r *Recorder) Open() (voice.Stream, error) {
	buf := make([]float32, FramesPerBuffer*audio.Channels)
	stream, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), FramesPerBuffer, buf)
	if err != nil {
		return nil, deviceError(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, deviceError(err)
	}

	s := &inputStream{
		stream:  stream,
		buffer:  buf,
		samples: make([]float32, 0, audio.SampleRate*5),
		running: true,
		done:    make(chan struct{}),
	}
	go s.recordLoop()
	return s, nil
}

type inputStream struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	samples []float32
	running bool
	done    chan struct{}

	closeOnce sync.Once
}

func (s *inputStream) SampleRate() int { return audio.SampleRate }

func (s *inputStream) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *inputStream) recordLoop() {
	defer close(s.done)

	for s.isRunning() {
		available, err := s.stream.AvailableToRead()
		if err != nil || available == 0 {
			time.Sleep(pollInterval)
			continue
		}
		if err := s.stream.Read(); err != nil {
			time.Sleep(pollInterval)
			continue
		}

		s.mu.Lock()
		if s.running {
			s.samples = append(s.samples, s.buffer...)
		}
		s.mu.Unlock()
	}
}

// Stop ends recording and returns the clip as 16-bit samples. Later calls
// return nil.
func (s *inputStream) Stop() []int16 {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	samples := s.samples
	s.samples = nil
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(10 * pollInterval):
	}
	_ = s.stream.Stop()

	if len(samples) > 0 && len(samples) < MinSamples {
		samples = append(samples, make([]float32, MinSamples-len(samples))...)
	}
	return audio.FloatToInt16(samples)
}

// Close releases the device. It is safe after Stop and safe to repeat.
func (s *inputStream) Close() error {
	s.Stop()
	var err error
	s.closeOnce.Do(func() { err = s.stream.Close() })
	return err
}

// deviceError maps PortAudio failures onto the voice capture sentinels.
func deviceError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", voice.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", voice.ErrDeviceUnavailable, err)
}
