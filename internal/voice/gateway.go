package voice

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hablaconmigo/backend/internal/audio"
)

// DefaultCaptureDuration is the auto-stop limit for one spoken answer.
const DefaultCaptureDuration = 4 * time.Second

// AudioSource opens the microphone.
type AudioSource interface {
	Open() (Stream, error)
}

// Stream is an open microphone. Stop ends recording and returns the samples;
// Close releases the device and must always be called.
type Stream interface {
	SampleRate() int
	Stop() []int16
	Close() error
}

// Player plays a WAV clip and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// Gateway is the single entry point the rest of the app uses for speech.
type Gateway struct {
	synth  Synthesizer
	trans  Transcriber
	source AudioSource
	player Player
	logger *log.Logger

	mu       sync.Mutex
	active   *capture
	speaking atomic.Bool
}

// GatewayConfig wires a Gateway. Source and Player are only needed by callers
// that record or play audio locally.
type GatewayConfig struct {
	Synthesizer Synthesizer
	Transcriber Transcriber
	Source      AudioSource
	Player      Player
	Logger      *log.Logger
}

// NewGateway creates a Gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		synth:  cfg.Synthesizer,
		trans:  cfg.Transcriber,
		source: cfg.Source,
		player: cfg.Player,
		logger: logger,
	}
}

// Synthesize returns spoken audio for text. The caller owns playback.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audio, err := g.synth.Synthesize(ctx, text)
	if err != nil {
		var synthErr *SynthesisError
		if !errors.As(err, &synthErr) {
			err = &SynthesisError{Reason: "request failed", Err: err}
		}
		g.logger.Printf("voice: synthesis failed: %v", err)
		return nil, err
	}
	return audio, nil
}

// Speak synthesizes text and plays it, reporting IsSpeaking for the duration
// of the playback.
func (g *Gateway) Speak(ctx context.Context, text string) error {
	if g.player == nil {
		return &SynthesisError{Reason: "no audio output configured"}
	}
	wav, err := g.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	g.speaking.Store(true)
	defer g.speaking.Store(false)

	if err := g.player.Play(ctx, wav); err != nil {
		g.logger.Printf("voice: playback failed: %v", err)
		return &SynthesisError{Reason: "Error al reproducir audio", Err: err}
	}
	return nil
}

// IsSpeaking reports whether Speak is playing audio.
func (g *Gateway) IsSpeaking() bool {
	return g.speaking.Load()
}

// Transcribe uploads a clip recorded elsewhere (for example by a browser).
// Every failure is a *CaptureError.
func (g *Gateway) Transcribe(ctx context.Context, clip []byte) (string, error) {
	if len(clip) == 0 {
		return "", &CaptureError{Kind: CaptureEmptyTranscript, Reason: "no audio captured"}
	}
	text, err := g.trans.Transcribe(ctx, clip)
	if err != nil {
		var captureErr *CaptureError
		if !errors.As(err, &captureErr) {
			err = &CaptureError{Kind: CaptureTranscriptionFailed, Reason: "request failed", Err: err}
		}
		g.logger.Printf("voice: transcription failed: %v", err)
		return "", err
	}
	return text, nil
}

type capture struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func (c *capture) finish() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// CaptureSpeech records from the microphone until maxDuration elapses or
// StopCapture is called, uploads the clip and returns the transcript. The
// microphone is released on every exit path. Only one capture runs at a time.
func (g *Gateway) CaptureSpeech(ctx context.Context, maxDuration time.Duration) (string, error) {
	if maxDuration <= 0 {
		maxDuration = DefaultCaptureDuration
	}
	if g.source == nil {
		return "", &CaptureError{Kind: CaptureDeviceUnavailable, Reason: "no microphone configured"}
	}

	c := &capture{stop: make(chan struct{})}
	g.mu.Lock()
	if g.active != nil {
		g.mu.Unlock()
		return "", ErrCaptureActive
	}
	g.active = c
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.active = nil
		g.mu.Unlock()
	}()

	stream, err := g.source.Open()
	if err != nil {
		return "", classifyDeviceError(err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			g.logger.Printf("voice: closing microphone: %v", err)
		}
	}()

	timer := time.NewTimer(maxDuration)
	defer timer.Stop()

	// The timer and an explicit stop converge here; whichever comes first
	// finalizes the recording exactly once.
	select {
	case <-timer.C:
	case <-c.stop:
	case <-ctx.Done():
		stream.Stop()
		return "", ctx.Err()
	}

	samples := stream.Stop()
	if len(samples) == 0 {
		return "", &CaptureError{Kind: CaptureDeviceUnavailable, Reason: "no audio captured"}
	}

	clip := audio.EncodeWAV(samples, stream.SampleRate(), audio.Channels)
	g.logger.Printf("voice: captured %d bytes of audio", len(clip))
	return g.Transcribe(ctx, clip)
}

// StopCapture ends the active recording early. It is safe to call at any
// time and any number of times.
func (g *Gateway) StopCapture() {
	g.mu.Lock()
	c := g.active
	g.mu.Unlock()
	if c != nil {
		c.finish()
	}
}

// IsCapturing reports whether a capture is in progress.
func (g *Gateway) IsCapturing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}

func classifyDeviceError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return &CaptureError{Kind: CapturePermissionDenied, Reason: "microphone permission denied", Err: err}
	}
	return &CaptureError{Kind: CaptureDeviceUnavailable, Reason: "microphone unavailable", Err: err}
}
