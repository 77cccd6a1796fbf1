// Package voice talks to the external speech service: synthesis, transcription
// and the health probe, plus local microphone capture and playback.
package voice

import (
	"context"
	"errors"
	"fmt"
)

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns a recorded clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte) (string, error)
}

// HealthChecker reports whether the speech service is up.
type HealthChecker interface {
	Health(ctx context.Context) (bool, error)
}

var (
	// ErrDisconnected is returned for voice operations while the health
	// probe reports the service as unreachable.
	ErrDisconnected = errors.New("voice service disconnected")

	// ErrCaptureActive is returned when a capture is requested while another
	// one is still recording.
	ErrCaptureActive = errors.New("capture already in progress")

	// Audio sources wrap these so CaptureSpeech can classify device failures.
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
)

// SynthesisError is a failed speech synthesis request: network failure,
// non-success reply or a malformed audio payload.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synthesis failed: %s: %v", e.Reason, e.Err)
	}
	return "synthesis failed: " + e.Reason
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// CaptureFailure classifies a CaptureError.
type CaptureFailure string

const (
	CapturePermissionDenied    CaptureFailure = "permission_denied"
	CaptureDeviceUnavailable   CaptureFailure = "device_unavailable"
	CaptureTranscriptionFailed CaptureFailure = "transcription_failed"
	CaptureEmptyTranscript     CaptureFailure = "empty_transcript"
)

// CaptureError is a failed spoken answer: the microphone could not be used or
// the clip could not be transcribed.
type CaptureError struct {
	Kind   CaptureFailure
	Reason string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture failed (%s): %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("capture failed (%s): %s", e.Kind, e.Reason)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Message returns the text shown to the child for err, or a generic message
// when err is not one of the voice error types.
func Message(err error) string {
	var (
		synthErr   *SynthesisError
		captureErr *CaptureError
	)
	switch {
	case errors.Is(err, ErrDisconnected):
		return "Sin conexión con el servidor de voz"
	case errors.Is(err, ErrCaptureActive):
		return "Ya estoy escuchando"
	case errors.As(err, &captureErr):
		switch captureErr.Kind {
		case CapturePermissionDenied, CaptureDeviceUnavailable:
			return "No se pudo acceder al micrófono. Verifica los permisos."
		case CaptureEmptyTranscript:
			return "No se pudo transcribir el audio"
		}
		if captureErr.Reason != "" {
			return captureErr.Reason
		}
		return "No se pudo transcribir el audio"
	case errors.As(err, &synthErr):
		if synthErr.Reason != "" && synthErr.Err == nil {
			return synthErr.Reason
		}
		return "Error al generar audio"
	default:
		return "Error de conexión con el servidor"
	}
}
