package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/hablaconmigo/backend/internal/eventlog"
	"github.com/hablaconmigo/backend/internal/exercise"
	"github.com/hablaconmigo/backend/internal/voice"
)

type voiceAnswerRequest struct {
	Audio string `json:"audio" validate:"required,base64"`
}

type verifyRequest struct {
	Transcript   string `json:"transcript" validate:"max=500"`
	CorrectLabel string `json:"correct_label" validate:"required,max=200"`
}

// handleVoiceStatus reports the last health probe of the speech service
func (r *Router) handleVoiceStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.voiceStatus.Status())
}

// handleVerify checks a transcript against a label without touching any session
func (r *Router) handleVerify(w http.ResponseWriter, req *http.Request) {
	var body verifyRequest
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"correct":    exercise.Matches(body.Transcript, body.CorrectLabel),
		"keyword":    exercise.Keyword(body.CorrectLabel),
		"transcript": strings.ToLower(strings.TrimSpace(body.Transcript)),
	})
}

// handleVoiceAnswer transcribes a recorded clip and submits it as the answer
func (r *Router) handleVoiceAnswer(w http.ResponseWriter, req *http.Request) {
	sess := getSession(req.Context())

	if err := r.voiceStatus.Err(); err != nil {
		writeError(w, http.StatusServiceUnavailable, voice.Message(err))
		return
	}

	var body voiceAnswerRequest
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clip, err := base64.StdEncoding.DecodeString(body.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio must be base64 encoded")
		return
	}

	if err := sess.runner.BeginCapture(); err != nil {
		writeError(w, statusForRunnerError(err), err.Error())
		return
	}
	defer sess.runner.EndCapture()

	ctx, cancel := context.WithTimeout(req.Context(), r.cfg.SpeechTimeout)
	defer cancel()

	transcript, err := r.speech.Transcribe(ctx, clip)
	if err != nil {
		var kind voice.CaptureFailure
		var captureErr *voice.CaptureError
		if errors.As(err, &captureErr) {
			kind = captureErr.Kind
		}
		r.logger.Printf("sessions: voice answer failed for %s: %v", sess.id, err)
		r.eventLog.LogAsync(sess.id, eventlog.EventCaptureFailed, map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": voice.Message(err),
			"kind":  kind,
		})
		return
	}

	correct, accepted := sess.runner.SubmitTranscript(transcript)
	if !accepted {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "exercise is not waiting for an answer",
			"transcript": transcript,
			"state":      sess.runner.State(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"correct":    correct,
		"transcript": transcript,
		"state":      sess.runner.State(),
	})
}

// handleHint speaks the hint of the current exercise
func (r *Router) handleHint(w http.ResponseWriter, req *http.Request) {
	sess := getSession(req.Context())

	if err := r.voiceStatus.Err(); err != nil {
		writeError(w, http.StatusServiceUnavailable, voice.Message(err))
		return
	}

	card := sess.runner.Current()

	sess.runner.SetSpeaking(true)
	defer sess.runner.SetSpeaking(false)

	ctx, cancel := context.WithTimeout(req.Context(), r.cfg.SpeechTimeout)
	defer cancel()

	audio, err := r.speech.Synthesize(ctx, card.Hint)
	if err != nil {
		r.logger.Printf("sessions: hint synthesis failed for %s: %v", sess.id, err)
		r.eventLog.LogAsync(sess.id, eventlog.EventSynthesisFailed, map[string]any{
			"kind":  "hint",
			"error": err.Error(),
		})
		writeError(w, http.StatusBadGateway, voice.Message(err))
		return
	}

	r.eventLog.LogAsync(sess.id, eventlog.EventHintPlayed, map[string]any{
		"exercise": card.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"text":  card.Hint,
		"audio": base64.StdEncoding.EncodeToString(audio),
	})
}

// scheduleHint speaks the hint of a newly shown exercise after a short pause,
// unless the child has already moved on or the speech service is down.
func (r *Router) scheduleHint(sess *practiceSession, index int) {
	if r.cfg.HintDelay < 0 {
		return
	}
	sess.scheduleHint(r.clock, r.cfg.HintDelay, func() {
		st := sess.runner.State()
		if st.CurrentIndex != index || st.Status != exercise.StatusWaiting {
			return
		}
		r.speakTo(sess, "hint", sess.runner.Current().Hint)
	})
}

// speakTo synthesizes text and streams the audio to the session's
// subscribers. Nothing is spoken while the speech service is disconnected.
func (r *Router) speakTo(sess *practiceSession, kind, text string) {
	if r.voiceStatus.Err() != nil {
		return
	}

	sess.runner.SetSpeaking(true)
	defer sess.runner.SetSpeaking(false)

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SpeechTimeout)
	defer cancel()

	audio, err := r.speech.Synthesize(ctx, text)
	if err != nil {
		r.logger.Printf("sessions: %s synthesis failed for %s: %v", kind, sess.id, err)
		r.eventLog.LogAsync(sess.id, eventlog.EventSynthesisFailed, map[string]any{
			"kind":  kind,
			"error": err.Error(),
		})
		sess.hub.publish(streamMessage{Type: "error", Kind: kind, Message: voice.Message(err)})
		return
	}

	if kind == "hint" {
		r.eventLog.LogAsync(sess.id, eventlog.EventHintPlayed, map[string]any{
			"exercise": sess.runner.Current().ID,
		})
	}
	sess.hub.publish(streamMessage{
		Type:  "audio",
		Kind:  kind,
		Text:  text,
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}
