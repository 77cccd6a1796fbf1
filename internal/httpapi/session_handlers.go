package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/eventlog"
	"github.com/hablaconmigo/backend/internal/exercise"
)

// sessionResponse is the session snapshot returned by the session endpoints.
type sessionResponse struct {
	ID             string            `json:"id"`
	Token          string            `json:"token,omitempty"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	State          exercise.State    `json:"state"`
	Card           catalog.Flashcard `json:"card"`
	VoiceConnected bool              `json:"voice_connected"`
}

type answerRequest struct {
	Choice string `json:"choice" validate:"required,max=200"`
}

func (r *Router) sessionView(sess *practiceSession) sessionResponse {
	return sessionResponse{
		ID:             sess.id,
		State:          sess.runner.State(),
		Card:           sess.runner.Current(),
		VoiceConnected: r.voiceStatus.Err() == nil,
	}
}

// handleCreateSession starts a practice run at the first exercise
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	if r.sessions.IsDraining() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	id := uuid.NewString()
	sess := newPracticeSession(id, time.Now())
	sess.runner = exercise.NewRunner(r.cards,
		exercise.WithClock(r.clock),
		exercise.WithListener(func(ev exercise.Event) { r.onRunnerEvent(sess, ev) }),
		exercise.WithFeedback(exercise.FeedbackFunc(func(phrase string) {
			go r.speakTo(sess, "feedback", phrase)
		})),
	)

	token, expiresAt, err := r.issueSessionToken(id)
	if err != nil {
		r.logger.Printf("sessions: failed to sign token: %v", err)
		captureError(req, err, "sessions: failed to sign token")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if !r.sessions.add(sess) {
		sess.close()
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	r.logger.Printf("sessions: started %s (%d exercises)", id, r.cards.Len())
	r.eventLog.LogAsync(id, eventlog.EventSessionStarted, map[string]any{
		"exercises": r.cards.Len(),
	})
	sess.runner.Start()

	resp := r.sessionView(sess)
	resp.Token = token
	resp.ExpiresAt = &expiresAt
	writeJSON(w, http.StatusCreated, resp)
}

func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.sessionView(getSession(req.Context())))
}

func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	sess := getSession(req.Context())
	r.sessions.remove(sess.id, endDeleted)
	w.WriteHeader(http.StatusNoContent)
}

// handleAnswer applies a tapped choice. Only the exact correct label counts.
func (r *Router) handleAnswer(w http.ResponseWriter, req *http.Request) {
	sess := getSession(req.Context())

	var body answerRequest
	if err := decodeJSON(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !r.cards.HasChoice(sess.runner.State().CurrentIndex, body.Choice) {
		writeError(w, http.StatusBadRequest, "choice is not an option of the current exercise")
		return
	}

	correct, accepted := sess.runner.SubmitChoice(body.Choice)
	if !accepted {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "exercise is not waiting for an answer",
			"state": sess.runner.State(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"correct": correct,
		"state":   sess.runner.State(),
	})
}

// onRunnerEvent forwards runner events to subscribers and the event log.
func (r *Router) onRunnerEvent(sess *practiceSession, ev exercise.Event) {
	sess.hub.publish(streamMessage{Type: "event", Event: &ev})

	switch ev.Type {
	case exercise.EventExerciseStarted:
		r.eventLog.LogAsync(sess.id, eventlog.EventExerciseStarted, map[string]any{
			"exercise": ev.Exercise,
			"index":    ev.State.CurrentIndex,
		})
		r.scheduleHint(sess, ev.State.CurrentIndex)

	case exercise.EventAnswered:
		data := map[string]any{
			"exercise": ev.Exercise,
			"answer":   ev.Answer,
			"score":    ev.State.Score,
		}
		if ev.Verdict != nil {
			data["correct"] = *ev.Verdict
		}
		r.eventLog.LogAsync(sess.id, eventlog.EventAnswerSubmitted, data)

	case exercise.EventReset:
		r.eventLog.LogAsync(sess.id, eventlog.EventExerciseReset, map[string]any{
			"exercise": ev.Exercise,
		})

	case exercise.EventCompleted:
		r.logger.Printf("sessions: %s completed with score %d", sess.id, ev.State.Score)
		r.eventLog.LogAsync(sess.id, eventlog.EventSessionCompleted, map[string]any{
			"score": ev.State.Score,
		})
	}
}

// sessionEnded runs once when a session leaves the registry.
func (r *Router) sessionEnded(sess *practiceSession, reason string) {
	var st exercise.State
	if sess.runner != nil {
		st = sess.runner.State()
	}
	r.logger.Printf("sessions: ended %s (%s, score %d)", sess.id, reason, st.Score)
	r.eventLog.LogAsync(sess.id, eventlog.EventSessionEnded, map[string]any{
		"reason":   reason,
		"score":    st.Score,
		"complete": st.Complete,
	})
}

func statusForRunnerError(err error) int {
	switch {
	case errors.Is(err, exercise.ErrCaptureInProgress):
		return http.StatusConflict
	case errors.Is(err, exercise.ErrRunnerClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
