package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/exercise"
)

type answerResponse struct {
	Correct bool           `json:"correct"`
	State   exercise.State `json:"state"`
	Error   string         `json:"error"`
}

func decodeAnswer(t *testing.T, body []byte) answerResponse {
	t.Helper()
	var resp answerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode answer response: %v (%s)", err, body)
	}
	return resp
}

func correctLabel(t *testing.T, i int) string {
	t.Helper()
	card, ok := catalog.Default().At(i)
	if !ok {
		t.Fatalf("no card at %d", i)
	}
	return card.CorrectLabel
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	resp := env.createSession(t)

	if resp.ID == "" || resp.Token == "" || resp.ExpiresAt == nil {
		t.Errorf("session response missing id/token/expiry: %+v", resp)
	}
	if resp.State.CurrentIndex != 0 || resp.State.Status != exercise.StatusWaiting || resp.State.Score != 0 {
		t.Errorf("initial state = %+v, want index 0, waiting, score 0", resp.State)
	}
	if resp.State.Total != 5 {
		t.Errorf("Total = %d, want 5", resp.State.Total)
	}
	if resp.Card.ID != 1 || len(resp.Card.Choices) != 3 {
		t.Errorf("card = %+v, want first flashcard", resp.Card)
	}
	if resp.Card.CorrectLabel != "" {
		t.Error("session response must not reveal the answer")
	}
	if !resp.VoiceConnected {
		t.Error("VoiceConnected = false, want true")
	}
	if env.router.sessions.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", env.router.sessions.ActiveCount())
	}
}

func TestCreateSessionWhileDraining(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	env.router.sessions.StartDraining()

	rec := env.do(http.MethodPost, "/api/sessions", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSessionAuth(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	a := env.createSession(t)
	b := env.createSession(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"other session's token", b.Token, http.StatusForbidden},
		{"own token", a.Token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/api/sessions/"+a.ID, tt.token, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAnswerCorrectAdvances(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	s := env.createSession(t)
	path := "/api/sessions/" + s.ID + "/answer"

	rec := env.do(http.MethodPost, path, s.Token, map[string]string{"choice": correctLabel(t, 0)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeAnswer(t, rec.Body.Bytes())
	if !resp.Correct || resp.State.Status != exercise.StatusCorrect || resp.State.Score != 100 {
		t.Errorf("answer = %+v, want correct with score 100", resp)
	}

	// A second answer while Correct is dropped.
	rec = env.do(http.MethodPost, path, s.Token, map[string]string{"choice": correctLabel(t, 0)})
	if rec.Code != http.StatusConflict {
		t.Errorf("second answer status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if resp := decodeAnswer(t, rec.Body.Bytes()); resp.State.Score != 100 {
		t.Errorf("score after dropped answer = %d, want 100", resp.State.Score)
	}

	if n := env.clock.fire(exercise.AdvanceDelay); n != 1 {
		t.Fatalf("fired %d advance timers, want 1", n)
	}

	rec = env.do(http.MethodGet, "/api/sessions/"+s.ID, s.Token, nil)
	var view sessionResponse
	_ = json.NewDecoder(rec.Body).Decode(&view)
	if view.State.CurrentIndex != 1 || view.State.Status != exercise.StatusWaiting {
		t.Errorf("state after advance = %+v, want index 1 waiting", view.State)
	}
	if view.Card.ID != 2 {
		t.Errorf("card after advance = %d, want 2", view.Card.ID)
	}

	env.speech.waitSpoken(t, exercise.PraisePhrase)
}

func TestAnswerIncorrectResets(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	s := env.createSession(t)
	path := "/api/sessions/" + s.ID + "/answer"

	rec := env.do(http.MethodPost, path, s.Token, map[string]string{"choice": "La Manzana"})
	resp := decodeAnswer(t, rec.Body.Bytes())
	if rec.Code != http.StatusOK || resp.Correct || resp.State.Status != exercise.StatusIncorrect {
		t.Fatalf("wrong answer = %d %+v, want incorrect", rec.Code, resp)
	}

	env.clock.fire(exercise.ResetDelay)

	rec = env.do(http.MethodPost, path, s.Token, map[string]string{"choice": correctLabel(t, 0)})
	resp = decodeAnswer(t, rec.Body.Bytes())
	if !resp.Correct || resp.State.Score != 100 || resp.State.CurrentIndex != 0 {
		t.Errorf("retry = %+v, want correct at index 0 with score 100", resp)
	}

	env.speech.waitSpoken(t, exercise.RetryPhrase)
}

func TestAnswerValidation(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	s := env.createSession(t)
	path := "/api/sessions/" + s.ID + "/answer"

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{"missing choice", map[string]string{}, "choice is required"},
		{"not an option", map[string]string{"choice": "El Taco"}, "choice is not an option of the current exercise"},
		{"not json", "just a string", "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, path, s.Token, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp := decodeAnswer(t, rec.Body.Bytes()); resp.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestFullSessionCompletes(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	s := env.createSession(t)
	path := "/api/sessions/" + s.ID + "/answer"

	var last answerResponse
	for i := 0; i < 5; i++ {
		rec := env.do(http.MethodPost, path, s.Token, map[string]string{"choice": correctLabel(t, i)})
		if rec.Code != http.StatusOK {
			t.Fatalf("answer %d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		last = decodeAnswer(t, rec.Body.Bytes())
		env.clock.fire(exercise.AdvanceDelay)
	}

	if last.State.Score != 500 || !last.State.Complete || last.State.CurrentIndex != 4 {
		t.Errorf("final state = %+v, want score 500, complete at index 4", last.State)
	}
	if last.State.Progress != 100 {
		t.Errorf("Progress = %v, want 100", last.State.Progress)
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	s := env.createSession(t)

	rec := env.do(http.MethodDelete, "/api/sessions/"+s.ID, s.Token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if env.router.sessions.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", env.router.sessions.ActiveCount())
	}

	rec = env.do(http.MethodGet, "/api/sessions/"+s.ID, s.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAutoHintAfterExerciseChange(t *testing.T) {
	env := newTestEnv(t, RouterConfig{HintDelay: DefaultHintDelay})
	s := env.createSession(t)

	if n := env.clock.fire(DefaultHintDelay); n != 1 {
		t.Fatalf("fired %d hint timers, want 1", n)
	}
	first, _ := catalog.Default().At(0)
	env.speech.waitSpoken(t, first.Hint)

	// The hint of a card the child already left is not spoken.
	env.do(http.MethodPost, "/api/sessions/"+s.ID+"/answer", s.Token, map[string]string{"choice": correctLabel(t, 0)})
	env.clock.fire(exercise.AdvanceDelay)
	env.router.sessions.remove(s.ID, endDeleted)
	if n := env.clock.fire(DefaultHintDelay); n != 0 {
		t.Errorf("hint fired after session end: %d timers", n)
	}
}

func TestNoAutoHintWhileDisconnected(t *testing.T) {
	env := newTestEnv(t, RouterConfig{HintDelay: DefaultHintDelay})
	env.voice.connected.Store(false)
	env.createSession(t)

	env.clock.fire(DefaultHintDelay)
	if got := env.speech.spoken(); len(got) != 0 {
		t.Errorf("spoke %v while disconnected", got)
	}
}
