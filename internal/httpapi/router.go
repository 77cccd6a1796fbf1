package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/eventlog"
	"github.com/hablaconmigo/backend/internal/exercise"
	"github.com/hablaconmigo/backend/internal/voice"
)

// DefaultHintDelay is the pause between showing a new exercise and speaking its hint.
const DefaultHintDelay = 800 * time.Millisecond

type RouterConfig struct {
	// JWT session tokens
	JWTSecret  string
	SessionTTL time.Duration

	// Voice settings
	HintDelay     time.Duration // 0 uses DefaultHintDelay, negative disables auto hints
	SpeechTimeout time.Duration // per synthesis/transcription request
}

// Speech is the speech backend used by the handlers.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Transcribe(ctx context.Context, clip []byte) (string, error)
}

// Connectivity reports whether the speech service is reachable.
type Connectivity interface {
	Err() error
	Status() voice.Status
}

type Router struct {
	cfg         RouterConfig
	logger      *log.Logger
	cards       *catalog.Catalog
	speech      Speech
	voiceStatus Connectivity
	eventLog    *eventlog.Logger
	sessions    *SessionRegistry
	clock       exercise.Clock
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, cards *catalog.Catalog, speech Speech, status Connectivity, eventLog *eventlog.Logger, sessions *SessionRegistry) http.Handler {
	return newRouter(cfg, logger, cards, speech, status, eventLog, sessions).handler()
}

func newRouter(cfg RouterConfig, logger *log.Logger, cards *catalog.Catalog, speech Speech, status Connectivity, eventLog *eventlog.Logger, sessions *SessionRegistry) *Router {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.HintDelay == 0 {
		cfg.HintDelay = DefaultHintDelay
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = 15 * time.Second
	}

	r := &Router{
		cfg:         cfg,
		logger:      logger,
		cards:       cards,
		speech:      speech,
		voiceStatus: status,
		eventLog:    eventLog,
		sessions:    sessions,
		clock:       exercise.SystemClock(),
		mux:         http.NewServeMux(),
	}
	sessions.setOnEnd(r.sessionEnded)

	r.routes()
	return r
}

func (r *Router) handler() http.Handler {
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Static dashboard content (public)
	r.mux.HandleFunc("GET /api/missions", r.handleListMissions)
	r.mux.HandleFunc("GET /api/progress", r.handleGetProgress)
	r.mux.HandleFunc("GET /api/exercises", r.handleListExercises)

	// Voice service (public)
	r.mux.HandleFunc("GET /api/voice/status", r.handleVoiceStatus)
	r.mux.HandleFunc("POST /api/verify", r.handleVerify)

	// Practice sessions
	r.mux.HandleFunc("POST /api/sessions", r.handleCreateSession)
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withSession(r.handleGetSession))
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.withSession(r.handleDeleteSession))
	r.mux.HandleFunc("POST /api/sessions/{id}/answer", r.withSession(r.handleAnswer))
	r.mux.HandleFunc("POST /api/sessions/{id}/voice", r.withSession(r.handleVoiceAnswer))
	r.mux.HandleFunc("POST /api/sessions/{id}/hint", r.withSession(r.handleHint))
	r.mux.HandleFunc("GET /api/sessions/{id}/events", r.withSession(r.handleSessionEvents))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz fails while the server drains so load balancers stop sending new sessions
func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.sessions.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
