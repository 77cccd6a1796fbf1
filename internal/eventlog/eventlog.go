package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of practice session event
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventExerciseStarted  EventType = "exercise_started"
	EventAnswerSubmitted  EventType = "answer_submitted"
	EventExerciseReset    EventType = "exercise_reset"
	EventSessionCompleted EventType = "session_completed"
	EventSessionEnded     EventType = "session_ended"
	EventHintPlayed       EventType = "hint_played"
	EventCaptureFailed    EventType = "capture_failed"
	EventSynthesisFailed  EventType = "synthesis_failed"
	EventVoiceConnected   EventType = "voice_connected"
	EventVoiceLost        EventType = "voice_disconnected"
)

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger. A nil pool turns every call into a no-op.
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Enabled reports whether events are persisted.
func (l *Logger) Enabled() bool {
	return l != nil && l.db != nil
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, sessionID string, eventType EventType, data map[string]any) error {
	if !l.Enabled() || sessionID == "" {
		return nil // Silently skip if no DB or session ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO session_events (session_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, sessionID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(sessionID string, eventType EventType, data map[string]any) {
	if !l.Enabled() || sessionID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, sessionID, eventType, data)
	}()
}

// Event is a stored session event.
type Event struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"event_type"`
	Data      map[string]any `json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

// List returns the events of one session in insertion order. It returns nil
// when persistence is disabled.
func (l *Logger) List(ctx context.Context, sessionID string) ([]Event, error) {
	if !l.Enabled() || sessionID == "" {
		return nil, nil
	}

	rows, err := l.db.Query(ctx, `
		SELECT id, session_id, event_type, event_data, created_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &e.Data)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events recorded before the cutoff and returns how many rows
// were removed.
func (l *Logger) Prune(ctx context.Context, before time.Time) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}

	tag, err := l.db.Exec(ctx, `DELETE FROM session_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
