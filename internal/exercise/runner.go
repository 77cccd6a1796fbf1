package exercise

import (
	"errors"
	"sync"
	"time"

	"github.com/hablaconmigo/backend/internal/catalog"
)

const (
	// AdvanceDelay is how long a correct answer is celebrated before the next card.
	AdvanceDelay = 2500 * time.Millisecond
	// ResetDelay is how long a wrong answer is shown before the child may retry.
	ResetDelay = 1500 * time.Millisecond

	PraisePhrase = "¡Muy bien! ¡Excelente trabajo!"
	RetryPhrase  = "Inténtalo de nuevo, tú puedes."
)

var (
	ErrCaptureInProgress = errors.New("a voice capture is already in progress")
	ErrRunnerClosed      = errors.New("session has ended")
)

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed transitions. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock { return systemClock{} }

// Feedback plays the spoken reaction to an answer. Implementations must not
// call back into the Runner synchronously.
type Feedback interface {
	Feedback(phrase string)
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(phrase string)

func (f FeedbackFunc) Feedback(phrase string) { f(phrase) }

// EventType names what happened in a session.
type EventType string

const (
	EventExerciseStarted EventType = "exercise_started"
	EventAnswered        EventType = "answered"
	EventReset           EventType = "reset"
	EventCompleted       EventType = "completed"
	EventCaptureStarted  EventType = "capture_started"
	EventCaptureEnded    EventType = "capture_ended"
	EventSpeakingChanged EventType = "speaking_changed"
)

// Event is emitted to the runner's listener after every state change.
type Event struct {
	Type     EventType `json:"type"`
	State    State     `json:"state"`
	Exercise int       `json:"exercise"`
	Verdict  *bool     `json:"verdict,omitempty"`
	Answer   string    `json:"answer,omitempty"`
}

// Runner drives a Session: it judges answers against the catalog, schedules
// the follow-up transitions and reports every change to a listener. All
// transitions run under one mutex, so a tap and a voice answer arriving
// together are serialized and the loser is dropped by the Waiting guard.
type Runner struct {
	mu        sync.Mutex
	cards     *catalog.Catalog
	session   *Session
	capturing bool
	speaking  bool
	closed    bool
	pending   Timer

	clock    Clock
	feedback Feedback
	listener func(Event)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

func WithFeedback(f Feedback) RunnerOption {
	return func(r *Runner) { r.feedback = f }
}

// WithListener sets the function that receives events. It is called without
// the runner's lock held, from whichever goroutine caused the change.
func WithListener(fn func(Event)) RunnerOption {
	return func(r *Runner) { r.listener = fn }
}

// NewRunner creates a runner at the first card of cards.
func NewRunner(cards *catalog.Catalog, opts ...RunnerOption) *Runner {
	r := &Runner{
		cards:    cards,
		session:  NewSession(cards.Len()),
		clock:    SystemClock(),
		feedback: FeedbackFunc(func(string) {}),
		listener: func(Event) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start announces the first exercise to the listener.
func (r *Runner) Start() {
	r.mu.Lock()
	ev := r.eventLocked(EventExerciseStarted)
	r.mu.Unlock()
	r.listener(ev)
}

// State returns the current snapshot.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// Current returns the card being asked.
func (r *Runner) Current() catalog.Flashcard {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, _ := r.cards.At(r.session.Index())
	return card
}

// SubmitChoice answers by tapping a label. Only the exact correct label counts.
// It returns the verdict and whether the answer was accepted at all.
func (r *Runner) SubmitChoice(choice string) (verdict, accepted bool) {
	return r.submit(choice, func(card catalog.Flashcard) bool {
		return choice == card.CorrectLabel
	})
}

// SubmitTranscript answers with a transcribed phrase, judged by Matches.
func (r *Runner) SubmitTranscript(transcript string) (verdict, accepted bool) {
	return r.submit(transcript, func(card catalog.Flashcard) bool {
		return Matches(transcript, card.CorrectLabel)
	})
}

// Submit applies an externally computed verdict to the current exercise.
func (r *Runner) Submit(verdict bool) bool {
	_, accepted := r.submit("", func(catalog.Flashcard) bool { return verdict })
	return accepted
}

func (r *Runner) submit(answer string, judge func(catalog.Flashcard) bool) (bool, bool) {
	r.mu.Lock()
	if r.closed || r.session.Status() != StatusWaiting {
		r.mu.Unlock()
		return false, false
	}

	card, _ := r.cards.At(r.session.Index())
	verdict := judge(card)
	r.session.Submit(verdict)

	answered := r.eventLocked(EventAnswered)
	answered.Verdict = &verdict
	answered.Answer = answer
	events := []Event{answered}

	phrase := RetryPhrase
	switch {
	case !verdict:
		r.scheduleLocked(ResetDelay, r.reset)
	case r.session.Complete():
		phrase = PraisePhrase
		events = append(events, r.eventLocked(EventCompleted))
	default:
		phrase = PraisePhrase
		r.scheduleLocked(AdvanceDelay, r.advance)
	}
	r.mu.Unlock()

	r.emit(events...)
	r.feedback.Feedback(phrase)
	return verdict, true
}

func (r *Runner) advance() {
	r.mu.Lock()
	r.pending = nil
	if r.closed || !r.session.Advance() {
		r.mu.Unlock()
		return
	}
	ev := r.eventLocked(EventExerciseStarted)
	r.mu.Unlock()
	r.listener(ev)
}

func (r *Runner) reset() {
	r.mu.Lock()
	r.pending = nil
	if r.closed || !r.session.Reset() {
		r.mu.Unlock()
		return
	}
	ev := r.eventLocked(EventReset)
	r.mu.Unlock()
	r.listener(ev)
}

// BeginCapture marks the microphone as busy. Only one capture may be active.
func (r *Runner) BeginCapture() error {
	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		return ErrRunnerClosed
	case r.capturing:
		r.mu.Unlock()
		return ErrCaptureInProgress
	}
	r.capturing = true
	ev := r.eventLocked(EventCaptureStarted)
	r.mu.Unlock()
	r.listener(ev)
	return nil
}

// EndCapture releases the microphone flag. Calling it twice is harmless.
func (r *Runner) EndCapture() {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return
	}
	r.capturing = false
	ev := r.eventLocked(EventCaptureEnded)
	r.mu.Unlock()
	r.listener(ev)
}

// SetSpeaking records whether audio is being played for this session.
func (r *Runner) SetSpeaking(speaking bool) {
	r.mu.Lock()
	if r.speaking == speaking {
		r.mu.Unlock()
		return
	}
	r.speaking = speaking
	ev := r.eventLocked(EventSpeakingChanged)
	r.mu.Unlock()
	r.listener(ev)
}

// Close cancels any pending transition. Later calls become no-ops.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (r *Runner) scheduleLocked(d time.Duration, f func()) {
	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = r.clock.AfterFunc(d, f)
}

func (r *Runner) stateLocked() State {
	st := r.session.state()
	st.MicCapturing = r.capturing
	st.Speaking = r.speaking
	return st
}

func (r *Runner) eventLocked(t EventType) Event {
	card, _ := r.cards.At(r.session.Index())
	return Event{Type: t, State: r.stateLocked(), Exercise: card.ID}
}

func (r *Runner) emit(events ...Event) {
	for _, ev := range events {
		r.listener(ev)
	}
}
