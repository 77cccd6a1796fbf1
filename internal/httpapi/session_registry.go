package httpapi

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hablaconmigo/backend/internal/exercise"
)

// DefaultSessionTTL is how long an untouched practice session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Reasons a session ends, recorded in the event log.
const (
	endDeleted  = "deleted"
	endExpired  = "expired"
	endShutdown = "shutdown"
)

// practiceSession is one child's run through the exercise catalog.
type practiceSession struct {
	id       string
	runner   *exercise.Runner
	hub      *eventHub
	created  time.Time
	lastSeen atomic.Int64 // unix nanos

	hintMu    sync.Mutex
	hintTimer exercise.Timer
}

func newPracticeSession(id string, now time.Time) *practiceSession {
	s := &practiceSession{id: id, hub: newEventHub(), created: now}
	s.touch(now)
	return s
}

func (s *practiceSession) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *practiceSession) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// scheduleHint replaces any pending automatic hint.
func (s *practiceSession) scheduleHint(clock exercise.Clock, d time.Duration, f func()) {
	s.hintMu.Lock()
	defer s.hintMu.Unlock()
	if s.hintTimer != nil {
		s.hintTimer.Stop()
	}
	s.hintTimer = clock.AfterFunc(d, f)
}

func (s *practiceSession) cancelHint() {
	s.hintMu.Lock()
	defer s.hintMu.Unlock()
	if s.hintTimer != nil {
		s.hintTimer.Stop()
		s.hintTimer = nil
	}
}

func (s *practiceSession) close() {
	s.cancelHint()
	if s.runner != nil {
		s.runner.Close()
	}
	s.hub.close()
}

// SessionRegistry tracks active practice sessions and supports graceful
// draining. When draining is enabled, new sessions are rejected while
// existing ones can still finish.
//
// The mu mutex makes the draining check and wg.Add atomic in add().
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*practiceSession
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
	ttl      time.Duration
	onEnd    func(s *practiceSession, reason string)
}

// NewSessionRegistry creates a registry that expires sessions idle for ttl.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		sessions: make(map[string]*practiceSession),
		ttl:      ttl,
	}
}

func (sr *SessionRegistry) setOnEnd(fn func(s *practiceSession, reason string)) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.onEnd = fn
}

// add registers a session. Returns false if the registry is draining.
func (sr *SessionRegistry) add(s *practiceSession) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.draining {
		return false
	}
	sr.sessions[s.id] = s
	sr.wg.Add(1)
	sr.count.Add(1)
	return true
}

// get returns a live session and marks it as used.
func (sr *SessionRegistry) get(id string) (*practiceSession, bool) {
	sr.mu.Lock()
	s, ok := sr.sessions[id]
	sr.mu.Unlock()
	if ok {
		s.touch(time.Now())
	}
	return s, ok
}

// remove ends a session. It reports false if the session was already gone.
func (sr *SessionRegistry) remove(id, reason string) bool {
	sr.mu.Lock()
	s, ok := sr.sessions[id]
	if ok {
		delete(sr.sessions, id)
	}
	onEnd := sr.onEnd
	sr.mu.Unlock()
	if !ok {
		return false
	}

	s.close()
	if onEnd != nil {
		onEnd(s, reason)
	}
	sr.count.Add(-1)
	sr.wg.Done()
	return true
}

// Sweep ends every session idle for longer than the TTL and returns their IDs.
func (sr *SessionRegistry) Sweep(now time.Time) []string {
	cutoff := now.Add(-sr.ttl)

	sr.mu.Lock()
	var expired []string
	for id, s := range sr.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	sr.mu.Unlock()

	var removed []string
	for _, id := range expired {
		if sr.remove(id, endExpired) {
			removed = append(removed, id)
		}
	}
	return removed
}

// CloseAll ends every session and returns how many were closed.
func (sr *SessionRegistry) CloseAll() int {
	sr.mu.Lock()
	ids := make([]string, 0, len(sr.sessions))
	for id := range sr.sessions {
		ids = append(ids, id)
	}
	sr.mu.Unlock()

	n := 0
	for _, id := range ids {
		if sr.remove(id, endShutdown) {
			n++
		}
	}
	return n
}

// StartDraining makes future add calls fail.
func (sr *SessionRegistry) StartDraining() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (sr *SessionRegistry) IsDraining() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.draining
}

// ActiveCount returns the number of live sessions.
func (sr *SessionRegistry) ActiveCount() int64 {
	return sr.count.Load()
}

// Wait blocks until every registered session has been removed.
func (sr *SessionRegistry) Wait() {
	sr.wg.Wait()
}
