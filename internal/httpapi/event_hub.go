package httpapi

import (
	"sync"

	"github.com/hablaconmigo/backend/internal/catalog"
	"github.com/hablaconmigo/backend/internal/exercise"
)

const subscriberBuffer = 32

// streamMessage is one frame of the session event stream.
type streamMessage struct {
	Type    string             `json:"type"` // snapshot, event, audio, error
	Event   *exercise.Event    `json:"event,omitempty"`
	State   *exercise.State    `json:"state,omitempty"`
	Card    *catalog.Flashcard `json:"card,omitempty"`
	Kind    string             `json:"kind,omitempty"` // feedback, hint
	Text    string             `json:"text,omitempty"`
	Audio   string             `json:"audio,omitempty"` // base64 WAV
	Message string             `json:"message,omitempty"`
}

// eventHub fans session messages out to websocket subscribers. A subscriber
// that falls behind loses messages rather than blocking the session.
type eventHub struct {
	mu     sync.Mutex
	subs   map[chan streamMessage]struct{}
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan streamMessage]struct{})}
}

// subscribe returns a message channel and a function that removes it. The
// channel is closed when the hub closes.
func (h *eventHub) subscribe() (<-chan streamMessage, func()) {
	ch := make(chan streamMessage, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *eventHub) publish(msg streamMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
