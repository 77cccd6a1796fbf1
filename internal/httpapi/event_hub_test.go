package httpapi

import "testing"

func TestEventHub_PublishSubscribe(t *testing.T) {
	h := newEventHub()
	a, unsubA := h.subscribe()
	b, unsubB := h.subscribe()
	defer unsubB()

	if h.count() != 2 {
		t.Fatalf("count() = %d, want 2", h.count())
	}

	h.publish(streamMessage{Type: "event"})
	if msg := <-a; msg.Type != "event" {
		t.Errorf("subscriber a got %q", msg.Type)
	}
	if msg := <-b; msg.Type != "event" {
		t.Errorf("subscriber b got %q", msg.Type)
	}

	unsubA()
	unsubA() // repeated unsubscribe is harmless
	if _, open := <-a; open {
		t.Error("unsubscribed channel should be closed")
	}
	if h.count() != 1 {
		t.Errorf("count() = %d, want 1", h.count())
	}
}

func TestEventHub_SlowSubscriberDropsMessages(t *testing.T) {
	h := newEventHub()
	ch, unsub := h.subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.publish(streamMessage{Type: "event"})
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered %d messages, want %d", len(ch), subscriberBuffer)
	}
}

func TestEventHub_Close(t *testing.T) {
	h := newEventHub()
	ch, unsub := h.subscribe()

	h.close()
	h.close()
	unsub()

	if _, open := <-ch; open {
		t.Error("channel should be closed after hub close")
	}

	late, _ := h.subscribe()
	if _, open := <-late; open {
		t.Error("subscribing to a closed hub should yield a closed channel")
	}
	h.publish(streamMessage{Type: "event"}) // no panic
}
