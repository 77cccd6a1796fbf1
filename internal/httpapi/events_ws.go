package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSessionEvents streams runner events and spoken audio to the client.
// The first frame is a snapshot of the session; the stream ends when the
// session does.
func (r *Router) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	sess := getSession(req.Context())

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("events_ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	messages, unsubscribe := sess.hub.subscribe()
	defer unsubscribe()

	state := sess.runner.State()
	card := sess.runner.Current()
	if err := r.writeFrame(conn, streamMessage{Type: "snapshot", State: &state, Card: &card}); err != nil {
		r.logger.Printf("events_ws: snapshot write failed for %s: %v", sess.id, err)
		return
	}

	// The client never sends anything meaningful; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					r.logger.Printf("events_ws: read error for %s: %v", sess.id, err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if err := r.writeFrame(conn, msg); err != nil {
				r.logger.Printf("events_ws: write failed for %s: %v", sess.id, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (r *Router) writeFrame(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
