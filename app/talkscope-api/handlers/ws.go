package handlers

import (
	"net/http"
	"strings"

	"github.com/talkscope/talkscope/foundation/pubsub"
)

// subscriberCapacity bounds how many undelivered events one WebSocket
// client may lag behind before the broker drops frames for it.
const subscriberCapacity = 64

// ws handles WS /ws/{session_id}: the client receives every pipeline event
// published for the session as JSON text frames. Inbound frames are
// keepalives and are discarded.
func (h *Handlers) ws(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.NotFound(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		return
	}

	sub := pubsub.NewSubscriber(subscriberCapacity)
	h.broker.Subscribe(sessionID, sub)

	h.log.Infow("handlers: ws: client connected", "session", sessionID)

	// Single writer: gorilla connections do not allow concurrent writes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			if err := conn.WriteJSON(msg); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Unsubscribing closes the subscriber channel, which stops the writer.
	h.broker.Unsubscribe(sessionID, sub)
	conn.Close()
	<-done

	h.log.Infow("handlers: ws: client disconnected", "session", sessionID)
}
