package live

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Handler serves the SockJS endpoint under prefix. A new session receives
// every event until it sends a subscribe message.
func (h *Hub) Handler(prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, h.serveSession)
}

func (h *Hub) serveSession(session sockjs.Session) {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
	h.Register(client)
	defer h.Unregister(client)

	go func() {
		for msg := range client.Send {
			_ = session.Send(string(msg))
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		parsed, ok := ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		if parsed.Action == "unsubscribe" {
			h.UpdateSubscription(client, Subscription{})
			continue
		}
		h.UpdateSubscription(client, Subscription{
			Events: parsed.Events,
			Ticket: strings.ToUpper(strings.TrimSpace(parsed.Ticket)),
		})
	}
}
