package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Subscription narrows what a connected display receives. Empty fields match
// everything.
type Subscription struct {
	Events []string
	Ticket string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type SubscribeMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
	Ticket string   `json:"ticket"`
}

type envelope struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// Hub fans queue events out to connected kitchen and pickup displays. Slow
// clients lose messages rather than holding up the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client), now: time.Now}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts a queue event to every matching client.
func (h *Hub) Publish(ctx context.Context, event string, payload map[string]interface{}) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload, CreatedAt: h.now().UTC()})
	if err != nil {
		log.Printf("live: marshal %s: %v", event, err)
		return
	}
	ticket, _ := payload["ticket"].(string)
	h.Broadcast(data, event, ticket)
}

func (h *Hub) Broadcast(data []byte, event, ticket string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, event, ticket) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("live: drop %s for client %s", event, client.ID)
		}
	}
}

func match(sub Subscription, event, ticket string) bool {
	if sub.Ticket != "" && sub.Ticket != ticket {
		return false
	}
	if len(sub.Events) == 0 {
		return true
	}
	for _, want := range sub.Events {
		if want == event {
			return true
		}
	}
	return false
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
