package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newClient(id string, sub Subscription) *Client {
	return &Client{ID: id, Send: make(chan []byte, 4), Subscription: sub}
}

func TestPublishRespectsSubscriptions(t *testing.T) {
	h := New()
	h.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }

	all := newClient("kitchen", Subscription{})
	statusOnly := newClient("board", Subscription{Events: []string{"order.status_changed"}})
	oneTicket := newClient("pager", Subscription{Ticket: "A07"})
	h.Register(all)
	h.Register(statusOnly)
	h.Register(oneTicket)

	h.Publish(context.Background(), "order.created", map[string]interface{}{"ticket": "A07"})
	h.Publish(context.Background(), "order.status_changed", map[string]interface{}{"ticket": "A08"})

	if got := len(all.Send); got != 2 {
		t.Fatalf("kitchen expected 2 events, got %d", got)
	}
	if got := len(statusOnly.Send); got != 1 {
		t.Fatalf("board expected 1 event, got %d", got)
	}
	if got := len(oneTicket.Send); got != 1 {
		t.Fatalf("pager expected 1 event, got %d", got)
	}

	var env envelope
	if err := json.Unmarshal(<-oneTicket.Send, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != "order.created" || env.Payload["ticket"] != "A07" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestBroadcastDropsForFullClient(t *testing.T) {
	h := New()
	slow := &Client{ID: "slow", Send: make(chan []byte, 1)}
	h.Register(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Broadcast([]byte("x"), "order.created", "A01")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full client")
	}
	if len(slow.Send) != 1 {
		t.Fatalf("expected one buffered message, got %d", len(slow.Send))
	}
}

func TestUnregisterTwice(t *testing.T) {
	h := New()
	c := newClient("c1", Subscription{})
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)
	if h.Len() != 0 {
		t.Fatalf("expected no clients")
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","events":["order.created"],"ticket":"a07"}`))
	if !ok || len(msg.Events) != 1 || msg.Ticket != "a07" {
		t.Fatalf("unexpected parse result %+v ok=%v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"ping"}`)); ok {
		t.Fatalf("unknown action should be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("invalid json should be rejected")
	}
}
