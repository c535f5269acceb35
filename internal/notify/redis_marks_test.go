package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisMarksClaimRelease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	marks := NewRedisMarks(client, time.Minute)
	if ok, err := marks.Claim(ctx, "email:o1"); err != nil || !ok {
		t.Fatalf("first claim should succeed, got ok=%v err=%v", ok, err)
	}
	if ok, _ := marks.Claim(ctx, "email:o1"); ok {
		t.Fatalf("second claim should be rejected")
	}
	if !mr.Exists("notified:email:o1") {
		t.Fatalf("expected prefixed key in redis")
	}

	if err := marks.Release(ctx, "email:o1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := marks.Claim(ctx, "email:o1"); !ok {
		t.Fatalf("claim after release should succeed")
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := marks.Claim(ctx, "email:o1"); !ok {
		t.Fatalf("claim after ttl should succeed")
	}
}

func TestDispatcherWithRedisMarksSharesDedup(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	email := &recordingProvider{}
	first := NewDispatcher(email, nil, NewRedisMarks(client, time.Hour), Config{AdminEmails: []string{"kitchen@example.com"}})
	second := NewDispatcher(email, nil, NewRedisMarks(client, time.Hour), Config{AdminEmails: []string{"kitchen@example.com"}})

	order := sampleOrder()
	first.OnNewOrder(ctx, order, "")
	second.OnNewOrder(ctx, order, "")

	if got := len(email.calls()); got != 1 {
		t.Fatalf("expected one email across dispatchers, got %d", got)
	}
}
