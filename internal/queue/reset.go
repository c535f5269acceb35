package queue

import (
	"context"
	"log"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/store"
)

// ResetGuard clears the queue when its newest order belongs to an earlier
// calendar day. It runs on access, not on a timer.
type ResetGuard struct {
	store store.QueueStore
	now   func() time.Time
}

func NewResetGuard(st store.QueueStore, now func() time.Time) *ResetGuard {
	if now == nil {
		now = time.Now
	}
	return &ResetGuard{store: st, now: now}
}

func (g *ResetGuard) CheckAndReset(ctx context.Context) bool {
	state := g.store.Load(ctx)
	next, reset := ResetIfStale(state, g.now())
	if !reset {
		return false
	}
	if err := g.store.Save(ctx, next); err != nil {
		log.Printf("queue reset save error: %v", err)
	}
	return true
}

// ResetIfStale returns a fresh state when the newest order was created on a
// different local calendar day than now. An empty queue is never reset.
func ResetIfStale(state models.QueueState, now time.Time) (models.QueueState, bool) {
	latest, ok := state.LatestCreatedAt()
	if !ok {
		return state, false
	}
	if SameDay(latest, now) {
		return state, false
	}
	return models.NewQueueState(), true
}

// SameDay compares calendar dates in now's location.
func SameDay(t, now time.Time) bool {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
