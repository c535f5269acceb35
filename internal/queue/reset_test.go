package queue

import (
	"context"
	"testing"
	"time"

	"qms/counter-service/internal/models"
)

type memoryQueueStore struct {
	state models.QueueState
	saves int
}

func (m *memoryQueueStore) Load(ctx context.Context) models.QueueState {
	if m.state.CurrentPrefix == "" {
		return models.NewQueueState()
	}
	return m.state.Clone()
}

func (m *memoryQueueStore) Save(ctx context.Context, state models.QueueState) error {
	m.saves++
	m.state = state.Clone()
	return nil
}

func TestCheckAndResetEmptyQueue(t *testing.T) {
	st := &memoryQueueStore{state: models.QueueState{Orders: []models.OrderTicket{}, CurrentPrefix: "C", CurrentNumber: 4}}
	guard := NewResetGuard(st, func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.Local) })

	if guard.CheckAndReset(context.Background()) {
		t.Fatalf("empty queue must not reset")
	}
	if st.saves != 0 || st.state.CurrentPrefix != "C" {
		t.Fatalf("state should be untouched: %+v", st.state)
	}
}

func TestCheckAndResetPreviousDay(t *testing.T) {
	now := time.Date(2026, 4, 2, 0, 5, 0, 0, time.Local)
	st := &memoryQueueStore{state: models.QueueState{
		Orders: []models.OrderTicket{
			{ID: "o1", Ticket: "A01", CreatedAt: now.AddDate(0, 0, -3)},
			{ID: "o2", Ticket: "B17", CreatedAt: now.Add(-10 * time.Minute)},
		},
		CurrentPrefix: "B",
		CurrentNumber: 18,
	}}
	guard := NewResetGuard(st, func() time.Time { return now })

	if !guard.CheckAndReset(context.Background()) {
		t.Fatalf("expected reset")
	}
	if len(st.state.Orders) != 0 || st.state.CurrentPrefix != "A" || st.state.CurrentNumber != 1 {
		t.Fatalf("unexpected state after reset: %+v", st.state)
	}
	if st.saves != 1 {
		t.Fatalf("expected reset to persist, saves=%d", st.saves)
	}
}

func TestCheckAndResetSameDay(t *testing.T) {
	now := time.Date(2026, 4, 2, 23, 59, 0, 0, time.Local)
	st := &memoryQueueStore{state: models.QueueState{
		Orders: []models.OrderTicket{
			{ID: "o1", Ticket: "A01", CreatedAt: now.AddDate(0, 0, -1)},
			{ID: "o2", Ticket: "A02", CreatedAt: time.Date(2026, 4, 2, 0, 0, 1, 0, time.Local)},
		},
		CurrentPrefix: "A",
		CurrentNumber: 3,
	}}
	guard := NewResetGuard(st, func() time.Time { return now })

	if guard.CheckAndReset(context.Background()) {
		t.Fatalf("latest order is from today; reset not expected")
	}
	if len(st.state.Orders) != 2 || st.state.CurrentNumber != 3 || st.saves != 0 {
		t.Fatalf("state should be untouched: %+v", st.state)
	}
}

func TestSameDayUsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, loc)
	// 01:30 UTC on the 2nd is 22:30 on the 1st in BRT.
	order := time.Date(2026, 4, 2, 1, 30, 0, 0, time.UTC)
	if SameDay(order, now) {
		t.Fatalf("expected different local days")
	}
	if !SameDay(time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC), now) {
		t.Fatalf("expected same local day")
	}
}
