package store

import (
	"context"

	"qms/counter-service/internal/models"
)

// QueueStore persists the whole queue document. Writes replace the document
// wholesale and the last writer wins.
type QueueStore interface {
	// Load never fails: a missing or unreadable document yields a fresh state.
	Load(ctx context.Context) models.QueueState
	Save(ctx context.Context, state models.QueueState) error
}

// OrderRepository keeps orders keyed by ID. Both the per-day queue and the
// never-pruned history log implement it.
type OrderRepository interface {
	Upsert(ctx context.Context, order models.OrderTicket) error
	Get(ctx context.Context, orderID string) (models.OrderTicket, bool, error)
	List(ctx context.Context) ([]models.OrderTicket, error)
}
