package store

import (
	"context"
	"sort"
	"sync"

	"qms/counter-service/internal/models"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]models.OrderTicket
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]models.OrderTicket)}
}

func (r *MemoryRepository) Upsert(ctx context.Context, order models.OrderTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, orderID string) (models.OrderTicket, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	return order, ok, nil
}

// List returns orders newest first.
func (r *MemoryRepository) List(ctx context.Context) ([]models.OrderTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	orders := make([]models.OrderTicket, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}
	SortNewestFirst(orders)
	return orders, nil
}

// SortNewestFirst orders by createdAt descending, ties broken by ID.
func SortNewestFirst(orders []models.OrderTicket) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
