package syncer

import (
	"qms/counter-service/internal/models"
	"qms/counter-service/internal/store"
)

// MergeOrders treats the server list as authoritative and appends every cached
// order the server did not return. No id appears twice and the result is
// sorted newest first.
func MergeOrders(server, cached []models.OrderTicket) []models.OrderTicket {
	seen := make(map[string]struct{}, len(server)+len(cached))
	merged := make([]models.OrderTicket, 0, len(server)+len(cached))
	for _, order := range server {
		if _, ok := seen[order.ID]; ok {
			continue
		}
		seen[order.ID] = struct{}{}
		merged = append(merged, order)
	}
	for _, order := range cached {
		if _, ok := seen[order.ID]; ok {
			continue
		}
		seen[order.ID] = struct{}{}
		merged = append(merged, order)
	}
	store.SortNewestFirst(merged)
	return merged
}
