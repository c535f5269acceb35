package main

import (
	"fmt"
	"strconv"
	"strings"

	"qms/counter-service/internal/models"
)

// parseItem reads name:quantity:unitPrice with optional trailing :notes.
func parseItem(raw string) (models.OrderItem, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return models.OrderItem{}, fmt.Errorf("item %q: want name:quantity:unitPrice[:notes]", raw)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return models.OrderItem{}, fmt.Errorf("item %q: name is empty", raw)
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || quantity <= 0 {
		return models.OrderItem{}, fmt.Errorf("item %q: quantity must be a positive integer", raw)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || price < 0 {
		return models.OrderItem{}, fmt.Errorf("item %q: unitPrice must be a non-negative number", raw)
	}
	item := models.OrderItem{Name: name, Quantity: quantity, UnitPrice: price}
	if len(parts) == 4 {
		item.Notes = strings.TrimSpace(parts[3])
	}
	return item, nil
}
