package store

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrDuplicateOrder = errors.New("order already exists")
)
