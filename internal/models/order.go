package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Notes     string  `json:"notes,omitempty"`
}

type OrderTicket struct {
	ID            string      `json:"id"`
	Ticket        string      `json:"ticket"`
	Status        string      `json:"status"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	CreatedAt     time.Time   `json:"createdAt"`
	CustomerID    string      `json:"customerId,omitempty"`
	CustomerName  string      `json:"customerName,omitempty"`
	CustomerPhone string      `json:"customerPhone,omitempty"`
}

// QueueState is the persisted working set of the counter for one operating day.
type QueueState struct {
	Orders        []OrderTicket `json:"orders"`
	CurrentPrefix string        `json:"currentPrefix"`
	CurrentNumber int           `json:"currentNumber"`
}

const (
	InitialPrefix = "A"
	InitialNumber = 1
)

func NewQueueState() QueueState {
	return QueueState{
		Orders:        []OrderTicket{},
		CurrentPrefix: InitialPrefix,
		CurrentNumber: InitialNumber,
	}
}

// ComputeTotal sums quantity*unitPrice in decimal arithmetic and rounds to cents.
func ComputeTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

func (s QueueState) IndexOf(orderID string) int {
	for i, order := range s.Orders {
		if order.ID == orderID {
			return i
		}
	}
	return -1
}

// Upsert replaces the order with the same ID or appends it.
func (s *QueueState) Upsert(order OrderTicket) {
	if i := s.IndexOf(order.ID); i >= 0 {
		s.Orders[i] = order
		return
	}
	s.Orders = append(s.Orders, order)
}

// Clone returns a copy whose order slice can be mutated independently.
func (s QueueState) Clone() QueueState {
	orders := make([]OrderTicket, len(s.Orders))
	copy(orders, s.Orders)
	s.Orders = orders
	return s
}

// LatestCreatedAt reports the newest createdAt among the orders.
func (s QueueState) LatestCreatedAt() (time.Time, bool) {
	var latest time.Time
	for _, order := range s.Orders {
		if order.CreatedAt.After(latest) {
			latest = order.CreatedAt
		}
	}
	return latest, len(s.Orders) > 0
}
