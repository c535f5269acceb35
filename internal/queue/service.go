package queue

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/notify"
	"qms/counter-service/internal/store"
	"qms/counter-service/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("qms/counter-service/queue")

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventQueueReset         = "queue.reset"
	EventQueueSynced        = "queue.synced"
)

type Notifier interface {
	OnNewOrder(ctx context.Context, order models.OrderTicket, customerPhone string) notify.Report
	OnStatusChange(ctx context.Context, order models.OrderTicket, status, customerPhone string) notify.Report
}

type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]interface{})
}

// Publishers forwards every event to each publisher in turn.
type Publishers []EventPublisher

func (p Publishers) Publish(ctx context.Context, event string, payload map[string]interface{}) {
	for _, publisher := range p {
		if publisher != nil {
			publisher.Publish(ctx, event, payload)
		}
	}
}

type AddOrderInput struct {
	Order         models.OrderTicket
	CustomerPhone string
}

type AddOrderResult struct {
	Order         models.OrderTicket `json:"order"`
	Duplicate     bool               `json:"duplicate"`
	Notifications notify.Report      `json:"notifications"`
}

type UpdateStatusInput struct {
	OrderID       string
	Status        string
	CustomerPhone string
}

type UpdateStatusResult struct {
	Order         models.OrderTicket `json:"order"`
	Notifications notify.Report      `json:"notifications"`
}

type SyncResult struct {
	Success    bool      `json:"success"`
	OrderCount int       `json:"orderCount"`
	Timestamp  time.Time `json:"timestamp"`
}

type Options struct {
	History  store.OrderRepository
	Notifier Notifier
	Events   EventPublisher
	Now      func() time.Time
}

// Service owns the server-side queue document. Mutations are serialized in
// process; writes from different clients still follow last-write-wins.
type Service struct {
	mu       sync.Mutex
	store    store.QueueStore
	history  store.OrderRepository
	notifier Notifier
	events   EventPublisher
	now      func() time.Time
}

func NewService(st store.QueueStore, options Options) *Service {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	history := options.History
	if history == nil {
		history = store.NewMemoryRepository()
	}
	return &Service{
		store:    st,
		history:  history,
		notifier: options.Notifier,
		events:   options.Events,
		now:      now,
	}
}

func (s *Service) CheckReset(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, reset := s.loadFresh(ctx)
	return reset, nil
}

func (s *Service) Snapshot(ctx context.Context) (models.QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, _ := s.loadFresh(ctx)
	return state, nil
}

// NextTicket reports the ticket the next server-allocated order would get.
func (s *Service) NextTicket(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, _ := s.loadFresh(ctx)
	ticket, _ := AllocateUnused(state)
	return ticket, nil
}

// Sync replaces the stored document with the client's copy.
func (s *Service) Sync(ctx context.Context, state models.QueueState) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "queue.sync")
	defer span.End()
	span.SetAttributes(telemetry.CounterAttributes(state)...)

	if err := ValidateState(state); err != nil {
		return SyncResult{}, err
	}
	if state.Orders == nil {
		state.Orders = []models.OrderTicket{}
	}

	s.mu.Lock()
	err := s.store.Save(ctx, state)
	s.mu.Unlock()
	if err != nil {
		log.Printf("queue sync save error: %v", err)
	}

	for _, order := range state.Orders {
		s.archive(ctx, order)
	}
	s.publish(ctx, EventQueueSynced, map[string]interface{}{
		"order_count":    len(state.Orders),
		"current_prefix": state.CurrentPrefix,
		"current_number": state.CurrentNumber,
	})

	return SyncResult{
		Success:    true,
		OrderCount: len(state.Orders),
		Timestamp:  s.now().UTC(),
	}, nil
}

// AddAndNotify appends a new order and fans out notifications once. An order
// whose ID is already queued is returned as-is without notifying again.
func (s *Service) AddAndNotify(ctx context.Context, input AddOrderInput) (AddOrderResult, error) {
	ctx, span := tracer.Start(ctx, "queue.add_and_notify")
	defer span.End()

	order := input.Order
	if order.Status != "" && !models.ValidStatus(order.Status) {
		return AddOrderResult{}, fmt.Errorf("%w: %s", store.ErrInvalidStatus, order.Status)
	}

	s.mu.Lock()
	state, _ := s.loadFresh(ctx)
	if order.ID != "" {
		if i := state.IndexOf(order.ID); i >= 0 {
			existing := state.Orders[i]
			s.mu.Unlock()
			return AddOrderResult{Order: existing, Duplicate: true}, nil
		}
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	if order.Status == "" {
		order.Status = models.StatusReceived
	}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	order.Total = models.ComputeTotal(order.Items)
	if strings.TrimSpace(order.Ticket) == "" {
		order.Ticket, state = AllocateUnused(state)
	} else {
		state = AdvancePast(state, order.Ticket)
	}
	phone := strings.TrimSpace(input.CustomerPhone)
	if phone == "" {
		phone = order.CustomerPhone
	} else if order.CustomerPhone == "" {
		order.CustomerPhone = phone
	}

	span.SetAttributes(telemetry.OrderAttributes(order)...)
	span.SetAttributes(telemetry.CounterAttributes(state)...)
	state.Orders = append(state.Orders, order)
	if err := s.store.Save(ctx, state); err != nil {
		log.Printf("queue add save error order=%s: %v", order.ID, err)
	}
	s.mu.Unlock()

	s.archive(ctx, order)
	s.publish(ctx, EventOrderCreated, orderPayload(order))

	result := AddOrderResult{Order: order}
	if s.notifier != nil {
		result.Notifications = s.notifier.OnNewOrder(ctx, order, phone)
	}
	return result, nil
}

func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (UpdateStatusResult, error) {
	ctx, span := tracer.Start(ctx, "queue.update_status")
	defer span.End()

	if !models.ValidStatus(input.Status) {
		return UpdateStatusResult{}, fmt.Errorf("%w: %s", store.ErrInvalidStatus, input.Status)
	}

	s.mu.Lock()
	state := s.store.Load(ctx)
	i := state.IndexOf(input.OrderID)
	if i < 0 {
		s.mu.Unlock()
		return UpdateStatusResult{}, fmt.Errorf("%w: %s", store.ErrOrderNotFound, input.OrderID)
	}
	state.Orders[i].Status = input.Status
	order := state.Orders[i]
	span.SetAttributes(telemetry.OrderAttributes(order)...)
	if err := s.store.Save(ctx, state); err != nil {
		log.Printf("queue status save error order=%s: %v", order.ID, err)
	}
	s.mu.Unlock()

	s.archive(ctx, order)
	payload := orderPayload(order)
	s.publish(ctx, EventOrderStatusChanged, payload)

	phone := strings.TrimSpace(input.CustomerPhone)
	if phone == "" {
		phone = order.CustomerPhone
	}
	result := UpdateStatusResult{Order: order}
	if s.notifier != nil {
		result.Notifications = s.notifier.OnStatusChange(ctx, order, input.Status, phone)
	}
	return result, nil
}

func (s *Service) History(ctx context.Context) ([]models.OrderTicket, error) {
	return s.history.List(ctx)
}

// ValidateState rejects sync payloads the counter cannot represent.
func ValidateState(state models.QueueState) error {
	if !ValidPrefix(state.CurrentPrefix) {
		return fmt.Errorf("%w: currentPrefix must be uppercase letters", store.ErrInvalidPayload)
	}
	if state.CurrentNumber < 1 || state.CurrentNumber > maxTicketNumber {
		return fmt.Errorf("%w: currentNumber must be between 1 and %d", store.ErrInvalidPayload, maxTicketNumber)
	}
	for _, order := range state.Orders {
		if strings.TrimSpace(order.ID) == "" {
			return fmt.Errorf("%w: every order needs an id", store.ErrInvalidPayload)
		}
	}
	return nil
}

// loadFresh loads the document and applies the daily reset. Callers hold s.mu.
func (s *Service) loadFresh(ctx context.Context) (models.QueueState, bool) {
	state := s.store.Load(ctx)
	next, reset := ResetIfStale(state, s.now())
	if !reset {
		return state, false
	}
	if err := s.store.Save(ctx, next); err != nil {
		log.Printf("queue reset save error: %v", err)
	}
	log.Printf("queue reset for new day dropped_orders=%d", len(state.Orders))
	s.publish(ctx, EventQueueReset, map[string]interface{}{
		"dropped_orders": len(state.Orders),
	})
	return next, true
}

func (s *Service) archive(ctx context.Context, order models.OrderTicket) {
	if err := s.history.Upsert(ctx, order); err != nil {
		log.Printf("order history upsert error order=%s: %v", order.ID, err)
	}
}

func (s *Service) publish(ctx context.Context, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event, payload)
}

func orderPayload(order models.OrderTicket) map[string]interface{} {
	return map[string]interface{}{
		"order_id":   order.ID,
		"ticket":     order.Ticket,
		"status":     order.Status,
		"total":      order.Total,
		"created_at": order.CreatedAt,
	}
}
