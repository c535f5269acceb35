package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/queue"
	"qms/counter-service/internal/store"

	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// Remote is the subset of the counter service the reconciler depends on.
type Remote interface {
	CheckReset(ctx context.Context) (bool, error)
	FetchQueue(ctx context.Context) (models.QueueState, error)
	Sync(ctx context.Context, state models.QueueState) error
	AddAndNotify(ctx context.Context, order models.OrderTicket, customerPhone string) (queue.AddOrderResult, error)
	UpdateStatus(ctx context.Context, orderID, status, customerPhone string) error
}

type Options struct {
	Debounce    time.Duration
	PushTimeout time.Duration
	Now         func() time.Time
}

type NewOrder struct {
	Items         []models.OrderItem
	CustomerID    string
	CustomerName  string
	CustomerPhone string
}

// AddResult carries the locally accepted order. RemoteErr is set when the
// server round-trip failed; the local order is kept either way.
type AddResult struct {
	Order     models.OrderTicket
	Remote    *queue.AddOrderResult
	RemoteErr error
}

// Reconciler holds the device copy of the queue. Mutations apply locally
// first and are pushed to the server through a debounced full-state sync.
type Reconciler struct {
	mu          sync.Mutex
	pushMu      sync.Mutex
	state       models.QueueState
	local       *LocalStore
	remote      Remote
	debouncer   *Debouncer
	pushTimeout time.Duration
	now         func() time.Time
}

func NewReconciler(local *LocalStore, remote Remote, options Options) *Reconciler {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	delay := options.Debounce
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	pushTimeout := options.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = 10 * time.Second
	}
	r := &Reconciler{
		local:       local,
		remote:      remote,
		pushTimeout: pushTimeout,
		now:         now,
	}
	r.debouncer = NewDebouncer(delay, r.push)
	return r
}

// Start loads the cached queue, applies the local daily reset, asks the server
// to check its own reset and merges the server's queue into the cache. Server
// failures are logged and the cached copy stays in use.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	r.state = r.local.Queue.Load(ctx)
	r.resetIfNewDayLocked(ctx)
	r.mu.Unlock()

	if _, err := r.remote.CheckReset(ctx); err != nil {
		log.Printf("sync check-reset error: %v", err)
	}
	if err := r.Refresh(ctx); err != nil {
		log.Printf("sync refresh error: %v", err)
	}
	return nil
}

// Refresh fetches the server queue and merges it with the local copy. Orders
// only the device knows about are kept and pushed back.
func (r *Reconciler) Refresh(ctx context.Context) error {
	server, err := r.remote.FetchQueue(ctx)
	if err != nil {
		return fmt.Errorf("fetch queue: %w", err)
	}

	r.mu.Lock()
	r.resetIfNewDayLocked(ctx)
	cached := r.state
	server, _ = queue.ResetIfStale(server, r.now())

	merged := models.QueueState{
		Orders:        MergeOrders(server.Orders, cached.Orders),
		CurrentPrefix: server.CurrentPrefix,
		CurrentNumber: server.CurrentNumber,
	}
	if !queue.ValidPrefix(merged.CurrentPrefix) || merged.CurrentNumber < 1 ||
		queue.CounterAfter(cached.CurrentPrefix, cached.CurrentNumber, server.CurrentPrefix, server.CurrentNumber) {
		merged.CurrentPrefix = cached.CurrentPrefix
		merged.CurrentNumber = cached.CurrentNumber
	}
	for _, order := range merged.Orders {
		merged = queue.AdvancePast(merged, order.Ticket)
	}
	ahead := len(merged.Orders) > len(server.Orders) ||
		merged.CurrentPrefix != server.CurrentPrefix || merged.CurrentNumber != server.CurrentNumber

	r.state = merged
	r.persistLocked(ctx)
	r.mu.Unlock()

	if err := r.local.History.UpsertMany(ctx, merged.Orders); err != nil {
		log.Printf("sync history error: %v", err)
	}
	if ahead {
		r.debouncer.Schedule()
	}
	return nil
}

// AddOrder allocates the next ticket, records the order locally and in the
// history log, then asks the server to store and announce it.
func (r *Reconciler) AddOrder(ctx context.Context, input NewOrder) (AddResult, error) {
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return AddResult{}, fmt.Errorf("%w: items need a name, a positive quantity and a non-negative price", store.ErrInvalidPayload)
		}
		items = append(items, item)
	}

	r.mu.Lock()
	r.resetIfNewDayLocked(ctx)
	order := models.OrderTicket{
		ID:            uuid.NewString(),
		Status:        models.StatusReceived,
		Items:         items,
		Total:         models.ComputeTotal(items),
		CreatedAt:     r.now(),
		CustomerID:    input.CustomerID,
		CustomerName:  input.CustomerName,
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
	}
	order.Ticket, r.state = queue.AllocateUnused(r.state)
	r.state.Upsert(order)
	r.persistLocked(ctx)
	r.mu.Unlock()

	if err := r.local.History.Upsert(ctx, order); err != nil {
		log.Printf("sync history error order=%s: %v", order.ID, err)
	}

	result := AddResult{Order: order}
	remote, err := r.remote.AddAndNotify(ctx, order, order.CustomerPhone)
	if err != nil {
		log.Printf("sync add-and-notify error order=%s ticket=%s: %v", order.ID, order.Ticket, err)
		result.RemoteErr = err
	} else {
		result.Remote = &remote
	}
	r.debouncer.Schedule()
	return result, nil
}

// UpdateStatus changes an order's status locally and tells the server so the
// customer can be notified.
func (r *Reconciler) UpdateStatus(ctx context.Context, orderID, status, customerPhone string) (models.OrderTicket, error) {
	if !models.ValidStatus(status) {
		return models.OrderTicket{}, fmt.Errorf("%w: %s", store.ErrInvalidStatus, status)
	}

	r.mu.Lock()
	i := r.state.IndexOf(orderID)
	if i < 0 {
		r.mu.Unlock()
		return models.OrderTicket{}, fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderID)
	}
	r.state.Orders[i].Status = status
	order := r.state.Orders[i]
	r.persistLocked(ctx)
	r.mu.Unlock()

	if err := r.local.History.Upsert(ctx, order); err != nil {
		log.Printf("sync history error order=%s: %v", order.ID, err)
	}
	if err := r.remote.UpdateStatus(ctx, orderID, status, strings.TrimSpace(customerPhone)); err != nil {
		log.Printf("sync update-status error order=%s: %v", orderID, err)
	}
	r.debouncer.Schedule()
	return order, nil
}

// Flush pushes a pending sync right away. It reports whether one was pending.
func (r *Reconciler) Flush() bool {
	return r.debouncer.Flush()
}

// Push sends the current state to the server regardless of pending syncs.
func (r *Reconciler) Push(ctx context.Context) error {
	r.debouncer.Cancel()
	return r.pushState(ctx)
}

// Close pushes whatever is pending and stops further scheduling.
func (r *Reconciler) Close() {
	r.debouncer.Flush()
	r.debouncer.Stop()
}

func (r *Reconciler) State() models.QueueState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Orders returns the current-day queue newest first.
func (r *Reconciler) Orders() []models.OrderTicket {
	orders := r.State().Orders
	store.SortNewestFirst(orders)
	return orders
}

func (r *Reconciler) History(ctx context.Context) ([]models.OrderTicket, error) {
	return r.local.History.List(ctx)
}

func (r *Reconciler) NextTicket() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, _ := queue.AllocateUnused(r.state)
	return ticket
}

func (r *Reconciler) push() {
	ctx, cancel := context.WithTimeout(context.Background(), r.pushTimeout)
	defer cancel()
	if err := r.pushState(ctx); err != nil {
		log.Printf("sync push error: %v", err)
	}
}

func (r *Reconciler) pushState(ctx context.Context) error {
	r.pushMu.Lock()
	defer r.pushMu.Unlock()
	state := r.State()
	if err := r.remote.Sync(ctx, state); err != nil {
		return fmt.Errorf("push queue: %w", err)
	}
	log.Printf("sync push ok orders=%d counter=%s", len(state.Orders), queue.FormatTicket(state.CurrentPrefix, state.CurrentNumber))
	return nil
}

// resetIfNewDayLocked clears the queue when the date marker or the newest
// order is from an earlier day. History is untouched. Callers hold r.mu.
func (r *Reconciler) resetIfNewDayLocked(ctx context.Context) {
	today := r.now().Format(dayLayout)
	marker := r.local.DateMarker()

	next, reset := queue.ResetIfStale(r.state, r.now())
	if marker != "" && marker != today {
		next, reset = models.NewQueueState(), true
	}
	if reset {
		log.Printf("sync local reset for new day dropped_orders=%d", len(r.state.Orders))
		r.state = next
		r.persistLocked(ctx)
	}
	if marker != today {
		if err := r.local.SetDateMarker(today); err != nil {
			log.Printf("sync date marker error: %v", err)
		}
	}
}

func (r *Reconciler) persistLocked(ctx context.Context) {
	if err := r.local.Queue.Save(ctx, r.state); err != nil {
		log.Printf("sync local save error: %v", err)
	}
}
