package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/queue"
	"qms/counter-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu        sync.Mutex
	server    models.QueueState
	fetchErr  error
	addErr    error
	statusErr error
	syncs     []models.QueueState
	adds      []models.OrderTicket
	statuses  []string
}

func (f *fakeRemote) CheckReset(ctx context.Context) (bool, error) {
	return false, nil
}

func (f *fakeRemote) FetchQueue(ctx context.Context) (models.QueueState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return models.QueueState{}, f.fetchErr
	}
	return f.server.Clone(), nil
}

func (f *fakeRemote) Sync(ctx context.Context, state models.QueueState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs = append(f.syncs, state)
	f.server = state.Clone()
	return nil
}

func (f *fakeRemote) AddAndNotify(ctx context.Context, order models.OrderTicket, customerPhone string) (queue.AddOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return queue.AddOrderResult{}, f.addErr
	}
	f.adds = append(f.adds, order)
	return queue.AddOrderResult{Order: order}, nil
}

func (f *fakeRemote) UpdateStatus(ctx context.Context, orderID, status, customerPhone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, orderID+"="+status)
	return f.statusErr
}

func (f *fakeRemote) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncs)
}

func (f *fakeRemote) lastSync() models.QueueState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs[len(f.syncs)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newReconciler(t *testing.T, remote *fakeRemote, c *clock) (*Reconciler, *LocalStore) {
	t.Helper()
	local := OpenLocalStore(t.TempDir())
	r := NewReconciler(local, remote, Options{Debounce: time.Hour, Now: c.Now})
	t.Cleanup(r.Close)
	return r, local
}

func burger() []models.OrderItem {
	return []models.OrderItem{{Name: "Burger", Quantity: 2, UnitPrice: 10}}
}

func TestAddOrderAllocatesAndCoalescesPush(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{server: models.QueueState{Orders: []models.OrderTicket{}, CurrentPrefix: "A", CurrentNumber: 7}}
	c := &clock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}
	r, _ := newReconciler(t, remote, c)
	require.NoError(t, r.Start(ctx))

	first, err := r.AddOrder(ctx, NewOrder{Items: burger(), CustomerPhone: "5511988887777"})
	require.NoError(t, err)
	assert.Equal(t, "A07", first.Order.Ticket)
	assert.Equal(t, 20.0, first.Order.Total)
	assert.Equal(t, models.StatusReceived, first.Order.Status)
	assert.NoError(t, first.RemoteErr)

	for i := 0; i < 4; i++ {
		_, err := r.AddOrder(ctx, NewOrder{Items: burger()})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, remote.syncCount())

	assert.True(t, r.Flush())
	require.Equal(t, 1, remote.syncCount())
	pushed := remote.lastSync()
	assert.Len(t, pushed.Orders, 5)
	assert.Equal(t, "A", pushed.CurrentPrefix)
	assert.Equal(t, 12, pushed.CurrentNumber)
	assert.Len(t, remote.adds, 5)
}

func TestAddOrderKeepsLocalStateWhenServerFails(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{fetchErr: errors.New("connection refused"), addErr: errors.New("connection refused")}
	c := &clock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}
	r, local := newReconciler(t, remote, c)
	require.NoError(t, r.Start(ctx))

	result, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)
	assert.Error(t, result.RemoteErr)
	assert.Equal(t, "A01", result.Order.Ticket)

	assert.Len(t, r.Orders(), 1)
	history, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, result.Order.ID, history[0].ID)

	persisted := local.Queue.Load(ctx)
	assert.Len(t, persisted.Orders, 1)
	assert.Equal(t, 2, persisted.CurrentNumber)
}

func TestAddOrderRejectsInvalidItems(t *testing.T) {
	remote := &fakeRemote{}
	r, _ := newReconciler(t, remote, &clock{now: time.Now()})

	_, err := r.AddOrder(context.Background(), NewOrder{Items: []models.OrderItem{{Name: " ", Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrInvalidPayload)
	assert.Empty(t, r.Orders())
}

func TestRefreshMergesCacheAndAdoptsFurtherCounter(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	remote := &fakeRemote{fetchErr: errors.New("timeout")}
	c := &clock{now: day}
	r, _ := newReconciler(t, remote, c)
	require.NoError(t, r.Start(ctx))

	local, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)
	r.debouncer.Cancel()

	remote.mu.Lock()
	remote.fetchErr = nil
	remote.server = models.QueueState{
		Orders: []models.OrderTicket{{
			ID: "other-device", Ticket: "A05", Status: models.StatusPreparing,
			Items: []models.OrderItem{}, CreatedAt: day.Add(-time.Minute),
		}},
		CurrentPrefix: "A",
		CurrentNumber: 6,
	}
	remote.mu.Unlock()

	require.NoError(t, r.Refresh(ctx))
	state := r.State()
	assert.Len(t, state.Orders, 2)
	assert.Equal(t, local.Order.ID, state.Orders[0].ID)
	assert.Equal(t, "A06", r.NextTicket())
	assert.True(t, r.debouncer.Pending())

	require.True(t, r.Flush())
	assert.Len(t, remote.lastSync().Orders, 2)
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	c := &clock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}
	r, _ := newReconciler(t, remote, c)
	require.NoError(t, r.Start(ctx))
	_, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)

	remote.mu.Lock()
	remote.fetchErr = errors.New("503")
	remote.mu.Unlock()

	assert.Error(t, r.Refresh(ctx))
	assert.Len(t, r.Orders(), 1)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	c := &clock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}
	r, _ := newReconciler(t, remote, c)
	require.NoError(t, r.Start(ctx))
	added, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)

	updated, err := r.UpdateStatus(ctx, added.Order.ID, models.StatusReady, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)
	assert.Equal(t, []string{added.Order.ID + "=pronto"}, remote.statuses)

	history, err := r.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, history[0].Status)

	_, err = r.UpdateStatus(ctx, "missing", models.StatusReady, "")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
	_, err = r.UpdateStatus(ctx, added.Order.ID, "done", "")
	assert.ErrorIs(t, err, store.ErrInvalidStatus)
}

func TestStartResetsOnNewDayButKeepsHistory(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{fetchErr: errors.New("offline")}
	dir := t.TempDir()
	c := &clock{now: time.Date(2026, 3, 2, 18, 0, 0, 0, time.Local)}

	first := NewReconciler(OpenLocalStore(dir), remote, Options{Debounce: time.Hour, Now: c.Now})
	require.NoError(t, first.Start(ctx))
	for i := 0; i < 3; i++ {
		_, err := first.AddOrder(ctx, NewOrder{Items: burger()})
		require.NoError(t, err)
	}
	first.debouncer.Stop()

	c.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.Local))
	second := NewReconciler(OpenLocalStore(dir), remote, Options{Debounce: time.Hour, Now: c.Now})
	t.Cleanup(second.Close)
	require.NoError(t, second.Start(ctx))

	assert.Empty(t, second.Orders())
	assert.Equal(t, "A01", second.NextTicket())
	history, err := second.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestAddOrderRecordsHistoryOverCorruptLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFileName), []byte("{nope"), 0o644))

	remote := &fakeRemote{}
	r := NewReconciler(OpenLocalStore(dir), remote, Options{Debounce: time.Hour, Now: (&clock{now: time.Now()}).Now})
	t.Cleanup(r.Close)
	require.NoError(t, r.Start(ctx))

	added, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)

	history, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, added.Order.ID, history[0].ID)
}

func TestRefreshMovesCounterPastMergedTickets(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)
	remote := &fakeRemote{server: models.QueueState{
		Orders: []models.OrderTicket{
			{ID: "s1", Ticket: "A03", Items: []models.OrderItem{}, CreatedAt: day},
		},
		CurrentPrefix: "A",
		CurrentNumber: 1,
	}}
	r, _ := newReconciler(t, remote, &clock{now: day})
	require.NoError(t, r.Start(ctx))

	assert.Equal(t, "A04", r.NextTicket())
	added, err := r.AddOrder(ctx, NewOrder{Items: burger()})
	require.NoError(t, err)
	assert.Equal(t, "A04", added.Order.Ticket)
}
