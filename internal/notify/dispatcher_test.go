package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qms/counter-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	message   string
	recipient string
}

type recordingProvider struct {
	mu    sync.Mutex
	sent  []sentMessage
	err   error
	block chan struct{}
}

func (p *recordingProvider) Send(ctx context.Context, message, recipient string) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{message: message, recipient: recipient})
	return p.err
}

func (p *recordingProvider) calls() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]sentMessage, len(p.sent))
	copy(out, p.sent)
	return out
}

func sampleOrder() models.OrderTicket {
	return models.OrderTicket{
		ID:           "order-1",
		Ticket:       "A07",
		Status:       models.StatusReceived,
		Items:        []models.OrderItem{{Name: "Burger", Quantity: 2, UnitPrice: 10}},
		Total:        20,
		CreatedAt:    time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		CustomerName: "Ana",
	}
}

func TestOnNewOrderFansOutToEveryChannel(t *testing.T) {
	email := &recordingProvider{}
	whatsapp := &recordingProvider{}
	d := NewDispatcher(email, whatsapp, NewMemoryMarks(time.Hour, 100), Config{
		AdminEmails:   []string{"kitchen@example.com", "owner@example.com"},
		AdminWhatsApp: []string{"5511999990000"},
	})

	report := d.OnNewOrder(context.Background(), sampleOrder(), "5511988887777")

	require.Len(t, report.Results, 3)
	assert.True(t, report.AllSent())
	require.Len(t, email.calls(), 1)
	assert.Equal(t, "kitchen@example.com,owner@example.com", email.calls()[0].recipient)
	assert.Contains(t, email.calls()[0].message, "A07")
	assert.Contains(t, email.calls()[0].message, "2x Burger")
	assert.Contains(t, email.calls()[0].message, "20.00")
	assert.Len(t, whatsapp.calls(), 2)
}

func TestOnNewOrderEmailIsIdempotent(t *testing.T) {
	email := &recordingProvider{}
	marks := NewMemoryMarks(time.Hour, 100)
	d := NewDispatcher(email, &recordingProvider{}, marks, Config{AdminEmails: []string{"kitchen@example.com"}})

	first := d.OnNewOrder(context.Background(), sampleOrder(), "")
	second := d.OnNewOrder(context.Background(), sampleOrder(), "")

	assert.Len(t, email.calls(), 1)
	require.Len(t, second.Results, 1)
	assert.True(t, first.Results[0].Sent)
	assert.True(t, second.Results[0].Sent, "already sent is reported as sent")
	assert.True(t, second.Results[0].Skipped)
	assert.True(t, marks.Has("email:order-1"))
}

func TestOnNewOrderCustomerWhatsAppIsIdempotent(t *testing.T) {
	whatsapp := &recordingProvider{}
	d := NewDispatcher(nil, whatsapp, NewMemoryMarks(time.Hour, 100), Config{})

	d.OnNewOrder(context.Background(), sampleOrder(), "5511988887777")
	d.OnNewOrder(context.Background(), sampleOrder(), "5511988887777")

	assert.Len(t, whatsapp.calls(), 1)
}

func TestOnNewOrderFailureIsIsolated(t *testing.T) {
	email := &recordingProvider{err: errors.New("smtp down")}
	whatsapp := &recordingProvider{}
	marks := NewMemoryMarks(time.Hour, 100)
	d := NewDispatcher(email, whatsapp, marks, Config{
		AdminEmails:   []string{"kitchen@example.com"},
		AdminWhatsApp: []string{"5511999990000"},
	})

	report := d.OnNewOrder(context.Background(), sampleOrder(), "")

	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Failed())
	assert.False(t, report.Results[0].Sent)
	assert.Equal(t, "smtp down", report.Results[0].Error)
	assert.True(t, report.Results[1].Sent)
	assert.False(t, marks.Has("email:order-1"), "failed sends release their mark")

	email.err = nil
	d.OnNewOrder(context.Background(), sampleOrder(), "")
	assert.Len(t, email.calls(), 2, "a retry after failure may deliver")
}

func TestOnNewOrderHungChannelDoesNotStallOthers(t *testing.T) {
	email := &recordingProvider{block: make(chan struct{})}
	whatsapp := &recordingProvider{}
	d := NewDispatcher(email, whatsapp, nil, Config{
		AdminEmails:   []string{"kitchen@example.com"},
		AdminWhatsApp: []string{"5511999990000"},
	})

	done := make(chan Report, 1)
	go func() {
		done <- d.OnNewOrder(context.Background(), sampleOrder(), "")
	}()

	require.Eventually(t, func() bool { return len(whatsapp.calls()) == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("fan-out returned before the hung channel finished")
	default:
	}

	close(email.block)
	report := <-done
	assert.True(t, report.AllSent())
}

func TestOnNewOrderPanickingProviderIsContained(t *testing.T) {
	d := NewDispatcher(panicProvider{}, &recordingProvider{}, nil, Config{
		AdminEmails:   []string{"kitchen@example.com"},
		AdminWhatsApp: []string{"5511999990000"},
	})

	report := d.OnNewOrder(context.Background(), sampleOrder(), "")
	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Sent)
	assert.True(t, report.Results[1].Sent)
}

func TestOnStatusChangeNotifiesEveryTime(t *testing.T) {
	whatsapp := &recordingProvider{}
	marks := NewMemoryMarks(time.Hour, 100)
	d := NewDispatcher(nil, whatsapp, marks, Config{})
	order := sampleOrder()

	d.OnStatusChange(context.Background(), order, models.StatusReady, "5511988887777")
	d.OnStatusChange(context.Background(), order, models.StatusReady, "5511988887777")

	calls := whatsapp.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Your order A07 is ready for pickup!", calls[0].message)
	assert.Equal(t, 0, marks.Len())
}

func TestOnStatusChangeWithoutPhone(t *testing.T) {
	whatsapp := &recordingProvider{}
	d := NewDispatcher(nil, whatsapp, nil, Config{})

	report := d.OnStatusChange(context.Background(), sampleOrder(), models.StatusReady, " ")
	assert.Empty(t, report.Results)
	assert.Empty(t, whatsapp.calls())
}

type panicProvider struct{}

func (panicProvider) Send(ctx context.Context, message, recipient string) error {
	panic("boom")
}
