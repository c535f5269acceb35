package notify

import (
	"context"
	"expvar"
	"log"
	"strings"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	notificationsSent    = expvar.NewInt("notifications_sent_total")
	notificationsFailed  = expvar.NewInt("notifications_failed_total")
	notificationsDeduped = expvar.NewInt("notifications_deduped_total")
)

type ChannelResult struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Sent      bool   `json:"sent"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report lists one result per attempted channel target.
type Report struct {
	Results []ChannelResult `json:"results"`
}

func (r Report) Failed() int {
	count := 0
	for _, result := range r.Results {
		if !result.Sent {
			count++
		}
	}
	return count
}

func (r Report) AllSent() bool {
	return r.Failed() == 0
}

type Config struct {
	AdminEmails   []string
	AdminWhatsApp []string
	Lang          string
}

type Dispatcher struct {
	email         Provider
	whatsapp      Provider
	marks         Marks
	adminEmails   []string
	adminWhatsApp []string
	lang          string
	tracer        trace.Tracer
}

func NewDispatcher(email, whatsapp Provider, marks Marks, cfg Config) *Dispatcher {
	if email == nil {
		email = noopProvider{}
	}
	if whatsapp == nil {
		whatsapp = noopProvider{}
	}
	if marks == nil {
		marks = NewMemoryMarks(0, 0)
	}
	return &Dispatcher{
		email:         email,
		whatsapp:      whatsapp,
		marks:         marks,
		adminEmails:   cfg.AdminEmails,
		adminWhatsApp: cfg.AdminWhatsApp,
		lang:          normalizeLang(cfg.Lang),
		tracer:        otel.Tracer("qms/counter-service/notify"),
	}
}

type target struct {
	channel   string
	provider  Provider
	recipient string
	message   string
	markKey   string
}

// OnNewOrder notifies the admin email list, every admin WhatsApp recipient and,
// when a phone is given, the customer. Targets run concurrently and a failure
// in one never cancels the others.
func (d *Dispatcher) OnNewOrder(ctx context.Context, order models.OrderTicket, customerPhone string) Report {
	var targets []target
	adminMessage := renderMessage(d.lang, templateAdminNewOrder, order, "")
	if len(d.adminEmails) > 0 {
		targets = append(targets, target{
			channel:   ChannelEmail,
			provider:  d.email,
			recipient: strings.Join(d.adminEmails, ","),
			message:   adminMessage,
			markKey:   ChannelEmail + ":" + order.ID,
		})
	}
	for _, recipient := range d.adminWhatsApp {
		targets = append(targets, target{
			channel:   ChannelWhatsApp,
			provider:  d.whatsapp,
			recipient: recipient,
			message:   adminMessage,
			markKey:   "whatsapp_admin:" + order.ID + ":" + recipient,
		})
	}
	if phone := strings.TrimSpace(customerPhone); phone != "" {
		targets = append(targets, target{
			channel:   ChannelWhatsApp,
			provider:  d.whatsapp,
			recipient: phone,
			message:   renderMessage(d.lang, templateCustomerNewOrder, order, ""),
			markKey:   "whatsapp_customer:" + order.ID,
		})
	}
	return d.fanOut(ctx, order, targets)
}

// OnStatusChange sends one WhatsApp message to the customer. Status messages
// are not de-duplicated: every change notifies.
func (d *Dispatcher) OnStatusChange(ctx context.Context, order models.OrderTicket, status, customerPhone string) Report {
	phone := strings.TrimSpace(customerPhone)
	if phone == "" {
		return Report{Results: []ChannelResult{}}
	}
	return d.fanOut(ctx, order, []target{{
		channel:   ChannelWhatsApp,
		provider:  d.whatsapp,
		recipient: phone,
		message:   renderMessage(d.lang, templateStatusChange, order, StatusPhrase(d.lang, status)),
	}})
}

func (d *Dispatcher) fanOut(ctx context.Context, order models.OrderTicket, targets []target) Report {
	results := make([]ChannelResult, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = d.deliver(ctx, order, t)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Results: results}
}

func (d *Dispatcher) deliver(ctx context.Context, order models.OrderTicket, t target) (result ChannelResult) {
	ctx, span := d.tracer.Start(ctx, "notify."+t.channel, trace.WithAttributes(telemetry.OrderAttributes(order)...))
	span.SetAttributes(attribute.String("notify.channel", t.channel))
	defer span.End()

	result = ChannelResult{Channel: t.channel, Recipient: t.recipient}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notify channel=%s order=%s panic=%v", t.channel, order.ID, r)
			result.Sent = false
			result.Error = "provider panic"
			notificationsFailed.Add(1)
			if t.markKey != "" {
				_ = d.marks.Release(ctx, t.markKey)
			}
		}
	}()

	if t.markKey != "" {
		claimed, err := d.marks.Claim(ctx, t.markKey)
		if err != nil {
			log.Printf("notify marks error key=%s: %v", t.markKey, err)
		} else if !claimed {
			notificationsDeduped.Add(1)
			span.SetAttributes(attribute.Bool("notify.deduplicated", true))
			result.Sent = true
			result.Skipped = true
			return result
		}
	}

	if err := t.provider.Send(ctx, t.message, t.recipient); err != nil {
		log.Printf("notify channel=%s order=%s recipient=%s error=%v", t.channel, order.ID, t.recipient, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		notificationsFailed.Add(1)
		if t.markKey != "" {
			if err := d.marks.Release(ctx, t.markKey); err != nil {
				log.Printf("notify marks release error key=%s: %v", t.markKey, err)
			}
		}
		result.Error = err.Error()
		return result
	}

	notificationsSent.Add(1)
	result.Sent = true
	return result
}
