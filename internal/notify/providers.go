package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

type Provider interface {
	Send(ctx context.Context, message, recipient string) error
}

type SMTPSettings struct {
	Addr     string
	Username string
	Password string
	From     string
	Subject  string
}

type ProviderSettings struct {
	WebhookURL   string
	WebhookToken string
	SMTP         SMTPSettings
}

// NewProvider picks a provider by kind: log (default), noop, fail, webhook,
// smtp, or a bare http(s) URL treated as a webhook.
func NewProvider(kind, channel string, settings ProviderSettings) Provider {
	switch kind {
	case "", "stub", "log":
		return logProvider{channel: channel}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if settings.WebhookURL == "" {
			return logProvider{channel: channel}
		}
		return newWebhookProvider(channel, settings.WebhookURL, settings.WebhookToken)
	case "smtp":
		if settings.SMTP.Addr == "" {
			return logProvider{channel: channel}
		}
		return smtpProvider{settings: settings.SMTP}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return newWebhookProvider(channel, kind, settings.WebhookToken)
		}
		return logProvider{channel: channel}
	}
}

type logProvider struct {
	channel string
}

func (p logProvider) Send(ctx context.Context, message, recipient string) error {
	log.Printf("send %s to %s: %s", p.channel, recipient, message)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, message, recipient string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, message, recipient string) error {
	return errors.New("provider failure")
}

type webhookProvider struct {
	channel string
	url     string
	token   string
	client  *http.Client
}

func newWebhookProvider(channel, url, token string) webhookProvider {
	return webhookProvider{
		channel: channel,
		url:     url,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p webhookProvider) Send(ctx context.Context, message, recipient string) error {
	payload := map[string]string{
		"channel":   p.channel,
		"recipient": recipient,
		"message":   message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider rejected request: status %d", resp.StatusCode)
	}
	return nil
}

// smtpProvider sends plain-text mail; recipient may be a comma separated list.
type smtpProvider struct {
	settings SMTPSettings
}

func (p smtpProvider) Send(ctx context.Context, message, recipient string) error {
	to := splitList(recipient)
	if len(to) == 0 {
		return errors.New("smtp: no recipients")
	}
	subject := p.settings.Subject
	if subject == "" {
		subject = "New order"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", p.settings.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	body.WriteString(message)
	body.WriteString("\r\n")

	var auth smtp.Auth
	if p.settings.Username != "" {
		host := p.settings.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", p.settings.Username, p.settings.Password, host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(p.settings.Addr, auth, p.settings.From, to, []byte(body.String()))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
