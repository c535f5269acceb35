package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/queue"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx answer from the counter service.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("counter service returned %d", e.Status)
	}
	return fmt.Sprintf("counter service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the counter service over HTTP.
type Client struct {
	baseURL  string
	deviceID string
	http     *http.Client
}

func NewClient(baseURL, deviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		deviceID: deviceID,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) CheckReset(ctx context.Context) (bool, error) {
	var out struct {
		Reset bool `json:"reset"`
	}
	if err := c.do(ctx, http.MethodGet, "/queue/check-reset", nil, &out); err != nil {
		return false, err
	}
	return out.Reset, nil
}

func (c *Client) FetchQueue(ctx context.Context) (models.QueueState, error) {
	var state models.QueueState
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &state); err != nil {
		return models.QueueState{}, err
	}
	if state.Orders == nil {
		state.Orders = []models.OrderTicket{}
	}
	return state, nil
}

func (c *Client) NextTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodGet, "/queue/next-ticket", nil, &out); err != nil {
		return "", err
	}
	return out.Ticket, nil
}

func (c *Client) Sync(ctx context.Context, state models.QueueState) error {
	if state.Orders == nil {
		state.Orders = []models.OrderTicket{}
	}
	return c.do(ctx, http.MethodPost, "/queue/sync", state, nil)
}

func (c *Client) AddAndNotify(ctx context.Context, order models.OrderTicket, customerPhone string) (queue.AddOrderResult, error) {
	payload := map[string]interface{}{
		"order":         order,
		"customerPhone": customerPhone,
	}
	var out queue.AddOrderResult
	if err := c.do(ctx, http.MethodPost, "/queue/add-and-notify", payload, &out); err != nil {
		return queue.AddOrderResult{}, err
	}
	return out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID, status, customerPhone string) error {
	payload := map[string]string{
		"orderId":       orderID,
		"status":        status,
		"customerPhone": customerPhone,
	}
	return c.do(ctx, http.MethodPost, "/queue/update-status", payload, nil)
}

func (c *Client) History(ctx context.Context) ([]models.OrderTicket, error) {
	var orders []models.OrderTicket
	if err := c.do(ctx, http.MethodGet, "/orders/history", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			RequestID string `json:"request_id"`
			Error     struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.RequestID = envelope.RequestID
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
