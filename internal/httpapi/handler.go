package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/queue"
	"qms/counter-service/internal/store"
)

type QueueService interface {
	CheckReset(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (models.QueueState, error)
	NextTicket(ctx context.Context) (string, error)
	Sync(ctx context.Context, state models.QueueState) (queue.SyncResult, error)
	AddAndNotify(ctx context.Context, input queue.AddOrderInput) (queue.AddOrderResult, error)
	UpdateStatus(ctx context.Context, input queue.UpdateStatusInput) (queue.UpdateStatusResult, error)
	History(ctx context.Context) ([]models.OrderTicket, error)
}

type Handler struct {
	queue QueueService
}

type syncRequest struct {
	Orders        json.RawMessage `json:"orders"`
	CurrentPrefix *string         `json:"currentPrefix"`
	CurrentNumber *int            `json:"currentNumber"`
}

type addOrderRequest struct {
	Order         *models.OrderTicket `json:"order"`
	CustomerPhone string              `json:"customerPhone"`
}

type updateStatusRequest struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	CustomerPhone string `json:"customerPhone"`
}

type addOrderResponse struct {
	Success bool `json:"success"`
	queue.AddOrderResult
}

type updateStatusResponse struct {
	Success bool `json:"success"`
	queue.UpdateStatusResult
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(svc QueueService) *Handler {
	return &Handler{queue: svc}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/queue", h.handleQueue)
	mux.HandleFunc("/queue/check-reset", h.handleCheckReset)
	mux.HandleFunc("/queue/next-ticket", h.handleNextTicket)
	mux.HandleFunc("/queue/sync", h.handleSync)
	mux.HandleFunc("/queue/add-and-notify", h.handleAddAndNotify)
	mux.HandleFunc("/queue/update-status", h.handleUpdateStatus)
	mux.HandleFunc("/orders/history", h.handleHistory)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := h.queue.Snapshot(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleCheckReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	reset, err := h.queue.CheckReset(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": reset})
}

func (h *Handler) handleNextTicket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ticket, err := h.queue.NextTicket(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rid := requestID(r)

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	raw := bytes.TrimSpace(req.Orders)
	if len(raw) == 0 || raw[0] != '[' {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "orders must be an array")
		return
	}
	if req.CurrentPrefix == nil || req.CurrentNumber == nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "currentPrefix and currentNumber are required")
		return
	}
	var orders []models.OrderTicket
	if err := json.Unmarshal(raw, &orders); err != nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "orders must be an array of orders")
		return
	}

	result, err := h.queue.Sync(r.Context(), models.QueueState{
		Orders:        orders,
		CurrentPrefix: strings.TrimSpace(*req.CurrentPrefix),
		CurrentNumber: *req.CurrentNumber,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, rid, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAddAndNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rid := requestID(r)

	var req addOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.Order == nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "order is required")
		return
	}
	order := *req.Order
	order.ID = strings.TrimSpace(order.ID)
	order.Ticket = strings.TrimSpace(order.Ticket)
	for _, item := range order.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			writeError(w, rid, http.StatusBadRequest, "invalid_request", "items need a name, a positive quantity and a non-negative unitPrice")
			return
		}
	}
	phone := strings.TrimSpace(req.CustomerPhone)
	if phone != "" && !isValidPhone(phone) {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "customerPhone must be 8-16 digits")
		return
	}

	result, err := h.queue.AddAndNotify(r.Context(), queue.AddOrderInput{Order: order, CustomerPhone: phone})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, rid, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, addOrderResponse{Success: true, AddOrderResult: result})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rid := requestID(r)

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rid, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Status = strings.TrimSpace(req.Status)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if req.OrderID == "" || req.Status == "" {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "orderId and status are required")
		return
	}
	if req.CustomerPhone != "" && !isValidPhone(req.CustomerPhone) {
		writeError(w, rid, http.StatusBadRequest, "invalid_request", "customerPhone must be 8-16 digits")
		return
	}

	result, err := h.queue.UpdateStatus(r.Context(), queue.UpdateStatusInput{
		OrderID:       req.OrderID,
		Status:        req.Status,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, rid, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, updateStatusResponse{Success: true, UpdateStatusResult: result})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	orders, err := h.queue.History(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func isValidPhone(value string) bool {
	value = strings.TrimPrefix(value, "+")
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func requestID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status", "status must be one of recebido, em_preparo, pronto, entregue, cancelado"
	case errors.Is(err, store.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_request", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
