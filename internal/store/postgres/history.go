package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"qms/counter-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const historySchema = `
	CREATE TABLE IF NOT EXISTS order_history (
		order_id   TEXT PRIMARY KEY,
		ticket     TEXT NOT NULL,
		status     TEXT NOT NULL,
		total      NUMERIC(12, 2) NOT NULL DEFAULT 0,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS order_history_created_at_idx ON order_history (created_at DESC);
`

// HistoryStore archives every order the counter accepts. Rows are never
// removed by the daily queue reset.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, historySchema)
	return err
}

func (s *HistoryStore) Upsert(ctx context.Context, order models.OrderTicket) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO order_history (order_id, ticket, status, total, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (order_id) DO UPDATE SET
			ticket = EXCLUDED.ticket,
			status = EXCLUDED.status,
			total = EXCLUDED.total,
			payload = EXCLUDED.payload,
			updated_at = now()
	`, order.ID, order.Ticket, order.Status, order.Total, payload, order.CreatedAt)
	return err
}

func (s *HistoryStore) Get(ctx context.Context, orderID string) (models.OrderTicket, bool, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `
		SELECT payload
		FROM order_history
		WHERE order_id = $1
	`, orderID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrderTicket{}, false, nil
		}
		return models.OrderTicket{}, false, err
	}
	var order models.OrderTicket
	if err := json.Unmarshal(payload, &order); err != nil {
		return models.OrderTicket{}, false, err
	}
	return order, true, nil
}

func (s *HistoryStore) List(ctx context.Context) ([]models.OrderTicket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload
		FROM order_history
		ORDER BY created_at DESC, order_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.OrderTicket{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order models.OrderTicket
		if err := json.Unmarshal(payload, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
