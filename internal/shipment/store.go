package shipment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one stored shipment. Parcels keep the raw submitted payload so
// invoice-time repricing runs over exactly the bytes the customer quoted.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Request       json.RawMessage `json:"request"`
	Status        Status          `json:"status"`
	QuoteSnapshot json.RawMessage `json:"quote_snapshot,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Store provides Postgres access to shipment records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const shipmentColumns = `id, customer_name, customer_email, customer_phone, request, status, quote_snapshot, created_at, updated_at`

// Create inserts a new DRAFT shipment.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO shipments (customer_name, customer_email, customer_phone, request, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+shipmentColumns,
		rec.CustomerName, rec.CustomerEmail, rec.CustomerPhone, rec.Request, string(StatusDraft))
	return scanShipment(row)
}

// Get returns one shipment by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	return scanShipment(row)
}

// SaveQuote stores the latest pricing snapshot and moves the shipment to
// QUOTED. Requoting an already QUOTED shipment overwrites the snapshot.
func (s *Store) SaveQuote(ctx context.Context, id uuid.UUID, snapshot []byte) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE shipments
		SET quote_snapshot = $2, status = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $3)
		RETURNING `+shipmentColumns,
		id, snapshot, string(StatusQuoted), string(StatusDraft))
	return scanShipment(row)
}

// UpdateStatus moves a shipment between two explicit states. The WHERE guard
// keeps concurrent updates from skipping transition validation.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE shipments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+shipmentColumns,
		id, string(from), string(to))
	return scanShipment(row)
}

func scanShipment(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	if err := row.Scan(&rec.ID, &rec.CustomerName, &rec.CustomerEmail, &rec.CustomerPhone,
		&rec.Request, &status, &rec.QuoteSnapshot, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return Record{}, fmt.Errorf("scan shipment: %w", err)
	}
	rec.Status = parsed
	return rec, nil
}
