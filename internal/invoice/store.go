package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Record is one issued invoice. Snapshot holds the full pricing breakdown as
// rendered at issue time; the stored document never silently drifts from what
// the customer was shown.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"number"`
	ShipmentID uuid.UUID       `json:"shipment_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
	TotalPrice decimal.Decimal `json:"total_price"`
	IssuedAt   time.Time       `json:"issued_at"`
}

// Store provides Postgres access to invoices and the yearly number sequence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const invoiceColumns = `id, number, shipment_id, snapshot, total_price::text, issued_at`

// Get returns one invoice by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetByShipment returns the invoice issued for a shipment, if any.
func (s *Store) GetByShipment(ctx context.Context, shipmentID uuid.UUID) (Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE shipment_id = $1`, shipmentID)
	return scanInvoice(row)
}

// NextSequence reserves the next invoice number for the given year.
func (s *Store) NextSequence(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoice_counters (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next invoice sequence: %w", err)
	}
	return seq, nil
}

// Create persists an issued invoice.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO invoices (number, shipment_id, snapshot, total_price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING `+invoiceColumns,
		rec.Number, rec.ShipmentID, rec.Snapshot, rec.TotalPrice.String())
	return scanInvoice(row)
}

func scanInvoice(row pgx.Row) (Record, error) {
	var rec Record
	var total string
	if err := row.Scan(&rec.ID, &rec.Number, &rec.ShipmentID, &rec.Snapshot, &total, &rec.IssuedAt); err != nil {
		return Record{}, err
	}
	parsed, err := decimal.NewFromString(total)
	if err != nil {
		return Record{}, fmt.Errorf("parse total_price: %w", err)
	}
	rec.TotalPrice = parsed
	return rec, nil
}
