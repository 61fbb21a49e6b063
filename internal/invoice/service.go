package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/events"
	"github.com/noah-isme/backend-freight/internal/lock"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/quote"
	"github.com/noah-isme/backend-freight/internal/shipment"
)

// ErrNotFound is returned when no invoice matches the request.
var ErrNotFound = errors.New("invoice not found")

type storeProvider interface {
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	GetByShipment(ctx context.Context, shipmentID uuid.UUID) (Record, error)
	NextSequence(ctx context.Context, year int) (int64, error)
	Create(ctx context.Context, rec Record) (Record, error)
}

type shipmentProvider interface {
	Get(ctx context.Context, id uuid.UUID) (shipment.Record, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to shipment.Status) (shipment.Record, error)
}

// Service issues invoices. The amounts are never copied from the quote
// response; the same engine reprices the stored parcel payload so an invoice
// and a quote over identical inputs agree byte for byte.
type Service struct {
	Store     storeProvider
	Shipments shipmentProvider
	Quotes    *quote.Service
	Events    *events.Bus
	Lock      *lock.Locker
	Log       *zerolog.Logger
	Now       func() time.Time
}

// Issue generates the invoice for a QUOTED shipment. Issuing twice returns
// the previously stored document unchanged. Concurrent calls for the same
// shipment are serialised so the counter never burns duplicate numbers.
func (s *Service) Issue(ctx context.Context, shipmentID uuid.UUID) (Record, error) {
	if s.Lock == nil {
		return s.issue(ctx, shipmentID)
	}
	var rec Record
	err := s.Lock.WithLock(ctx, "freight:invoice:"+shipmentID.String(), 30*time.Second, func(ctx context.Context) error {
		var issueErr error
		rec, issueErr = s.issue(ctx, shipmentID)
		return issueErr
	})
	return rec, err
}

func (s *Service) issue(ctx context.Context, shipmentID uuid.UUID) (Record, error) {
	if existing, err := s.Store.GetByShipment(ctx, shipmentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		countIssue("error")
		return Record{}, fmt.Errorf("invoice: lookup: %w", err)
	}

	rec, err := s.Shipments.Get(ctx, shipmentID)
	if err != nil {
		countIssue("rejected")
		return Record{}, err
	}
	if rec.Status != shipment.StatusQuoted {
		countIssue("rejected")
		return Record{}, &common.AppError{
			Code:       "CONFLICT",
			Message:    fmt.Sprintf("shipment in status %s cannot be invoiced", rec.Status),
			HTTPStatus: http.StatusConflict,
		}
	}

	var req quote.Request
	if err := json.Unmarshal(rec.Request, &req); err != nil {
		countIssue("error")
		return Record{}, fmt.Errorf("invoice: decode stored request: %w", err)
	}
	result, err := s.Quotes.Quote(ctx, req)
	if err != nil {
		countIssue("error")
		return Record{}, err
	}
	snapshot, err := json.Marshal(result)
	if err != nil {
		countIssue("error")
		return Record{}, fmt.Errorf("invoice: encode snapshot: %w", err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	year := now().UTC().Year()
	seq, err := s.Store.NextSequence(ctx, year)
	if err != nil {
		countIssue("error")
		return Record{}, err
	}

	created, err := s.Store.Create(ctx, Record{
		Number:     fmt.Sprintf("INV-%d-%06d", year, seq),
		ShipmentID: shipmentID,
		Snapshot:   snapshot,
		TotalPrice: result.TotalPrice,
	})
	if err != nil {
		countIssue("error")
		return Record{}, fmt.Errorf("invoice: create: %w", err)
	}

	if _, err := s.Shipments.UpdateStatus(ctx, shipmentID, shipment.StatusAwaitingPayment); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Stringer("shipment_id", shipmentID).Msg("invoice issued but status update failed")
	}

	countIssue("ok")
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicInvoiceIssued, shipmentID, map[string]any{
			"invoice_id": created.ID,
			"number":     created.Number,
			"total":      created.TotalPrice,
		}); err != nil && s.Log != nil {
			s.Log.Warn().Err(err).Msg("invoice event emit failed")
		}
	}
	return created, nil
}

// Get returns one issued invoice.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("invoice: get: %w", err)
	}
	return rec, nil
}

func countIssue(result string) {
	if obs.InvoiceIssuedTotal != nil {
		obs.InvoiceIssuedTotal.WithLabelValues(result).Inc()
	}
}
