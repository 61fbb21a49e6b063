package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/events"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/quote"
)

var (
	// ErrNotFound is returned when no shipment matches the requested id.
	ErrNotFound = errors.New("shipment not found")
	// ErrInvalidTransition is returned when a status change would break the
	// state machine.
	ErrInvalidTransition = errors.New("invalid shipment status transition")
)

type storeProvider interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	SaveQuote(ctx context.Context, id uuid.UUID, snapshot []byte) (Record, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (Record, error)
}

// CreateInput is the shipment intake payload.
type CreateInput struct {
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail"`
	CustomerPhone string        `json:"customerPhone"`
	Request       quote.Request `json:"request"`
}

// Service coordinates shipment intake, repricing and lifecycle transitions.
type Service struct {
	Store  storeProvider
	Quotes *quote.Service
	Events *events.Bus
	Log    *zerolog.Logger
}

// Create registers a DRAFT shipment with its raw parcel payload.
func (s *Service) Create(ctx context.Context, in CreateInput) (Record, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return Record{}, badRequest("customerName", "customerName is required")
	}
	if len(in.Request.Parcels) == 0 {
		return Record{}, badRequest("request.parcels", "at least one parcel is required")
	}
	raw, err := json.Marshal(in.Request)
	if err != nil {
		return Record{}, fmt.Errorf("shipment: encode request: %w", err)
	}
	rec, err := s.Store.Create(ctx, Record{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Request:       raw,
	})
	if err != nil {
		return Record{}, fmt.Errorf("shipment: create: %w", err)
	}
	s.emit(ctx, events.TopicShipmentCreated, rec.ID, map[string]any{
		"shipment_id": rec.ID,
		"customer":    rec.CustomerName,
	})
	return rec, nil
}

// Get returns one shipment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("shipment: get: %w", err)
	}
	return rec, nil
}

// Quote reprices the stored parcel payload and persists the snapshot. Only
// DRAFT and QUOTED shipments can be (re)quoted.
func (s *Service) Quote(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	var req quote.Request
	if err := json.Unmarshal(rec.Request, &req); err != nil {
		return Record{}, fmt.Errorf("shipment: decode stored request: %w", err)
	}
	result, err := s.Quotes.Quote(ctx, req)
	if err != nil {
		return Record{}, err
	}
	snapshot, err := json.Marshal(result)
	if err != nil {
		return Record{}, fmt.Errorf("shipment: encode snapshot: %w", err)
	}
	updated, err := s.Store.SaveQuote(ctx, id, snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, &common.AppError{
				Code:       "CONFLICT",
				Message:    fmt.Sprintf("shipment in status %s cannot be quoted", rec.Status),
				HTTPStatus: http.StatusConflict,
				Err:        ErrInvalidTransition,
			}
		}
		return Record{}, fmt.Errorf("shipment: save quote: %w", err)
	}
	s.emit(ctx, events.TopicShipmentQuoted, updated.ID, map[string]any{
		"shipment_id": updated.ID,
		"total_price": result.TotalPrice,
	})
	return updated, nil
}

// UpdateStatus applies one state-machine transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !CanTransition(rec.Status, to) {
		return Record{}, &common.AppError{
			Code:       "CONFLICT",
			Message:    fmt.Sprintf("cannot move shipment from %s to %s", rec.Status, to),
			HTTPStatus: http.StatusConflict,
			Err:        ErrInvalidTransition,
		}
	}
	updated, err := s.Store.UpdateStatus(ctx, id, rec.Status, to)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with a concurrent transition.
			return Record{}, &common.AppError{
				Code:       "CONFLICT",
				Message:    "shipment status changed concurrently",
				HTTPStatus: http.StatusConflict,
				Err:        ErrInvalidTransition,
			}
		}
		return Record{}, fmt.Errorf("shipment: update status: %w", err)
	}
	if obs.ShipmentStatusTotal != nil {
		obs.ShipmentStatusTotal.WithLabelValues(string(to)).Inc()
	}
	s.emit(ctx, events.TopicShipmentStatusChanged, updated.ID, map[string]any{
		"shipment_id": updated.ID,
		"from":        rec.Status,
		"to":          to,
	})
	return updated, nil
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

func badRequest(field, message string) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}
