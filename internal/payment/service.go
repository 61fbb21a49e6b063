package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/events"
	"github.com/noah-isme/backend-freight/internal/invoice"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/shipment"
)

type invoiceProvider interface {
	Get(ctx context.Context, id uuid.UUID) (invoice.Record, error)
}

type shipmentProvider interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, to shipment.Status) (shipment.Record, error)
}

// Service opens payment intents for issued invoices and records confirmed
// collections.
type Service struct {
	Provider  Provider
	Invoices  invoiceProvider
	Shipments shipmentProvider
	Events    *events.Bus
	Log       *zerolog.Logger
	Currency  string
	ExpirySec int
}

// CreateIntent opens a collection intent covering an invoice's payable total.
func (s *Service) CreateIntent(ctx context.Context, invoiceID uuid.UUID) (IntentResponse, error) {
	if s.Provider == nil {
		return IntentResponse{}, errors.New("payment: provider not configured")
	}
	inv, err := s.Invoices.Get(ctx, invoiceID)
	if err != nil {
		s.count("rejected")
		return IntentResponse{}, err
	}
	resp, err := s.Provider.CreateIntent(ctx, IntentRequest{
		InvoiceNumber: inv.Number,
		Amount:        inv.TotalPrice,
		Currency:      s.Currency,
		ExpiresAtSec:  s.ExpirySec,
	})
	if err != nil {
		s.count("error")
		return IntentResponse{}, fmt.Errorf("payment: create intent: %w", err)
	}
	s.count("ok")
	s.emit(ctx, events.TopicPaymentIntentCreated, inv.ShipmentID, map[string]any{
		"invoice_id": inv.ID,
		"number":     inv.Number,
		"token":      resp.Token,
	})
	return resp, nil
}

// Confirm records a completed collection against an invoice and moves its
// shipment to PAID.
func (s *Service) Confirm(ctx context.Context, invoiceID uuid.UUID) (shipment.Record, error) {
	inv, err := s.Invoices.Get(ctx, invoiceID)
	if err != nil {
		return shipment.Record{}, err
	}
	rec, err := s.Shipments.UpdateStatus(ctx, inv.ShipmentID, shipment.StatusPaid)
	if err != nil {
		return shipment.Record{}, err
	}
	s.emit(ctx, events.TopicPaymentConfirmed, inv.ShipmentID, map[string]any{
		"invoice_id": inv.ID,
		"number":     inv.Number,
		"total":      inv.TotalPrice,
	})
	return rec, nil
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Msg("payment event emit failed")
	}
}

func (s *Service) count(result string) {
	if obs.PaymentIntentTotal != nil {
		provider := "none"
		if s.Provider != nil {
			if named, ok := s.Provider.(interface{ Name() string }); ok {
				provider = named.Name()
			} else {
				provider = "checkout-link"
			}
		}
		obs.PaymentIntentTotal.WithLabelValues(provider, result).Inc()
	}
}
