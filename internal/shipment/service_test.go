package shipment_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/events"
	"github.com/noah-isme/backend-freight/internal/pricing"
	"github.com/noah-isme/backend-freight/internal/quote"
	"github.com/noah-isme/backend-freight/internal/shipment"
)

type memStore struct {
	records map[uuid.UUID]shipment.Record
}

func newMemStore() *memStore {
	return &memStore{records: map[uuid.UUID]shipment.Record{}}
}

func (m *memStore) Create(ctx context.Context, rec shipment.Record) (shipment.Record, error) {
	rec.ID = uuid.New()
	rec.Status = shipment.StatusDraft
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (shipment.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return shipment.Record{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (m *memStore) SaveQuote(ctx context.Context, id uuid.UUID, snapshot []byte) (shipment.Record, error) {
	rec, ok := m.records[id]
	if !ok || (rec.Status != shipment.StatusDraft && rec.Status != shipment.StatusQuoted) {
		return shipment.Record{}, pgx.ErrNoRows
	}
	rec.QuoteSnapshot = snapshot
	rec.Status = shipment.StatusQuoted
	m.records[id] = rec
	return rec, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to shipment.Status) (shipment.Record, error) {
	rec, ok := m.records[id]
	if !ok || rec.Status != from {
		return shipment.Record{}, pgx.ErrNoRows
	}
	rec.Status = to
	m.records[id] = rec
	return rec, nil
}

type memEventStore struct {
	topics []string
}

func (m *memEventStore) InsertEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	m.topics = append(m.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

type engineCatalog struct{}

func (engineCatalog) Category(ctx context.Context, id string) (pricing.CategoryEntry, error) {
	return pricing.CategoryEntry{
		ID:          id,
		RatePerKg:   decimal.NewFromInt(2),
		BillingUnit: pricing.BillPerKg,
	}, nil
}

func (engineCatalog) Packaging(ctx context.Context, id string) (pricing.PackagingOption, error) {
	return pricing.PackagingOption{}, pricing.ErrNotFound
}

func (engineCatalog) ActiveProvince(ctx context.Context, code string) (pricing.ProvinceRate, error) {
	return pricing.ProvinceRate{}, pricing.ErrNotFound
}

func newService(t *testing.T) (*shipment.Service, *memStore, *memEventStore) {
	t.Helper()
	store := newMemStore()
	evStore := &memEventStore{}
	svc := &shipment.Service{
		Store:  store,
		Quotes: &quote.Service{Engine: pricing.Engine{Catalog: engineCatalog{}}},
		Events: &events.Bus{Store: evStore},
	}
	return svc, store, evStore
}

func sampleInput(t *testing.T) shipment.CreateInput {
	t.Helper()
	var req quote.Request
	raw := `{"parcels": [{"productCategory": "general", "weight": 100}]}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return shipment.CreateInput{
		CustomerName:  "Rami",
		CustomerEmail: "rami@example.com",
		Request:       req,
	}
}

func TestCreateEmitsShipmentCreated(t *testing.T) {
	svc, _, evStore := newService(t)
	rec, err := svc.Create(context.Background(), sampleInput(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != shipment.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", rec.Status)
	}
	if len(evStore.topics) != 1 || evStore.topics[0] != events.TopicShipmentCreated {
		t.Fatalf("expected shipment.created event, got %v", evStore.topics)
	}
}

func TestCreateRequiresParcels(t *testing.T) {
	svc, _, _ := newService(t)
	in := sampleInput(t)
	in.Request.Parcels = nil
	_, err := svc.Create(context.Background(), in)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400 AppError, got %v", err)
	}
}

func TestQuotePersistsSnapshotAndTransitions(t *testing.T) {
	svc, _, evStore := newService(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, sampleInput(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	quoted, err := svc.Quote(ctx, rec.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quoted.Status != shipment.StatusQuoted {
		t.Fatalf("expected QUOTED, got %s", quoted.Status)
	}
	var result pricing.Result
	if err := json.Unmarshal(quoted.QuoteSnapshot, &result); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := result.TotalPrice.StringFixed(2); got != "200.00" {
		t.Fatalf("expected snapshot total 200.00, got %s", got)
	}
	if evStore.topics[len(evStore.topics)-1] != events.TopicShipmentQuoted {
		t.Fatalf("expected shipment.quoted event, got %v", evStore.topics)
	}
}

func TestRequoteOverwritesSnapshot(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, sampleInput(t))
	if _, err := svc.Quote(ctx, rec.ID); err != nil {
		t.Fatalf("first quote: %v", err)
	}
	if _, err := svc.Quote(ctx, rec.ID); err != nil {
		t.Fatalf("requote: %v", err)
	}
}

func TestStatusTransitionsFollowStateMachine(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, sampleInput(t))

	// Straight to PAID from DRAFT is not allowed.
	_, err := svc.UpdateStatus(ctx, rec.ID, shipment.StatusPaid)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 409 {
		t.Fatalf("expected 409 for illegal transition, got %v", err)
	}

	if _, err := svc.Quote(ctx, rec.ID); err != nil {
		t.Fatalf("quote: %v", err)
	}
	for _, next := range []shipment.Status{
		shipment.StatusAwaitingPayment,
		shipment.StatusPaid,
		shipment.StatusInTransit,
		shipment.StatusDelivered,
	} {
		if _, err := svc.UpdateStatus(ctx, rec.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
}

func TestCancelOnlyBeforePayment(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, sampleInput(t))
	if _, err := svc.UpdateStatus(ctx, rec.ID, shipment.StatusCanceled); err != nil {
		t.Fatalf("cancel from DRAFT: %v", err)
	}

	rec2, _ := svc.Create(ctx, sampleInput(t))
	_, _ = svc.Quote(ctx, rec2.ID)
	_, _ = svc.UpdateStatus(ctx, rec2.ID, shipment.StatusAwaitingPayment)
	_, _ = svc.UpdateStatus(ctx, rec2.ID, shipment.StatusPaid)
	if _, err := svc.UpdateStatus(ctx, rec2.ID, shipment.StatusCanceled); err == nil {
		t.Fatal("expected cancel after payment to fail")
	}
}
