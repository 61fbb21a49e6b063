package quote_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/pricing"
	"github.com/noah-isme/backend-freight/internal/quote"
	"github.com/noah-isme/backend-freight/internal/shipping"
)

type fakeCatalog struct{}

func (fakeCatalog) Category(ctx context.Context, id string) (pricing.CategoryEntry, error) {
	if id != "general" {
		return pricing.CategoryEntry{}, pricing.ErrNotFound
	}
	return pricing.CategoryEntry{
		ID:          "general",
		NameEN:      "General goods",
		RatePerKg:   decimal.NewFromInt(2),
		BillingUnit: pricing.BillPerKg,
	}, nil
}

func (fakeCatalog) Packaging(ctx context.Context, id string) (pricing.PackagingOption, error) {
	if id != "crate" {
		return pricing.PackagingOption{}, pricing.ErrNotFound
	}
	return pricing.PackagingOption{ID: "crate", NameEN: "Wooden crate", UnitPrice: decimal.NewFromInt(20)}, nil
}

func (fakeCatalog) ActiveProvince(ctx context.Context, code string) (pricing.ProvinceRate, error) {
	return pricing.ProvinceRate{}, pricing.ErrNotFound
}

type fakeRates struct {
	rates []shipping.Rate
	err   error
	calls int
}

func (f *fakeRates) Rates(ctx context.Context, r shipping.RateReq) ([]shipping.Rate, error) {
	f.calls++
	return f.rates, f.err
}

func newService(rates shipping.RateClient) *quote.Service {
	return &quote.Service{
		Engine:   pricing.Engine{Catalog: fakeCatalog{}},
		Rates:    rates,
		Validate: validator.New(),
	}
}

func decodeRequest(t *testing.T, raw string) quote.Request {
	t.Helper()
	var req quote.Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	return req
}

func TestQuoteHappyPath(t *testing.T) {
	svc := newService(nil)
	req := decodeRequest(t, `{
		"parcels": [{"productCategory": "general", "packagingType": "crate", "weight": "100", "repeatCount": 1}]
	}`)
	result, err := svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got := result.BaseLCLPrice.StringFixed(2); got != "200.00" {
		t.Fatalf("expected base 200.00, got %s", got)
	}
	if got := result.TotalPrice.StringFixed(2); got != "220.00" {
		t.Fatalf("expected total 220.00, got %s", got)
	}
}

func TestQuoteEmptyParcelsRejected(t *testing.T) {
	svc := newService(nil)
	_, err := svc.Quote(context.Background(), quote.Request{})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400 AppError, got %v", err)
	}
}

func TestQuoteMalformedSyriaWeightRejected(t *testing.T) {
	svc := newService(nil)
	req := decodeRequest(t, `{
		"parcels": [{"productCategory": "general", "weight": 10}],
		"syriaProvince": "aleppo",
		"syria_weight": "plenty"
	}`)
	_, err := svc.Quote(context.Background(), req)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400 AppError for malformed syria_weight, got %v", err)
	}
}

func TestQuoteEULegUsesCheapestRate(t *testing.T) {
	rates := &fakeRates{rates: []shipping.Rate{
		{Service: "EXPRESS", Price: decimal.NewFromInt(90)},
		{Service: "ROAD", Price: decimal.NewFromInt(40)},
	}}
	svc := newService(rates)
	req := decodeRequest(t, `{
		"parcels": [{"productCategory": "general", "weight": 100}],
		"euOriginCountry": "DE",
		"euDestinationCountry": "SY"
	}`)
	result, err := svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if rates.calls != 1 {
		t.Fatalf("expected 1 rate lookup, got %d", rates.calls)
	}
	if got := result.EUShippingCost.StringFixed(2); got != "40.00" {
		t.Fatalf("expected eu cost 40.00, got %s", got)
	}
	// Display-only add-on: the payable total excludes the EU leg.
	if got := result.TotalPrice.StringFixed(2); got != "200.00" {
		t.Fatalf("expected total 200.00, got %s", got)
	}
}

func TestQuoteEUFailureDegradesToDiagnostic(t *testing.T) {
	rates := &fakeRates{err: errors.New("carrier down")}
	svc := newService(rates)
	req := decodeRequest(t, `{
		"parcels": [{"productCategory": "general", "weight": 100}],
		"euOriginCountry": "DE",
		"euDestinationCountry": "SY"
	}`)
	result, err := svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("quote should not fail on carrier outage: %v", err)
	}
	if !result.EUShippingCost.IsZero() {
		t.Fatalf("expected zero eu cost, got %s", result.EUShippingCost)
	}
	found := false
	for _, d := range result.Diagnostics {
		if d.ParcelIndex == pricing.ShipmentLevel && d.Field == "euShipping" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected shipment-level euShipping diagnostic, got %v", result.Diagnostics)
	}
}
