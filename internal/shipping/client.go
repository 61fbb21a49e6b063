package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/resilience"
)

// RateReq describes an EU-leg shipping rate request. The EU forwarding cost is
// an external quantity supplied by a partner carrier, never computed locally.
type RateReq struct {
	OriginCountry      string
	DestinationCountry string
	WeightKg           decimal.Decimal
}

// Rate is one returned carrier rate option.
type Rate struct {
	Service string          `json:"service"`
	Price   decimal.Decimal `json:"price"`
	ETD     string          `json:"etd"`
	Carrier string          `json:"carrier,omitempty"`
}

// RateClient quotes EU-leg forwarding rates.
type RateClient interface {
	Rates(ctx context.Context, r RateReq) ([]Rate, error)
}

// MockClient returns static rates and is useful for testing and development.
type MockClient struct{}

// Rates returns canned rates regardless of the request payload.
func (MockClient) Rates(ctx context.Context, r RateReq) ([]Rate, error) {
	_ = ctx
	return []Rate{
		{Service: "ROAD", Price: decimal.NewFromInt(40), ETD: "5-7", Carrier: "mock"},
		{Service: "EXPRESS", Price: decimal.NewFromInt(90), ETD: "2-3", Carrier: "mock"},
	}, nil
}

// HTTPClient quotes rates against a partner carrier's REST API. Requests run
// through the shared retry/circuit-breaker wrapper since the carrier sits on
// the critical path of every EU-leg quote.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Client  resilience.HTTPClient
}

type rateEnvelope struct {
	Data []struct {
		Service string `json:"service"`
		Price   string `json:"price"`
		ETD     string `json:"etd"`
		Carrier string `json:"carrier"`
	} `json:"data"`
}

// Rates fetches rate options for the requested lane and weight.
func (c *HTTPClient) Rates(ctx context.Context, r RateReq) ([]Rate, error) {
	client := c.Client
	if client.Client == nil {
		client.Client = &http.Client{Timeout: 10 * time.Second}
	}
	q := url.Values{}
	q.Set("origin", r.OriginCountry)
	q.Set("destination", r.DestinationCountry)
	q.Set("weight_kg", r.WeightKg.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/rates?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("shipping rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shipping rates: unexpected status %d", resp.StatusCode)
	}
	var envelope rateEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("shipping rates: decode: %w", err)
	}
	rates := make([]Rate, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("shipping rates: bad price %q: %w", item.Price, err)
		}
		rates = append(rates, Rate{Service: item.Service, Price: price, ETD: item.ETD, Carrier: item.Carrier})
	}
	return rates, nil
}

// Cheapest picks the lowest-priced rate, or zero when no rates were returned.
func Cheapest(rates []Rate) (Rate, bool) {
	if len(rates) == 0 {
		return Rate{}, false
	}
	best := rates[0]
	for _, r := range rates[1:] {
		if r.Price.LessThan(best.Price) {
			best = r
		}
	}
	return best, true
}
