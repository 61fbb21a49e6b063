package quote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/pricing"
	"github.com/noah-isme/backend-freight/internal/shipping"
)

// Request is the live quote payload. Parcel fields tolerate loosely typed
// values; shipment-level fields are strict and fail the whole request.
type Request struct {
	Parcels []pricing.ParcelPayload `json:"parcels" validate:"required,min=1"`

	// Inland delivery leg inside Syria. Weight is accepted as string or
	// number but a malformed value rejects the request.
	SyriaProvince string              `json:"syriaProvince"`
	SyriaWeight   pricing.LooseNumber `json:"syria_weight"`

	// EU pickup leg. When both countries are set the rate is fetched from
	// the partner carrier and attached as a display-only add-on.
	EUOriginCountry      string `json:"euOriginCountry" validate:"omitempty,iso3166_1_alpha2"`
	EUDestinationCountry string `json:"euDestinationCountry" validate:"omitempty,iso3166_1_alpha2"`
}

// Service validates quote requests and runs them through the pricing engine.
type Service struct {
	Engine   pricing.Engine
	Rates    shipping.RateClient
	Validate *validator.Validate
	Log      *zerolog.Logger
}

// Quote prices a shipment without persisting anything.
func (s *Service) Quote(ctx context.Context, req Request) (pricing.Result, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			return pricing.Result{}, &common.AppError{
				Code:       "BAD_REQUEST",
				Message:    "invalid quote request",
				HTTPStatus: http.StatusBadRequest,
				Err:        err,
				Details:    map[string]any{"validation": err.Error()},
			}
		}
	}

	input, err := s.BuildInput(ctx, req)
	if err != nil {
		countQuote("rejected")
		return pricing.Result{}, err
	}

	result, err := s.Engine.Price(ctx, input)
	if err != nil {
		countQuote("rejected")
		return pricing.Result{}, &common.AppError{
			Code:       "BAD_REQUEST",
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
		}
	}
	countQuote("ok")
	for _, d := range result.Diagnostics {
		countDiagnostic(d.Field)
	}
	return result, nil
}

// BuildInput coerces the parcel list, resolves the shipment-level legs and
// assembles the engine input. It is shared with invoice regeneration so the
// two price identically.
func (s *Service) BuildInput(ctx context.Context, req Request) (pricing.Input, error) {
	parcels, diags := pricing.CoerceParcels(req.Parcels)

	in := pricing.Input{
		Parcels:     parcels,
		Diagnostics: diags,
	}

	if strings.TrimSpace(req.SyriaProvince) != "" {
		weight, err := syriaWeight(req.SyriaWeight)
		if err != nil {
			return pricing.Input{}, err
		}
		in.ProvinceCode = req.SyriaProvince
		in.ProvinceWeightKg = weight
	}

	if req.EUOriginCountry != "" && req.EUDestinationCountry != "" {
		cost, err := s.euCost(ctx, req, parcels)
		if err != nil {
			// The EU leg is an external add-on; its outage degrades to a
			// shipment-level diagnostic rather than failing the quote.
			in.Diagnostics = append(in.Diagnostics, pricing.Diagnostic{
				ParcelIndex: pricing.ShipmentLevel,
				Field:       "euShipping",
				Reason:      "carrier rate unavailable, eu_shipping_cost omitted",
			})
			if s.Log != nil {
				s.Log.Warn().Err(err).Msg("eu rate lookup failed")
			}
		} else {
			in.EUShippingCost = cost
		}
	}

	return in, nil
}

// syriaWeight parses the shipment-level inland weight. Unlike parcel fields a
// malformed value here is structural and rejects the request.
func syriaWeight(n pricing.LooseNumber) (decimal.Decimal, error) {
	if !n.Present() {
		return decimal.Zero, nil
	}
	weight, ok := n.Decimal()
	if !ok || weight.IsNegative() {
		return decimal.Zero, &common.AppError{
			Code:       "BAD_REQUEST",
			Message:    "syria_weight must be a non-negative number",
			HTTPStatus: http.StatusBadRequest,
			Details:    map[string]any{"field": "syria_weight"},
		}
	}
	return weight, nil
}

func (s *Service) euCost(ctx context.Context, req Request, parcels []pricing.ParcelInput) (decimal.Decimal, error) {
	if s.Rates == nil {
		return decimal.Zero, fmt.Errorf("quote: no rate client configured")
	}
	weight := decimal.Zero
	for _, p := range parcels {
		if p.SkipProduct {
			continue
		}
		weight = weight.Add(p.WeightKg.Mul(decimal.NewFromInt(int64(p.RepeatCount))))
	}
	rates, err := s.Rates.Rates(ctx, shipping.RateReq{
		OriginCountry:      req.EUOriginCountry,
		DestinationCountry: req.EUDestinationCountry,
		WeightKg:           weight,
	})
	if err != nil {
		return decimal.Zero, err
	}
	best, ok := shipping.Cheapest(rates)
	if !ok {
		return decimal.Zero, fmt.Errorf("quote: no rates for lane %s-%s", req.EUOriginCountry, req.EUDestinationCountry)
	}
	return best.Price, nil
}

func countQuote(result string) {
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
}

func countDiagnostic(field string) {
	if obs.QuoteDiagnosticsTotal != nil {
		obs.QuoteDiagnosticsTotal.WithLabelValues(field).Inc()
	}
}
