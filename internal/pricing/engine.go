package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoParcels is returned when a calculation is requested for an empty
// parcel list. This is the only structural error the engine surfaces; every
// per-item failure degrades to a zero contribution plus a diagnostic.
var ErrNoParcels = errors.New("pricing: shipment has no parcels")

// Defaults used when the corresponding Engine field is left zero.
var (
	defaultMinimumCharge     = decimal.NewFromInt(75)
	defaultVolumetricDivisor = decimal.NewFromInt(6000)
)

const defaultInsuranceRateBps = 150 // 1.5% of (base price + declared value)

// Engine turns a parcel list plus the priced catalog into a shipment total
// with a fully itemised breakdown. It is pure and side-effect free: it only
// reads catalog snapshots, holds no locks, and is safe for concurrent use.
// The same Engine prices live quotes and regenerates invoice figures, so the
// two agree byte-for-byte whenever the stored parcels and catalog rows are
// unchanged.
type Engine struct {
	Catalog Catalog
	Logger  *zerolog.Logger

	// MinimumCharge floors the base price (75 currency major units when zero).
	MinimumCharge decimal.Decimal
	// InsuranceRateBps is the premium rate in basis points (150 when zero).
	InsuranceRateBps int64
	// VolumetricDivisor converts cm³ to volumetric kg (6000 when zero).
	VolumetricDivisor decimal.Decimal
	// FoldSurcharges adds the inland surcharge and EU-leg cost into the
	// payable total instead of tracking them for display only.
	FoldSurcharges bool
}

// Input is one shipment calculation request.
type Input struct {
	Parcels []ParcelInput
	// ProvinceCode and ProvinceWeightKg request the inland surcharge; both
	// must be supplied (code non-empty, weight positive) for it to apply.
	ProvinceCode     string
	ProvinceWeightKg decimal.Decimal
	// EUShippingCost is an external add-on obtained from the shipping-rate
	// collaborator; the engine never computes it.
	EUShippingCost decimal.Decimal
	// Diagnostics carries boundary-coercion findings into the result so the
	// full skip history rides along with the breakdown.
	Diagnostics []Diagnostic
}

// PackagingLine is one itemised packaging charge.
type PackagingLine struct {
	Index         int             `json:"index"`
	PackagingType string          `json:"packaging_type"`
	Name          string          `json:"name,omitempty"`
	Dimension     string          `json:"dimension,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	RepeatCount   int             `json:"repeat_count"`
	Cost          decimal.Decimal `json:"cost"`
}

// Result is the engine output consumed by the live quote endpoint and the
// invoice generator. All monetary figures are rounded to 2 decimal places at
// this boundary; the accumulators behind them are kept at full precision.
type Result struct {
	BaseLCLPrice          decimal.Decimal `json:"base_lcl_price"`
	PackagingCost         decimal.Decimal `json:"packaging_cost"`
	InsuranceCost         decimal.Decimal `json:"insurance_cost"`
	SyriaTransportCost    decimal.Decimal `json:"syria_transport_cost"`
	EUShippingCost        decimal.Decimal `json:"eu_shipping_cost"`
	TotalPrice            decimal.Decimal `json:"total_price"`
	DeclaredShipmentValue decimal.Decimal `json:"declared_shipment_value"`
	TotalPriceByWeight    decimal.Decimal `json:"total_price_by_weight"`
	TotalPriceByCBM       decimal.Decimal `json:"total_price_by_cbm"`
	ParcelCalculations    []ParcelLine    `json:"parcel_calculations"`
	PackagingCalculations []PackagingLine `json:"packaging_calculations"`
	Diagnostics           []Diagnostic    `json:"diagnostics,omitempty"`
}

// Price computes the shipment total. Identical inputs against an unchanged
// catalog always produce an identical Result.
func (e Engine) Price(ctx context.Context, in Input) (Result, error) {
	if len(in.Parcels) == 0 {
		return Result{}, ErrNoParcels
	}

	minCharge := e.MinimumCharge
	if minCharge.IsZero() {
		minCharge = defaultMinimumCharge
	}
	divisor := e.VolumetricDivisor
	if divisor.IsZero() {
		divisor = defaultVolumetricDivisor
	}
	rateBps := e.InsuranceRateBps
	if rateBps == 0 {
		rateBps = defaultInsuranceRateBps
	}

	diags := append([]Diagnostic(nil), in.Diagnostics...)
	weightTrack := decimal.Zero
	cbmTrack := decimal.Zero
	packagingCost := decimal.Zero
	declaredTotal := decimal.Zero
	parcelLines := make([]ParcelLine, 0, len(in.Parcels))
	packagingLines := make([]PackagingLine, 0)

	for i, parcel := range in.Parcels {
		if parcel.CategoryRef != "" && !parcel.SkipProduct {
			entry, err := e.Catalog.Category(ctx, parcel.CategoryRef)
			if err != nil {
				diags = append(diags, Diagnostic{
					ParcelIndex: i,
					Field:       "productCategory",
					Reason:      fmt.Sprintf("category %q not priced, product price skipped", parcel.CategoryRef),
				})
				e.warn(err).Str("category", parcel.CategoryRef).Int("parcel", i).Msg("category lookup failed")
			} else {
				rated := rateParcel(i, parcel, entry, divisor)
				parcelLines = append(parcelLines, rated.line)
				weightTrack = weightTrack.Add(rated.weightTrack)
				cbmTrack = cbmTrack.Add(rated.cbmTrack)
			}
		}

		if parcel.PackagingRef != "" {
			option, err := e.Catalog.Packaging(ctx, parcel.PackagingRef)
			if err != nil {
				diags = append(diags, Diagnostic{
					ParcelIndex: i,
					Field:       "packagingType",
					Reason:      fmt.Sprintf("packaging %q not priced, packaging cost skipped", parcel.PackagingRef),
				})
				e.warn(err).Str("packaging", parcel.PackagingRef).Int("parcel", i).Msg("packaging lookup failed")
			} else {
				cost := option.UnitPrice.Mul(decimal.NewFromInt(int64(parcel.RepeatCount)))
				packagingLines = append(packagingLines, PackagingLine{
					Index:         i,
					PackagingType: option.ID,
					Name:          option.NameEN,
					Dimension:     option.Dimension,
					UnitPrice:     option.UnitPrice.Round(2),
					RepeatCount:   parcel.RepeatCount,
					Cost:          cost.Round(2),
				})
				packagingCost = packagingCost.Add(cost)
			}
		}

		if (parcel.WantsInsurance || parcel.Electronics) && parcel.DeclaredValue.IsPositive() {
			declaredTotal = declaredTotal.Add(parcel.DeclaredValue)
		}
	}

	basePrice := decimal.Max(weightTrack, cbmTrack, minCharge)

	// Insurance is computed once per shipment on the aggregate declared
	// value, never per parcel.
	insurance := decimal.Zero
	if declaredTotal.IsPositive() {
		insurance = basePrice.Add(declaredTotal).Mul(decimal.New(rateBps, -4))
	}

	surcharge := decimal.Zero
	provinceCode := strings.TrimSpace(in.ProvinceCode)
	if provinceCode != "" && in.ProvinceWeightKg.IsPositive() {
		province, err := e.Catalog.ActiveProvince(ctx, provinceCode)
		if err != nil {
			diags = append(diags, Diagnostic{
				ParcelIndex: ShipmentLevel,
				Field:       "syria_province",
				Reason:      fmt.Sprintf("province %q inactive or unknown, inland surcharge skipped", provinceCode),
			})
			e.warn(err).Str("province", provinceCode).Msg("province lookup failed")
		} else {
			surcharge = decimal.Max(in.ProvinceWeightKg.Mul(province.RatePerKg), province.MinPrice)
		}
	}

	euCost := decimal.Zero
	if in.EUShippingCost.IsPositive() {
		euCost = in.EUShippingCost
	}

	// The persisted payable total covers base + packaging + insurance; the
	// inland surcharge and EU leg stay display-only unless FoldSurcharges is
	// set. See DESIGN.md for the open question behind this switch.
	total := basePrice.Add(packagingCost).Add(insurance)
	if e.FoldSurcharges {
		total = total.Add(surcharge).Add(euCost)
	}

	return Result{
		BaseLCLPrice:          basePrice.Round(2),
		PackagingCost:         packagingCost.Round(2),
		InsuranceCost:         insurance.Round(2),
		SyriaTransportCost:    surcharge.Round(2),
		EUShippingCost:        euCost.Round(2),
		TotalPrice:            total.Round(2),
		DeclaredShipmentValue: declaredTotal.Round(2),
		TotalPriceByWeight:    weightTrack.Round(2),
		TotalPriceByCBM:       cbmTrack.Round(2),
		ParcelCalculations:    parcelLines,
		PackagingCalculations: packagingLines,
		Diagnostics:           diags,
	}, nil
}

func (e Engine) warn(err error) *zerolog.Event {
	if e.Logger == nil {
		nop := zerolog.Nop()
		return nop.Warn()
	}
	return e.Logger.Warn().Err(err)
}
