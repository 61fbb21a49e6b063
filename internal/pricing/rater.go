package pricing

import "github.com/shopspring/decimal"

// ParcelLine is the itemised rating of a single parcel, with every figure
// rounded for display: money to 2 decimal places, weights and volumes to 3.
// Unrounded values are carried separately so shipment totals do not compound
// rounding error.
type ParcelLine struct {
	Index              int             `json:"index"`
	ProductCategory    string          `json:"product_category"`
	CategoryName       string          `json:"category_name,omitempty"`
	BillingUnit        BillingUnit     `json:"billing_unit"`
	RatePerKg          decimal.Decimal `json:"rate_per_kg"`
	RepeatCount        int             `json:"repeat_count"`
	ActualWeightKg     decimal.Decimal `json:"actual_weight_kg"`
	VolumetricWeightKg decimal.Decimal `json:"volumetric_weight_kg"`
	ChargeableWeightKg decimal.Decimal `json:"chargeable_weight_kg"`
	CBM                decimal.Decimal `json:"cbm"`
	PriceByWeight      decimal.Decimal `json:"price_by_weight"`
	PriceByCBM         decimal.Decimal `json:"price_by_cbm"`
	HSCode             string          `json:"hs_code,omitempty"`
	ShipmentType       string          `json:"shipment_type,omitempty"`
}

// ratedParcel carries the display line plus the unrounded track contributions.
type ratedParcel struct {
	line        ParcelLine
	weightTrack decimal.Decimal
	cbmTrack    decimal.Decimal
}

// rateParcel prices one parcel against its resolved catalog entry.
//
// PER_PIECE keeps two parallel totals: aggregate weight and aggregate volume
// are each multiplied by the per-kg rate, and the two prices feed the
// shipment-level weight track and cbm track independently. They are never
// compared or maxed at the parcel level.
//
// PER_KG bills chargeable weight, the greater of actual and volumetric
// weight (l*w*h / divisor), times the repeat count. The single resulting
// price feeds both tracks, so the tracks coincide for regular cargo and
// diverge only when per-piece cargo is present.
func rateParcel(index int, in ParcelInput, entry CategoryEntry, divisor decimal.Decimal) ratedParcel {
	repeat := decimal.NewFromInt(int64(in.RepeatCount))
	line := ParcelLine{
		Index:           index,
		ProductCategory: entry.ID,
		CategoryName:    entry.NameEN,
		BillingUnit:     entry.BillingUnit,
		RatePerKg:       entry.RatePerKg.Round(2),
		RepeatCount:     in.RepeatCount,
		ActualWeightKg:  in.WeightKg.Round(3),
		HSCode:          in.HSCode,
		ShipmentType:    in.ShipmentType,
	}

	if entry.BillingUnit == BillPerPiece {
		aggWeight := in.WeightKg.Mul(repeat)
		aggVolume := in.CBM.Mul(repeat)
		priceByWeight := aggWeight.Mul(entry.RatePerKg)
		priceByCBM := aggVolume.Mul(entry.RatePerKg)

		line.ChargeableWeightKg = aggWeight.Round(3)
		line.CBM = aggVolume.Round(3)
		line.VolumetricWeightKg = decimal.Zero.Round(3)
		line.PriceByWeight = priceByWeight.Round(2)
		line.PriceByCBM = priceByCBM.Round(2)
		return ratedParcel{line: line, weightTrack: priceByWeight, cbmTrack: priceByCBM}
	}

	volumetric := in.LengthCm.Mul(in.WidthCm).Mul(in.HeightCm).Div(divisor)
	chargeable := decimal.Max(in.WeightKg, volumetric)
	parcelChargeable := chargeable.Mul(repeat)
	price := parcelChargeable.Mul(entry.RatePerKg)

	line.VolumetricWeightKg = volumetric.Round(3)
	line.ChargeableWeightKg = parcelChargeable.Round(3)
	line.CBM = in.CBM.Mul(repeat).Round(3)
	line.PriceByWeight = price.Round(2)
	line.PriceByCBM = price.Round(2)
	return ratedParcel{line: line, weightTrack: price, cbmTrack: price}
}
