package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParcelPayload is the loose, dict-shaped parcel line submitted by clients.
// Numeric fields may arrive as JSON numbers or strings, boolean fields as
// bools, numbers, or strings. Coercion happens exactly once, at this boundary;
// the engine only ever sees typed ParcelInput values.
type ParcelPayload struct {
	ProductCategory string      `json:"productCategory"`
	PackagingType   string      `json:"packagingType"`
	Weight          LooseNumber `json:"weight"`
	CBM             LooseNumber `json:"cbm"`
	Length          LooseNumber `json:"length"`
	Width           LooseNumber `json:"width"`
	Height          LooseNumber `json:"height"`
	RepeatCount     LooseNumber `json:"repeatCount"`
	WantsInsurance  LooseBool   `json:"wantsInsurance"`
	IsElectronics   LooseBool   `json:"isElectronicsShipment"`
	DeclaredValue   LooseNumber `json:"declaredShipmentValue"`
	HSCode          string      `json:"hs_code"`
	ShipmentType    string      `json:"shipmentType"`
}

// ParcelInput is one typed, validated parcel line ready for rating.
type ParcelInput struct {
	CategoryRef    string
	PackagingRef   string
	WeightKg       decimal.Decimal
	LengthCm       decimal.Decimal
	WidthCm        decimal.Decimal
	HeightCm       decimal.Decimal
	CBM            decimal.Decimal
	RepeatCount    int
	DeclaredValue  decimal.Decimal
	WantsInsurance bool
	Electronics    bool
	HSCode         string
	ShipmentType   string

	// SkipProduct marks a parcel whose weight/volume/dimension fields could
	// not be parsed; its product-price contribution is dropped while the
	// packaging line (flat-priced) still applies.
	SkipProduct bool
}

// Diagnostic records a recoverable per-item skip so callers can surface
// "N items were skipped" without the engine raising.
type Diagnostic struct {
	ParcelIndex int    `json:"parcel_index"`
	Field       string `json:"field,omitempty"`
	Reason      string `json:"reason"`
}

// ShipmentLevel marks diagnostics that are not tied to a single parcel.
const ShipmentLevel = -1

// CoerceParcels converts loose payloads into typed inputs, collecting a
// diagnostic for every malformed field. Malformed weight/volume/dimension
// values skip only that parcel's product-price contribution; a malformed
// declared value or repeat count degrades to its zero/default.
func CoerceParcels(payloads []ParcelPayload) ([]ParcelInput, []Diagnostic) {
	inputs := make([]ParcelInput, 0, len(payloads))
	var diags []Diagnostic
	for i, p := range payloads {
		in, d := coerceParcel(i, p)
		inputs = append(inputs, in)
		diags = append(diags, d...)
	}
	return inputs, diags
}

func coerceParcel(index int, p ParcelPayload) (ParcelInput, []Diagnostic) {
	var diags []Diagnostic
	in := ParcelInput{
		CategoryRef:    strings.TrimSpace(p.ProductCategory),
		PackagingRef:   strings.TrimSpace(p.PackagingType),
		RepeatCount:    1,
		WantsInsurance: p.WantsInsurance.Value(),
		Electronics:    p.IsElectronics.Value(),
		HSCode:         strings.TrimSpace(p.HSCode),
		ShipmentType:   strings.TrimSpace(p.ShipmentType),
	}

	bad := func(field string, reason string) {
		diags = append(diags, Diagnostic{ParcelIndex: index, Field: field, Reason: reason})
	}

	physical := func(field string, n LooseNumber) decimal.Decimal {
		v, ok := n.Decimal()
		if !ok {
			bad(field, "not a number, product price skipped for this parcel")
			in.SkipProduct = true
			return decimal.Zero
		}
		if v.IsNegative() {
			bad(field, "negative value, product price skipped for this parcel")
			in.SkipProduct = true
			return decimal.Zero
		}
		return v
	}

	in.WeightKg = physical("weight", p.Weight)
	in.CBM = physical("cbm", p.CBM)
	in.LengthCm = physical("length", p.Length)
	in.WidthCm = physical("width", p.Width)
	in.HeightCm = physical("height", p.Height)

	if p.RepeatCount.Present() {
		v, ok := p.RepeatCount.Decimal()
		if !ok || !v.IsInteger() || v.IntPart() < 1 {
			bad("repeatCount", "not a positive integer, defaulting to 1")
		} else {
			in.RepeatCount = int(v.IntPart())
		}
	}

	if p.DeclaredValue.Present() {
		v, ok := p.DeclaredValue.Decimal()
		if !ok || v.IsNegative() {
			bad("declaredShipmentValue", "not a non-negative number, treated as zero")
		} else {
			in.DeclaredValue = v
		}
	}

	return in, diags
}

// LooseNumber accepts a JSON number, a numeric string, or null.
type LooseNumber struct {
	raw string
	set bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *LooseNumber) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*n = LooseNumber{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = LooseNumber{raw: strings.TrimSpace(s), set: true}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		// Remember that a value was supplied even when it is not numeric so
		// coercion can report it instead of silently treating it as absent.
		*n = LooseNumber{raw: trimmed, set: true}
		return nil
	}
	*n = LooseNumber{raw: num.String(), set: true}
	return nil
}

// Present reports whether any value was supplied.
func (n LooseNumber) Present() bool { return n.set }

// Decimal parses the supplied value. Absent values parse as zero.
func (n LooseNumber) Decimal() (decimal.Decimal, bool) {
	if !n.set || n.raw == "" {
		return decimal.Zero, true
	}
	v, err := decimal.NewFromString(n.raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// String returns the raw supplied value, useful for diagnostics.
func (n LooseNumber) String() string { return n.raw }

// MarshalJSON implements json.Marshaler, round-tripping the supplied value.
func (n LooseNumber) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	if _, err := decimal.NewFromString(n.raw); err == nil {
		return []byte(n.raw), nil
	}
	return json.Marshal(n.raw)
}

// FromDecimal builds a LooseNumber carrying the given value. Used when typed
// callers re-enter the boundary (e.g. re-pricing stored parcels).
func FromDecimal(v decimal.Decimal) LooseNumber {
	return LooseNumber{raw: v.String(), set: true}
}

// LooseBool accepts a JSON bool, a string ("true", "1", "yes", "on"), a
// number (non-zero is true), or null.
type LooseBool struct {
	value bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *LooseBool) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "" || trimmed == "null":
		b.value = false
	case trimmed == "true":
		b.value = true
	case trimmed == "false":
		b.value = false
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "y", "on":
			b.value = true
		default:
			b.value = false
		}
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("invalid boolean: %s", trimmed)
		}
		b.value = num.String() != "0"
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b LooseBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.value)
}

// Value returns the coerced boolean.
func (b LooseBool) Value() bool { return b.value }

// Bool builds a LooseBool from a typed boolean.
func Bool(v bool) LooseBool { return LooseBool{value: v} }
