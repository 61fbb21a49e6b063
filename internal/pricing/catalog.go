package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Catalog lookups when no matching entry exists.
var ErrNotFound = errors.New("pricing: catalog entry not found")

// BillingUnit selects how a category prices a parcel.
type BillingUnit string

const (
	// BillPerKg rates a parcel on chargeable weight (max of actual and volumetric).
	BillPerKg BillingUnit = "PER_KG"
	// BillPerPiece rates a parcel on weight and volume as two parallel totals.
	BillPerPiece BillingUnit = "PER_PIECE"
)

// CategoryEntry is one rateable commodity category from the priced catalog.
// The engine treats it as a snapshot: catalog edits after a calculation do not
// change the figures that calculation produced.
type CategoryEntry struct {
	ID          string
	NameEN      string
	NameAR      string
	RatePerKg   decimal.Decimal
	BillingUnit BillingUnit
}

// PackagingOption is a flat-priced packaging choice applied per parcel repeat.
type PackagingOption struct {
	ID        string
	NameEN    string
	NameAR    string
	Dimension string
	UnitPrice decimal.Decimal
}

// ProvinceRate is the inland surcharge rate for one destination province.
// Charge = max(weight * RatePerKg, MinPrice). Inactive provinces never match.
type ProvinceRate struct {
	Code      string
	MinPrice  decimal.Decimal
	RatePerKg decimal.Decimal
	Active    bool
}

// Catalog supplies priced reference data to the engine. Implementations must
// match province codes case-insensitively and only return active provinces.
// A lookup miss is reported as ErrNotFound and is never fatal to a calculation.
type Catalog interface {
	Category(ctx context.Context, id string) (CategoryEntry, error)
	Packaging(ctx context.Context, id string) (PackagingOption, error)
	ActiveProvince(ctx context.Context, code string) (ProvinceRate, error)
}
