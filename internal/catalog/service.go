package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/pricing"
)

type storeProvider interface {
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	GetPackaging(ctx context.Context, id string) (Packaging, error)
	ListPackaging(ctx context.Context) ([]Packaging, error)
	CreatePackaging(ctx context.Context, p Packaging) (Packaging, error)
	UpdatePackaging(ctx context.Context, p Packaging) (Packaging, error)
	GetActiveProvince(ctx context.Context, code string) (Province, error)
	ListProvinces(ctx context.Context) ([]Province, error)
	UpsertProvince(ctx context.Context, p Province) (Province, error)
}

// Service fronts the priced catalog with a read-through cache and implements
// pricing.Catalog for the calculation engine. Admin writes invalidate the
// affected cache entries so subsequent calculations see the new rates.
type Service struct {
	store storeProvider
	cache *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store storeProvider
	Cache *Cache
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache}, nil
}

// Category implements pricing.Catalog.
func (s *Service) Category(ctx context.Context, id string) (pricing.CategoryEntry, error) {
	key := categoryCacheKey(id)
	if s.cache != nil {
		var cached pricing.CategoryEntry
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	row, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.CategoryEntry{}, pricing.ErrNotFound
		}
		return pricing.CategoryEntry{}, fmt.Errorf("get category: %w", err)
	}
	entry := pricing.CategoryEntry{
		ID:          row.ID,
		NameEN:      row.NameEN,
		NameAR:      row.NameAR,
		RatePerKg:   row.RatePerKg,
		BillingUnit: pricing.BillingUnit(row.BillingUnit),
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, entry)
	}
	return entry, nil
}

// Packaging implements pricing.Catalog.
func (s *Service) Packaging(ctx context.Context, id string) (pricing.PackagingOption, error) {
	key := packagingCacheKey(id)
	if s.cache != nil {
		var cached pricing.PackagingOption
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	row, err := s.store.GetPackaging(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.PackagingOption{}, pricing.ErrNotFound
		}
		return pricing.PackagingOption{}, fmt.Errorf("get packaging: %w", err)
	}
	option := pricing.PackagingOption{
		ID:        row.ID,
		NameEN:    row.NameEN,
		NameAR:    row.NameAR,
		Dimension: row.Dimension,
		UnitPrice: row.UnitPrice,
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, option)
	}
	return option, nil
}

// ActiveProvince implements pricing.Catalog. Codes match case-insensitively
// and inactive provinces never resolve.
func (s *Service) ActiveProvince(ctx context.Context, code string) (pricing.ProvinceRate, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return pricing.ProvinceRate{}, pricing.ErrNotFound
	}
	key := provinceCacheKey(normalized)
	if s.cache != nil {
		var cached pricing.ProvinceRate
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	row, err := s.store.GetActiveProvince(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.ProvinceRate{}, pricing.ErrNotFound
		}
		return pricing.ProvinceRate{}, fmt.Errorf("get province: %w", err)
	}
	rate := pricing.ProvinceRate{
		Code:      row.Code,
		MinPrice:  row.MinPrice,
		RatePerKg: row.RatePerKg,
		Active:    row.IsActive,
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, rate)
	}
	return rate, nil
}

// CategoryInput carries admin payloads for category writes.
type CategoryInput struct {
	NameEN      string `json:"name_en"`
	NameAR      string `json:"name_ar"`
	RatePerKg   string `json:"rate_per_kg"`
	BillingUnit string `json:"billing_unit"`
}

// PackagingInput carries admin payloads for packaging writes.
type PackagingInput struct {
	NameEN    string `json:"name_en"`
	NameAR    string `json:"name_ar"`
	Dimension string `json:"dimension"`
	UnitPrice string `json:"unit_price"`
}

// ProvinceInput carries admin payloads for province upserts.
type ProvinceInput struct {
	Code      string `json:"code"`
	MinPrice  string `json:"min_price"`
	RatePerKg string `json:"rate_per_kg"`
	IsActive  bool   `json:"is_active"`
}

// ListCategories returns all categories for admin and customer pickers.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// ListPackaging returns all packaging options.
func (s *Service) ListPackaging(ctx context.Context) ([]Packaging, error) {
	return s.store.ListPackaging(ctx)
}

// ListProvinces returns all province rates including inactive ones.
func (s *Service) ListProvinces(ctx context.Context) ([]Province, error) {
	return s.store.ListProvinces(ctx)
}

// CreateCategory validates and inserts a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	c, err := categoryFromInput(in)
	if err != nil {
		return Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// UpdateCategory validates and updates a category, invalidating its cache entry.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	c, err := categoryFromInput(in)
	if err != nil {
		return Category{}, err
	}
	c.ID = id
	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, notFound("category not found")
		}
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, categoryCacheKey(id))
	}
	return updated, nil
}

// CreatePackaging validates and inserts a packaging option.
func (s *Service) CreatePackaging(ctx context.Context, in PackagingInput) (Packaging, error) {
	p, err := packagingFromInput(in)
	if err != nil {
		return Packaging{}, err
	}
	created, err := s.store.CreatePackaging(ctx, p)
	if err != nil {
		return Packaging{}, fmt.Errorf("create packaging: %w", err)
	}
	return created, nil
}

// UpdatePackaging validates and updates a packaging option.
func (s *Service) UpdatePackaging(ctx context.Context, id string, in PackagingInput) (Packaging, error) {
	p, err := packagingFromInput(in)
	if err != nil {
		return Packaging{}, err
	}
	p.ID = id
	updated, err := s.store.UpdatePackaging(ctx, p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Packaging{}, notFound("packaging option not found")
		}
		return Packaging{}, fmt.Errorf("update packaging: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, packagingCacheKey(id))
	}
	return updated, nil
}

// UpsertProvince validates and upserts a province rate.
func (s *Service) UpsertProvince(ctx context.Context, in ProvinceInput) (Province, error) {
	code := strings.ToLower(strings.TrimSpace(in.Code))
	if code == "" {
		return Province{}, badRequest("code", "code is required")
	}
	minPrice, err := parsePrice(in.MinPrice, "min_price")
	if err != nil {
		return Province{}, err
	}
	rate, err := parsePrice(in.RatePerKg, "rate_per_kg")
	if err != nil {
		return Province{}, err
	}
	updated, err := s.store.UpsertProvince(ctx, Province{
		Code:      code,
		MinPrice:  minPrice,
		RatePerKg: rate,
		IsActive:  in.IsActive,
	})
	if err != nil {
		return Province{}, fmt.Errorf("upsert province: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, provinceCacheKey(code))
	}
	return updated, nil
}

func categoryFromInput(in CategoryInput) (Category, error) {
	nameEN := strings.TrimSpace(in.NameEN)
	if nameEN == "" {
		return Category{}, badRequest("name_en", "name_en is required")
	}
	rate, err := parsePrice(in.RatePerKg, "rate_per_kg")
	if err != nil {
		return Category{}, err
	}
	unit := pricing.BillingUnit(strings.ToUpper(strings.TrimSpace(in.BillingUnit)))
	if unit != pricing.BillPerKg && unit != pricing.BillPerPiece {
		return Category{}, badRequest("billing_unit", "billing_unit must be PER_KG or PER_PIECE")
	}
	return Category{
		NameEN:      nameEN,
		NameAR:      strings.TrimSpace(in.NameAR),
		RatePerKg:   rate,
		BillingUnit: string(unit),
	}, nil
}

func packagingFromInput(in PackagingInput) (Packaging, error) {
	nameEN := strings.TrimSpace(in.NameEN)
	if nameEN == "" {
		return Packaging{}, badRequest("name_en", "name_en is required")
	}
	price, err := parsePrice(in.UnitPrice, "unit_price")
	if err != nil {
		return Packaging{}, err
	}
	return Packaging{
		NameEN:    nameEN,
		NameAR:    strings.TrimSpace(in.NameAR),
		Dimension: strings.TrimSpace(in.Dimension),
		UnitPrice: price,
	}, nil
}

func parsePrice(value, field string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, badRequest(field, field+" must be a decimal number")
	}
	if parsed.IsNegative() {
		return decimal.Zero, badRequest(field, field+" must not be negative")
	}
	return parsed, nil
}

func categoryCacheKey(id string) string  { return "freight:catalog:category:" + id }
func packagingCacheKey(id string) string { return "freight:catalog:packaging:" + id }
func provinceCacheKey(code string) string {
	return "freight:catalog:province:" + code
}

func badRequest(field, message string) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

func notFound(message string) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound}
}
