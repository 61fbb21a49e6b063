package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Category is one rateable commodity category row.
type Category struct {
	ID          string          `json:"id"`
	NameEN      string          `json:"name_en"`
	NameAR      string          `json:"name_ar"`
	RatePerKg   decimal.Decimal `json:"rate_per_kg"`
	BillingUnit string          `json:"billing_unit"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Packaging is one flat-priced packaging option row.
type Packaging struct {
	ID        string          `json:"id"`
	NameEN    string          `json:"name_en"`
	NameAR    string          `json:"name_ar"`
	Dimension string          `json:"dimension"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Province is one inland surcharge rate row keyed by province code.
type Province struct {
	Code      string          `json:"code"`
	MinPrice  decimal.Decimal `json:"min_price"`
	RatePerKg decimal.Decimal `json:"rate_per_kg"`
	IsActive  bool            `json:"is_active"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store provides direct Postgres access to the priced catalog tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const categoryColumns = `id, name_en, name_ar, rate_per_kg::text, billing_unit, created_at, updated_at`

// GetCategory returns one category by id.
func (s *Store) GetCategory(ctx context.Context, id string) (Category, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM freight_categories WHERE id = $1`, id)
	return scanCategory(row)
}

// ListCategories returns all categories ordered by English name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM freight_categories ORDER BY name_en`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var result []Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cat)
	}
	return result, rows.Err()
}

// CreateCategory inserts a category and returns the stored row.
func (s *Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO freight_categories (name_en, name_ar, rate_per_kg, billing_unit)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING `+categoryColumns,
		c.NameEN, c.NameAR, c.RatePerKg.String(), c.BillingUnit)
	return scanCategory(row)
}

// UpdateCategory updates the priced fields of a category.
func (s *Store) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE freight_categories
		SET name_en = $2, name_ar = $3, rate_per_kg = $4::numeric, billing_unit = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+categoryColumns,
		c.ID, c.NameEN, c.NameAR, c.RatePerKg.String(), c.BillingUnit)
	return scanCategory(row)
}

const packagingColumns = `id, name_en, name_ar, dimension, unit_price::text, created_at, updated_at`

// GetPackaging returns one packaging option by id.
func (s *Store) GetPackaging(ctx context.Context, id string) (Packaging, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+packagingColumns+` FROM packaging_options WHERE id = $1`, id)
	return scanPackaging(row)
}

// ListPackaging returns all packaging options ordered by English name.
func (s *Store) ListPackaging(ctx context.Context) ([]Packaging, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+packagingColumns+` FROM packaging_options ORDER BY name_en`)
	if err != nil {
		return nil, fmt.Errorf("list packaging: %w", err)
	}
	defer rows.Close()
	var result []Packaging
	for rows.Next() {
		opt, err := scanPackaging(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, opt)
	}
	return result, rows.Err()
}

// CreatePackaging inserts a packaging option and returns the stored row.
func (s *Store) CreatePackaging(ctx context.Context, p Packaging) (Packaging, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO packaging_options (name_en, name_ar, dimension, unit_price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING `+packagingColumns,
		p.NameEN, p.NameAR, p.Dimension, p.UnitPrice.String())
	return scanPackaging(row)
}

// UpdatePackaging updates a packaging option.
func (s *Store) UpdatePackaging(ctx context.Context, p Packaging) (Packaging, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE packaging_options
		SET name_en = $2, name_ar = $3, dimension = $4, unit_price = $5::numeric, updated_at = now()
		WHERE id = $1
		RETURNING `+packagingColumns,
		p.ID, p.NameEN, p.NameAR, p.Dimension, p.UnitPrice.String())
	return scanPackaging(row)
}

const provinceColumns = `code, min_price::text, rate_per_kg::text, is_active, updated_at`

// GetActiveProvince matches a province case-insensitively, active rows only.
func (s *Store) GetActiveProvince(ctx context.Context, code string) (Province, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+provinceColumns+` FROM province_rates
		WHERE lower(code) = lower($1) AND is_active`, strings.TrimSpace(code))
	return scanProvince(row)
}

// ListProvinces returns every province rate, active or not.
func (s *Store) ListProvinces(ctx context.Context) ([]Province, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+provinceColumns+` FROM province_rates ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list provinces: %w", err)
	}
	defer rows.Close()
	var result []Province
	for rows.Next() {
		p, err := scanProvince(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpsertProvince inserts or replaces the rate for a province code.
func (s *Store) UpsertProvince(ctx context.Context, p Province) (Province, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO province_rates (code, min_price, rate_per_kg, is_active)
		VALUES (lower($1), $2::numeric, $3::numeric, $4)
		ON CONFLICT (code) DO UPDATE
		SET min_price = EXCLUDED.min_price, rate_per_kg = EXCLUDED.rate_per_kg,
		    is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING `+provinceColumns,
		p.Code, p.MinPrice.String(), p.RatePerKg.String(), p.IsActive)
	return scanProvince(row)
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	var rate string
	if err := row.Scan(&c.ID, &c.NameEN, &c.NameAR, &rate, &c.BillingUnit, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Category{}, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Category{}, fmt.Errorf("parse rate_per_kg: %w", err)
	}
	c.RatePerKg = parsed
	return c, nil
}

func scanPackaging(row pgx.Row) (Packaging, error) {
	var p Packaging
	var price string
	if err := row.Scan(&p.ID, &p.NameEN, &p.NameAR, &p.Dimension, &price, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Packaging{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Packaging{}, fmt.Errorf("parse unit_price: %w", err)
	}
	p.UnitPrice = parsed
	return p, nil
}

func scanProvince(row pgx.Row) (Province, error) {
	var p Province
	var minPrice, rate string
	if err := row.Scan(&p.Code, &minPrice, &rate, &p.IsActive, &p.UpdatedAt); err != nil {
		return Province{}, err
	}
	parsedMin, err := decimal.NewFromString(minPrice)
	if err != nil {
		return Province{}, fmt.Errorf("parse min_price: %w", err)
	}
	parsedRate, err := decimal.NewFromString(rate)
	if err != nil {
		return Province{}, fmt.Errorf("parse rate_per_kg: %w", err)
	}
	p.MinPrice = parsedMin
	p.RatePerKg = parsedRate
	return p, nil
}
