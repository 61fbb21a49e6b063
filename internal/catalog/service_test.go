package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-freight/internal/catalog"
	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/pricing"
)

type fakeStore struct {
	categories map[string]catalog.Category
	packaging  map[string]catalog.Packaging
	provinces  map[string]catalog.Province

	categoryReads int
	provinceReads int
}

func (f *fakeStore) GetCategory(ctx context.Context, id string) (catalog.Category, error) {
	f.categoryReads++
	c, ok := f.categories[id]
	if !ok {
		return catalog.Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	c.ID = "cat-new"
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	if _, ok := f.categories[c.ID]; !ok {
		return catalog.Category{}, pgx.ErrNoRows
	}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetPackaging(ctx context.Context, id string) (catalog.Packaging, error) {
	p, ok := f.packaging[id]
	if !ok {
		return catalog.Packaging{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) ListPackaging(ctx context.Context) ([]catalog.Packaging, error) {
	var out []catalog.Packaging
	for _, p := range f.packaging {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) CreatePackaging(ctx context.Context, p catalog.Packaging) (catalog.Packaging, error) {
	p.ID = "pack-new"
	f.packaging[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdatePackaging(ctx context.Context, p catalog.Packaging) (catalog.Packaging, error) {
	if _, ok := f.packaging[p.ID]; !ok {
		return catalog.Packaging{}, pgx.ErrNoRows
	}
	f.packaging[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetActiveProvince(ctx context.Context, code string) (catalog.Province, error) {
	f.provinceReads++
	p, ok := f.provinces[code]
	if !ok || !p.IsActive {
		return catalog.Province{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) ListProvinces(ctx context.Context) ([]catalog.Province, error) {
	var out []catalog.Province
	for _, p := range f.provinces {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UpsertProvince(ctx context.Context, p catalog.Province) (catalog.Province, error) {
	f.provinces[p.Code] = p
	return p, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: map[string]catalog.Category{
			"cat-1": {ID: "cat-1", NameEN: "General goods", RatePerKg: dec("2"), BillingUnit: "PER_KG"},
		},
		packaging: map[string]catalog.Packaging{
			"pack-1": {ID: "pack-1", NameEN: "Wooden crate", Dimension: "60x40x35", UnitPrice: dec("20")},
		},
		provinces: map[string]catalog.Province{
			"aleppo": {Code: "aleppo", MinPrice: dec("25"), RatePerKg: dec("0.5"), IsActive: true},
			"idlib":  {Code: "idlib", MinPrice: dec("25"), RatePerKg: dec("0.5"), IsActive: false},
		},
	}
}

func newService(t *testing.T, store *fakeStore) *catalog.Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store: store,
		Cache: catalog.NewCache(rdb, time.Minute),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCategoryReadThroughCache(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry, err := svc.Category(ctx, "cat-1")
		if err != nil {
			t.Fatalf("category: %v", err)
		}
		if entry.BillingUnit != pricing.BillPerKg {
			t.Fatalf("expected PER_KG, got %s", entry.BillingUnit)
		}
	}
	if store.categoryReads != 1 {
		t.Fatalf("expected 1 store read, got %d", store.categoryReads)
	}
}

func TestCategoryMissMapsToEngineNotFound(t *testing.T) {
	svc := newService(t, newFakeStore())
	_, err := svc.Category(context.Background(), "ghost")
	if !errors.Is(err, pricing.ErrNotFound) {
		t.Fatalf("expected pricing.ErrNotFound, got %v", err)
	}
}

func TestActiveProvinceIsCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)
	rate, err := svc.ActiveProvince(context.Background(), "  Aleppo ")
	if err != nil {
		t.Fatalf("active province: %v", err)
	}
	if !rate.Active || rate.Code != "aleppo" {
		t.Fatalf("unexpected province %+v", rate)
	}
}

func TestInactiveProvinceNotFound(t *testing.T) {
	svc := newService(t, newFakeStore())
	_, err := svc.ActiveProvince(context.Background(), "idlib")
	if !errors.Is(err, pricing.ErrNotFound) {
		t.Fatalf("expected pricing.ErrNotFound, got %v", err)
	}
}

func TestUpdateCategoryInvalidatesCache(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)
	ctx := context.Background()

	if _, err := svc.Category(ctx, "cat-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := svc.UpdateCategory(ctx, "cat-1", catalog.CategoryInput{
		NameEN:      "General goods",
		RatePerKg:   "3",
		BillingUnit: "PER_KG",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	entry, err := svc.Category(ctx, "cat-1")
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if got := entry.RatePerKg.StringFixed(2); got != "3.00" {
		t.Fatalf("expected refreshed rate 3.00, got %s", got)
	}
	if store.categoryReads != 2 {
		t.Fatalf("expected cache invalidation to force a second read, got %d", store.categoryReads)
	}
}

func TestCategoryInputValidation(t *testing.T) {
	svc := newService(t, newFakeStore())
	ctx := context.Background()

	cases := []catalog.CategoryInput{
		{NameEN: "", RatePerKg: "2", BillingUnit: "PER_KG"},
		{NameEN: "x", RatePerKg: "cheap", BillingUnit: "PER_KG"},
		{NameEN: "x", RatePerKg: "-1", BillingUnit: "PER_KG"},
		{NameEN: "x", RatePerKg: "2", BillingUnit: "PER_TON"},
	}
	for i, in := range cases {
		_, err := svc.CreateCategory(ctx, in)
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.HTTPStatus != 400 {
			t.Fatalf("case %d: expected 400 AppError, got %v", i, err)
		}
	}
}

func TestUpsertProvinceNormalizesCode(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)
	ctx := context.Background()

	p, err := svc.UpsertProvince(ctx, catalog.ProvinceInput{
		Code:      " Homs ",
		MinPrice:  "30",
		RatePerKg: "0.75",
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.Code != "homs" {
		t.Fatalf("expected lowered code, got %q", p.Code)
	}
	if _, err := svc.ActiveProvince(ctx, "HOMS"); err != nil {
		t.Fatalf("lookup after upsert: %v", err)
	}
}
