package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCategories(ctx, pool)
	seedPackaging(ctx, pool)
	seedProvinces(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool) {
	categories := []struct {
		NameEN      string
		NameAR      string
		RatePerKg   string
		BillingUnit string
	}{
		{"General goods", "بضائع عامة", "2.00", "PER_KG"},
		{"Clothing", "ملابس", "2.50", "PER_KG"},
		{"Electronics", "إلكترونيات", "4.00", "PER_KG"},
		{"Spare parts", "قطع غيار", "3.50", "PER_KG"},
		{"Foodstuffs", "مواد غذائية", "3.00", "PER_KG"},
		{"Documents", "مستندات", "15.00", "PER_PIECE"},
		{"Bicycle", "دراجة هوائية", "60.00", "PER_PIECE"},
		{"Television", "تلفاز", "45.00", "PER_PIECE"},
	}

	log.Println("Seeding freight categories...")
	for _, c := range categories {
		_, err := pool.Exec(ctx, `
			INSERT INTO freight_categories (name_en, name_ar, rate_per_kg, billing_unit)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (name_en) DO UPDATE
			SET name_ar = EXCLUDED.name_ar, rate_per_kg = EXCLUDED.rate_per_kg,
			    billing_unit = EXCLUDED.billing_unit, updated_at = now();
		`, c.NameEN, c.NameAR, c.RatePerKg, c.BillingUnit)
		if err != nil {
			log.Printf("Failed to seed category %s: %v", c.NameEN, err)
		}
	}
}

func seedPackaging(ctx context.Context, pool *pgxpool.Pool) {
	options := []struct {
		NameEN    string
		NameAR    string
		Dimension string
		UnitPrice string
	}{
		{"Small box", "صندوق صغير", "40x30x30", "3.00"},
		{"Medium box", "صندوق وسط", "60x40x40", "5.00"},
		{"Large box", "صندوق كبير", "80x60x60", "8.00"},
		{"Wooden crate", "صندوق خشبي", "120x80x80", "25.00"},
		{"Pallet wrap", "تغليف طبلية", "120x100", "15.00"},
	}

	log.Println("Seeding packaging options...")
	for _, p := range options {
		_, err := pool.Exec(ctx, `
			INSERT INTO packaging_options (name_en, name_ar, dimension, unit_price)
			VALUES ($1, $2, $3, $4::numeric)
			ON CONFLICT (name_en) DO UPDATE
			SET name_ar = EXCLUDED.name_ar, dimension = EXCLUDED.dimension,
			    unit_price = EXCLUDED.unit_price, updated_at = now();
		`, p.NameEN, p.NameAR, p.Dimension, p.UnitPrice)
		if err != nil {
			log.Printf("Failed to seed packaging %s: %v", p.NameEN, err)
		}
	}
}

func seedProvinces(ctx context.Context, pool *pgxpool.Pool) {
	provinces := []struct {
		Code      string
		MinPrice  string
		RatePerKg string
		Active    bool
	}{
		{"damascus", "10.00", "0.30", true},
		{"rif-dimashq", "12.00", "0.35", true},
		{"aleppo", "15.00", "0.40", true},
		{"homs", "12.00", "0.35", true},
		{"hama", "12.00", "0.35", true},
		{"latakia", "14.00", "0.40", true},
		{"tartus", "14.00", "0.40", true},
		{"daraa", "15.00", "0.45", true},
		{"sweida", "15.00", "0.45", true},
		{"deir-ezzor", "25.00", "0.60", false},
		{"raqqa", "25.00", "0.60", false},
		{"hasakah", "25.00", "0.60", false},
		{"idlib", "20.00", "0.50", false},
		{"quneitra", "18.00", "0.50", true},
	}

	log.Println("Seeding province rates...")
	for _, p := range provinces {
		_, err := pool.Exec(ctx, `
			INSERT INTO province_rates (code, min_price, rate_per_kg, is_active)
			VALUES ($1, $2::numeric, $3::numeric, $4)
			ON CONFLICT (code) DO UPDATE
			SET min_price = EXCLUDED.min_price, rate_per_kg = EXCLUDED.rate_per_kg,
			    is_active = EXCLUDED.is_active, updated_at = now();
		`, p.Code, p.MinPrice, p.RatePerKg, p.Active)
		if err != nil {
			log.Printf("Failed to seed province %s: %v", p.Code, err)
		}
	}
}
