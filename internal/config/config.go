package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Pricing knobs. Defaults match the published tariff.
	PricingMinimumCharge     decimal.Decimal
	PricingInsuranceRateBps  int64
	PricingVolumetricDivisor decimal.Decimal
	PricingFoldSurcharges    bool

	// External collaborators.
	ShippingRateBaseURL string
	ShippingRateAPIKey  string
	PaymentBaseURL      string
	PaymentSandbox      bool
	PaymentCurrency     string
	PaymentExpiry       time.Duration
	WhatsAppBaseURL     string
	WhatsAppAPIKey      string

	// Notification toggles.
	NotifyEmailEnabled    bool
	NotifyWhatsAppEnabled bool
	NotifyEmailFrom       string

	CatalogCacheTTL time.Duration
	OTLPEndpoint    string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PricingMinimumCharge:     parseDecimal(k.String("PRICING_MINIMUM_CHARGE"), "75"),
		PricingInsuranceRateBps:  parseInt(k.String("PRICING_INSURANCE_RATE_BPS"), 150),
		PricingVolumetricDivisor: parseDecimal(k.String("PRICING_VOLUMETRIC_DIVISOR"), "6000"),
		PricingFoldSurcharges:    parseBool(k.String("PRICING_FOLD_SURCHARGES")),

		ShippingRateBaseURL: k.String("SHIPPING_RATE_BASE_URL"),
		ShippingRateAPIKey:  k.String("SHIPPING_RATE_API_KEY"),
		PaymentBaseURL:      k.String("PAYMENT_BASE_URL"),
		PaymentSandbox:      parseBool(valueOrDefault(k.String("PAYMENT_SANDBOX"), "true")),
		PaymentCurrency:     valueOrDefault(k.String("PAYMENT_CURRENCY"), "EUR"),
		PaymentExpiry:       parseDuration(k.String("PAYMENT_EXPIRY"), "1h"),
		WhatsAppBaseURL:     k.String("WHATSAPP_BASE_URL"),
		WhatsAppAPIKey:      k.String("WHATSAPP_API_KEY"),

		NotifyEmailEnabled:    parseBool(k.String("NOTIFY_EMAIL_ENABLED")),
		NotifyWhatsAppEnabled: parseBool(k.String("NOTIFY_WHATSAPP_ENABLED")),
		NotifyEmailFrom:       k.String("NOTIFY_EMAIL_FROM"),

		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		OTLPEndpoint:    k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PricingInsuranceRateBps < 0 {
		return nil, errors.New("PRICING_INSURANCE_RATE_BPS must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil || d.IsNegative() {
		d = decimal.RequireFromString(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) int64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil || !d.IsInteger() {
		return fallback
	}
	return d.IntPart()
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
