// Package config loads the storefront configuration from the environment.
//
// Tax and shipping policy are deployment configuration, not runtime state:
// a missing or malformed value here is fatal and stops startup, per the
// error taxonomy's ConfigurationError.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

type Config struct {
	Port string

	// TaxRate is a fraction, e.g. 0.14 for 14%.
	TaxRate  decimal.Decimal
	Shipping pricing.ShippingPolicy
	Currency currency.Unit

	// BackendURL is the merchant backend base URL. Empty selects the
	// in-memory dev backend.
	BackendURL      string
	UpstreamTimeout time.Duration

	// RedisAddr enables the coupon/cart snapshot cache when set.
	RedisAddr string
	CacheTTL  time.Duration

	// JournalPath enables the SQLite checkout journal when set.
	JournalPath string
}

// Load reads and validates the environment. All pricing-critical values are
// validated here so the engine can assume they are sane.
func Load() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", "8080"),
		BackendURL:      getenv("BACKEND_URL", ""),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		JournalPath:     getenv("JOURNAL_DB_PATH", ""),
		UpstreamTimeout: parseDuration(getenv("UPSTREAM_TIMEOUT", "10s"), 10*time.Second),
		CacheTTL:        parseDuration(getenv("CACHE_TTL", "5m"), 5*time.Minute),
	}

	taxRate, err := decimal.NewFromString(getenv("TAX_RATE", "0.14"))
	if err != nil {
		return Config{}, fmt.Errorf("config: TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("config: TAX_RATE %s outside [0, 1]", taxRate)
	}
	cfg.TaxRate = taxRate

	baseCost, err := decimal.NewFromString(getenv("SHIPPING_BASE_COST", "50"))
	if err != nil {
		return Config{}, fmt.Errorf("config: SHIPPING_BASE_COST: %w", err)
	}
	if baseCost.IsNegative() {
		return Config{}, fmt.Errorf("config: SHIPPING_BASE_COST %s is negative", baseCost)
	}
	cfg.Shipping.BaseCost = baseCost

	if raw := getenv("FREE_SHIPPING_THRESHOLD", ""); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: FREE_SHIPPING_THRESHOLD: %w", err)
		}
		cfg.Shipping.FreeShippingThreshold = &threshold
	}

	unit, err := currency.ParseISO(getenv("CURRENCY", "EGP"))
	if err != nil {
		return Config{}, fmt.Errorf("config: CURRENCY: %w", err)
	}
	cfg.Currency = unit

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
