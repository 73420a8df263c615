package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (STONE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STONE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (STONE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Business     BusinessConfig
	Seller       SellerConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// BusinessConfig carries the pricing and checkout policy knobs. Defaults are
// the storefront's standing trade terms.
type BusinessConfig struct {
	FillerRate         string        `default:"0.5"   usage:"Filler charge per filler piece, as a fraction of unit price" flag:"filler-rate"`
	MaxShippingWeight  string        `default:"48000" usage:"Maximum shippable weight in pounds" flag:"max-shipping-weight"`
	ShippingFee        string        `default:"120"   usage:"Flat shipping fee" flag:"shipping-fee"`
	ReservationTimeout time.Duration `default:"15m"   usage:"Default checkout reservation window" flag:"reservation-timeout"`
	InvoiceDueTerm     time.Duration `default:"720h"  usage:"Invoice payment term from issue date" flag:"invoice-due-term"`
}

// SellerConfig is the seller identity printed on every invoice.
type SellerConfig struct {
	Name   string `default:"RR Stones" usage:"Seller legal name"`
	Street string `default:"123 Business Park, Granite Street" usage:"Seller street address"`
	City   string `default:"Mumbai, Maharashtra 400001" usage:"Seller city line"`
	Phone  string `default:"+91 9876543210" usage:"Seller phone"`
	Email  string `default:"info@rrstones.example" usage:"Seller email"`
	TaxID  string `default:"GST123456789" usage:"Seller tax identifier" flag:"tax-id"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STONE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STONE_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Business.Rates(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BusinessRates are the decimal forms of the pricing knobs.
type BusinessRates struct {
	FillerRate  decimal.Decimal
	MaxWeight   decimal.Decimal
	ShippingFee decimal.Decimal
}

// Rates parses the decimal-valued business knobs.
func (b BusinessConfig) Rates() (BusinessRates, error) {
	var (
		out BusinessRates
		err error
	)
	if out.FillerRate, err = decimal.NewFromString(b.FillerRate); err != nil {
		return out, errors.Wrap(err, "parse filler rate")
	}
	if out.MaxWeight, err = decimal.NewFromString(b.MaxShippingWeight); err != nil {
		return out, errors.Wrap(err, "parse max shipping weight")
	}
	if out.ShippingFee, err = decimal.NewFromString(b.ShippingFee); err != nil {
		return out, errors.Wrap(err, "parse shipping fee")
	}
	return out, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STONE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
