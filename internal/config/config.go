// Package config defines the global configuration structure for the EquityLens
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved from the OS environment, with a .env file as a
// lower-priority fallback for local development. Any missing required value or
// invalid format fails startup immediately (fail fast).
package config

import (
	"time"

	"equitylens/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the EquityLens platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"equitylens-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Billing  BillingConfig
	Model    ModelConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// DashboardURL is the public frontend origin used to build checkout
	// redirect URLs server-side (no trailing slash).
	DashboardURL string `envconfig:"DASHBOARD_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the company-search cache connection settings.
type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  SecretString  `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	SearchTTL time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"5m"`
}

// BillingConfig holds Stripe payment integration credentials and the fixed
// pro-plan price. The price is a single recurring monthly charge; there is no
// multi-currency or proration support.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	ProductName         string       `envconfig:"BILLING_PRODUCT_NAME" default:"EquityLens Pro"`
	Currency            string       `envconfig:"BILLING_CURRENCY" default:"eur"`
	UnitAmountCents     int          `envconfig:"BILLING_UNIT_AMOUNT" default:"700"`
}

// ModelConfig holds the report-generation model provider settings.
type ModelConfig struct {
	APIKey    SecretString `envconfig:"ANTHROPIC_API_KEY" validate:"required"`
	Model     string       `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-20241022"`
	MaxTokens int          `envconfig:"ANTHROPIC_MAX_TOKENS" default:"4000"`
	// BaseURL is overridable for testing; empty means the public API.
	BaseURL string        `envconfig:"ANTHROPIC_BASE_URL"`
	Timeout time.Duration `envconfig:"ANTHROPIC_TIMEOUT" default:"120s"`
}

// SecurityConfig holds CORS settings for the browser frontend.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}
