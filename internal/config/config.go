package config

import (
	"fmt"

	"github.com/tahiry-dev-29/boutique-pricing/internal/domain"
	pkgconfig "github.com/tahiry-dev-29/boutique-pricing/pkg/config"
)

// Config holds all configuration for the pricing service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"PRICING_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"boutique"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"boutique_secret"`
	PostgresDB   string `env:"PRICING_DB_NAME" envDefault:"pricing_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (distributed apply/revert locks)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Payment service; empty disables webhook payment verification.
	PaymentServiceURL string `env:"PAYMENT_SERVICE_URL" envDefault:""`

	// Slow query logging threshold; 0 disables it.
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Expiry reconciliation sweep interval in seconds.
	ReconcileIntervalSec int `env:"PRICING_RECONCILE_INTERVAL_SECONDS" envDefault:"60"`

	// Markup policy coefficients. The factor grows from the base by the
	// per-value and per-tier steps; the activation price likewise.
	MarkupFactorBase     float64 `env:"PRICING_MARKUP_FACTOR_BASE" envDefault:"1.0"`
	MarkupFactorPerValue float64 `env:"PRICING_MARKUP_FACTOR_PER_VALUE" envDefault:"0.005"`
	MarkupFactorPerTier  float64 `env:"PRICING_MARKUP_FACTOR_PER_TIER" envDefault:"0.01"`
	ActivationBasePrice  int64   `env:"PRICING_ACTIVATION_BASE_PRICE" envDefault:"5000"`
	ActivationPerValue   int64   `env:"PRICING_ACTIVATION_PER_VALUE" envDefault:"150"`
	ActivationPerTier    int64   `env:"PRICING_ACTIVATION_PER_TIER" envDefault:"2500"`

	// Circuit breaker for the payment service client.
	CBMaxRequests  uint32  `env:"PRICING_CB_MAX_REQUESTS" envDefault:"3"`
	CBInterval     int     `env:"PRICING_CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"PRICING_CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"PRICING_CB_FAILURE_RATIO" envDefault:"0.6"`
	CBMinRequests  uint32  `env:"PRICING_CB_MIN_REQUESTS" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.ReconcileIntervalSec < 1 {
		return fmt.Errorf("invalid reconcile interval: %d", c.ReconcileIntervalSec)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.MarkupFactorBase < 1.0 {
		return fmt.Errorf("PRICING_MARKUP_FACTOR_BASE must be at least 1.0, got %g", c.MarkupFactorBase)
	}
	if c.MarkupFactorPerValue < 0 || c.MarkupFactorPerTier < 0 {
		return fmt.Errorf("markup factor steps must not be negative")
	}
	if c.ActivationBasePrice < 0 || c.ActivationPerValue < 0 || c.ActivationPerTier < 0 {
		return fmt.Errorf("activation price coefficients must not be negative")
	}
	return nil
}

// MarkupPolicy builds the markup policy from the configured coefficients.
func (c *Config) MarkupPolicy() domain.LinearMarkupPolicy {
	return domain.LinearMarkupPolicy{
		BaseFactor:          c.MarkupFactorBase,
		ValuePerPointFactor: c.MarkupFactorPerValue,
		DurationTierFactor:  c.MarkupFactorPerTier,
		BasePrice:           c.ActivationBasePrice,
		PricePerPoint:       c.ActivationPerValue,
		PricePerTier:        c.ActivationPerTier,
	}
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
