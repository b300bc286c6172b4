// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment gateway
	GatewayProvider      string // "paystack" or "stripe"
	PaystackSecretKey    string
	PaystackBaseURL      string
	StripeSecretKey      string
	PaymentCallbackURL   string // where the gateway redirects the client after payment
	GatewayTimeout       time.Duration
	PlatformFeePercent   int // percentage of each booking kept by the platform
	JWTSecret            string
	AdminSweepSecret     string // extra secret for the manual sweep endpoint
	RateLimitRPM         int
	OTLPEndpoint         string
	AMQPURL              string // optional, event mirroring disabled if not set
	AMQPExchange         string
	RequestExpiryWindow  time.Duration // pending bookings expire after this
	CompletionWindow     time.Duration // clients get this long to confirm or dispute
	SweepInterval        time.Duration
}

// Supported payment gateway providers.
const (
	ProviderPaystack = "paystack"
	ProviderStripe   = "stripe"
)

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultPaystackBaseURL    = "https://api.paystack.co"
	DefaultGatewayProvider    = "paystack"
	DefaultPlatformFeePercent = 20
	DefaultRateLimit          = 120
	DefaultAMQPExchange       = "companion.events"
)

// Time-window policy defaults. The 15-minute window protects companions from
// stale requests; the 48-hour window bounds how long a client can withhold
// completion confirmation.
const (
	DefaultRequestExpiryWindow = 15 * time.Minute
	DefaultCompletionWindow    = 48 * time.Hour
	DefaultSweepInterval       = 30 * time.Second
	DefaultGatewayTimeout      = 15 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		GatewayProvider:     getEnv("GATEWAY_PROVIDER", DefaultGatewayProvider),
		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", DefaultPaystackBaseURL),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		PaymentCallbackURL:  os.Getenv("PAYMENT_CALLBACK_URL"),
		GatewayTimeout:      getEnvDuration("GATEWAY_TIMEOUT", DefaultGatewayTimeout),
		PlatformFeePercent:  int(getEnvInt64("PLATFORM_FEE_PERCENT", DefaultPlatformFeePercent)),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		AdminSweepSecret:    os.Getenv("ADMIN_SWEEP_SECRET"),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", int64(DefaultRateLimit))),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		AMQPExchange:        getEnv("AMQP_EXCHANGE", DefaultAMQPExchange),
		RequestExpiryWindow: getEnvDuration("REQUEST_EXPIRY_WINDOW", DefaultRequestExpiryWindow),
		CompletionWindow:    getEnvDuration("COMPLETION_WINDOW", DefaultCompletionWindow),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.GatewayProvider {
	case ProviderPaystack:
		if c.PaystackSecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY is required when GATEWAY_PROVIDER=paystack")
		}
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when GATEWAY_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("GATEWAY_PROVIDER must be 'paystack' or 'stripe', got %q", c.GatewayProvider)
	}

	if c.PlatformFeePercent < 0 || c.PlatformFeePercent > 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100, got %d", c.PlatformFeePercent)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
