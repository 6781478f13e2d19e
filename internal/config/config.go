// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkutano/hotspot/internal/security"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Billing backend
	BackendURL     string        // Base URL of the billing/RADIUS backend
	RequestTimeout time.Duration // Per-request timeout for backend calls

	// Payments
	Currency        string // ISO currency code, KES by default
	StripeSecretKey string // Enables the card rail when set
	PollInterval    time.Duration
	PollTimeout     time.Duration // Give up waiting for a payment after this long

	// Checkout behaviour
	OptimisticProcessing bool // Enter processing before the initiate call resolves
	CheckoutTTL          time.Duration

	// Plan catalogue resilience
	BreakerThreshold int
	BreakerOpenFor   time.Duration

	// Admin surface
	AdminToken string // Bearer token guarding /admin routes; empty disables them

	// Observability
	OTLPEndpoint string

	// Local state
	StateFile string // Persisted auth token + cached admin profile
}

const (
	DefaultPort         = "8085"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultCurrency     = "KES"
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
	DefaultCheckoutTTL  = 30 * time.Minute
	DefaultBreakerTrips = 3
	DefaultBreakerOpen  = 30 * time.Second
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		BackendURL:           os.Getenv("BACKEND_URL"), // Required, no default
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", DefaultTimeout),
		Currency:             getEnv("CURRENCY", DefaultCurrency),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		PollInterval:         getEnvDuration("PAYMENT_POLL_INTERVAL", DefaultPollInterval),
		PollTimeout:          getEnvDuration("PAYMENT_POLL_TIMEOUT", DefaultPollTimeout),
		OptimisticProcessing: getEnvBool("OPTIMISTIC_PROCESSING", true),
		CheckoutTTL:          getEnvDuration("CHECKOUT_TTL", DefaultCheckoutTTL),
		BreakerThreshold:     int(getEnvInt64("PLAN_BREAKER_THRESHOLD", DefaultBreakerTrips)),
		BreakerOpenFor:       getEnvDuration("PLAN_BREAKER_OPEN_FOR", DefaultBreakerOpen),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		StateFile:            getEnv("STATE_FILE", defaultStateFile()),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if err := security.ValidateBackendURL(c.BackendURL); err != nil {
		return fmt.Errorf("BACKEND_URL: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
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

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hotspot-state.json"
	}
	return home + "/.hotspot/state.json"
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
