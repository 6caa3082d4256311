// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Auth
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Bootstrap staff account (optional; created on startup if missing)
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	// Daily reset
	ResetTimezone      string // IANA name, e.g. "America/New_York"
	ResetCheckInterval time.Duration

	// Stripe card top-ups (optional; deposits fall back to manual review only)
	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string

	// Withdrawal payouts (optional; when unset approvals skip the on-chain send)
	PayoutRPCURL     string
	PayoutChainID    int64
	PayoutPrivateKey string // Hex-encoded, with or without 0x prefix
	TokenContract    string // ERC-20 contract used for payouts

	// Security
	AllowedOrigins []string
	RateLimitRPM   int

	// Tracing
	OTLPEndpoint string
}

const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultResetTimezone = "America/New_York"
	DefaultResetCheck    = 60 * time.Second
	DefaultAccessTTL     = 2 * time.Hour
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultRateLimit     = 120
	DefaultPayoutChainID = 1
	// Ethereum mainnet USDT
	DefaultTokenContract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		JWTSecret:          getEnv("JWT_SECRET", "dev-only-secret"),
		AccessTokenTTL:     getEnvHours("ACCESS_TOKEN_HOURS", DefaultAccessTTL),
		RefreshTokenTTL:    getEnvHours("REFRESH_TOKEN_HOURS", DefaultRefreshTTL),
		AdminUsername:      os.Getenv("ADMIN_USERNAME"),
		AdminEmail:         os.Getenv("ADMIN_EMAIL"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		ResetTimezone:      getEnv("RESET_TIMEZONE", DefaultResetTimezone),
		ResetCheckInterval: getEnvSeconds("RESET_CHECK_SECONDS", DefaultResetCheck),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		StripeSuccessURL:   os.Getenv("STRIPE_SUCCESS_URL"),
		StripeCancelURL:    os.Getenv("STRIPE_CANCEL_URL"),
		PayoutRPCURL:       os.Getenv("PAYOUT_RPC_URL"),
		PayoutChainID:      getEnvInt64("PAYOUT_CHAIN_ID", DefaultPayoutChainID),
		PayoutPrivateKey:   os.Getenv("PAYOUT_PRIVATE_KEY"),
		TokenContract:      getEnv("TOKEN_CONTRACT", DefaultTokenContract),
		AllowedOrigins:     splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == "dev-only-secret") {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	if _, err := time.LoadLocation(c.ResetTimezone); err != nil {
		return fmt.Errorf("RESET_TIMEZONE %q is not a valid IANA zone: %w", c.ResetTimezone, err)
	}

	if c.PayoutPrivateKey != "" {
		key := c.PayoutPrivateKey
		if len(key) == 66 && key[:2] == "0x" {
			key = key[2:]
		}
		if len(key) != 64 {
			return fmt.Errorf("PAYOUT_PRIVATE_KEY must be 64 hex characters (with or without 0x prefix)")
		}
		if c.PayoutRPCURL == "" {
			return fmt.Errorf("PAYOUT_RPC_URL is required when PAYOUT_PRIVATE_KEY is set")
		}
	}

	return nil
}

// PayoutEnabled returns true when on-chain withdrawal payouts are configured
func (c *Config) PayoutEnabled() bool {
	return c.PayoutPrivateKey != "" && c.PayoutRPCURL != ""
}

// StripeEnabled returns true when card top-ups are configured
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
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

func getEnvHours(key string, defaultValue time.Duration) time.Duration {
	if i := getEnvInt64(key, 0); i > 0 {
		return time.Duration(i) * time.Hour
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if i := getEnvInt64(key, 0); i > 0 {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
