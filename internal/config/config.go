// Package config provides centralized configuration management for the
// millettbooks application. It loads configuration from CLI flags and
// environment variables, validates required fields, and provides sensible
// defaults.
//
// CLI flags control which services are mocked (--no-s3, --test).
// Environment variables provide secrets and service configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smillett/millettbooks/internal/ratelimit"
)

const defaultS3Region = "auto"

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr   string
	BaseURL      string
	TemplatesDir string

	// Database
	DataDir string // Directory holding catalog.db

	// Sessions
	SessionDuration    time.Duration // Lifetime of an ordinary session
	RememberedDuration time.Duration // Lifetime with "remember me" checked

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Mock service flags (controlled by CLI flags, not env vars)
	NoS3 bool // If true, use in-memory S3 for cover images (--no-s3)

	// S3 cover storage (uses AWS_ env vars)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL (custom)
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
// This registers and parses --no-s3, --test, and --addr.
func ParseFlags() (noS3 bool, addr string) {
	var testMode bool
	flag.BoolVar(&noS3, "no-s3", false, "Use mock S3 storage for cover images (in-memory)")
	flag.BoolVar(&testMode, "test", false, "Shorthand for --no-s3")
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()

	if testMode {
		noS3 = true
	}

	return noS3, addr
}

// LoadConfig loads configuration from environment variables and CLI flag
// values. The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(noS3 bool, addr string) (*Config, error) {
	cfg := &Config{}

	cfg.NoS3 = noS3

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	cfg.TemplatesDir = getEnvOrDefault("TEMPLATES_DIR", "./web/templates")

	// Database
	cfg.DataDir = getEnvOrDefault("DATA_DIR", "./data")

	// Sessions
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 12*time.Hour)
	cfg.RememberedDuration = parseDurationOrDefault("REMEMBERED_SESSION_DURATION", 30*24*time.Hour)

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		BrowseRPS:       parseFloat64OrDefault("RATE_LIMIT_BROWSE_RPS", ratelimit.DefaultConfig.BrowseRPS),
		BrowseBurst:     parseIntOrDefault("RATE_LIMIT_BROWSE_BURST", ratelimit.DefaultConfig.BrowseBurst),
		AuthRPS:         parseFloat64OrDefault("RATE_LIMIT_AUTH_RPS", ratelimit.DefaultConfig.AuthRPS),
		AuthBurst:       parseIntOrDefault("RATE_LIMIT_AUTH_BURST", ratelimit.DefaultConfig.AuthBurst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", time.Hour),
	}

	// S3 cover storage
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPublicURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_URL"))
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// When mocks are NOT active for a service, the corresponding secrets are required.
func (c *Config) Validate() error {
	var errs []string

	// S3: require credentials unless --no-s3
	if !c.NoS3 {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required (set env var or use --no-s3)")
		}
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required (set env var or use --no-s3)")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required (set env var or use --no-s3)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required (set env var or use --no-s3)")
		}
	}

	if c.DataDir == "" {
		errs = append(errs, "DATA_DIR must not be empty")
	}

	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}
	if c.RememberedDuration < c.SessionDuration {
		errs = append(errs, "REMEMBERED_SESSION_DURATION must be at least SESSION_DURATION")
	}

	if c.RateLimitConfig.BrowseRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_BROWSE_RPS must be positive")
	}
	if c.RateLimitConfig.BrowseBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_BROWSE_BURST must be positive")
	}
	if c.RateLimitConfig.AuthRPS <= 0 {
		errs = append(errs, "RATE_LIMIT_AUTH_RPS must be positive")
	}
	if c.RateLimitConfig.AuthBurst <= 0 {
		errs = append(errs, "RATE_LIMIT_AUTH_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// IsProduction returns true if all mock services are disabled.
func (c *Config) IsProduction() bool {
	return !c.NoS3
}

// RequireSecureCookies returns true if secure cookies should be required.
// Returns false for localhost development URLs.
func (c *Config) RequireSecureCookies() bool {
	return !strings.HasPrefix(c.BaseURL, "http://localhost") &&
		!strings.HasPrefix(c.BaseURL, "http://127.0.0.1")
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "millettbooks server starting...")

	if c.NoS3 {
		fmt.Fprintln(os.Stderr, "  Covers:  Mock S3 (--no-s3)")
	} else {
		fmt.Fprintf(os.Stderr, "  Covers:  S3 (real, endpoint: %s)\n", c.AWSEndpointS3)
	}

	fmt.Fprintf(os.Stderr, "  Data:    %s\n", c.DataDir)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when the application should fail fast on bad config.
func MustLoadConfig(noS3 bool, addr string) *Config {
	cfg, err := LoadConfig(noS3, addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
