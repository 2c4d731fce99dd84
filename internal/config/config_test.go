package config

import (
	"strings"
	"testing"
	"time"

	"github.com/smillett/millettbooks/internal/ratelimit"
)

func validTestConfig() Config {
	return Config{
		NoS3:               true,
		DataDir:            "./data",
		SessionDuration:    12 * time.Hour,
		RememberedDuration: 30 * 24 * time.Hour,
		RateLimitConfig:    ratelimit.DefaultConfig,
	}
}

func TestValidate_TestModeMinimalConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid test-mode config, got error: %v", err)
	}
}

func TestValidate_RequiresS3SecretsWhenNotMocked(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoS3 = false

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when real S3 is enabled without credentials")
	}
	msg := err.Error()
	for _, expected := range []string{
		"AWS_ENDPOINT_URL_S3",
		"BUCKET_NAME",
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func TestValidate_RejectsBadSessionDurations(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	cfg.SessionDuration = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero session duration")
	}

	cfg = validTestConfig()
	cfg.RememberedDuration = cfg.SessionDuration - time.Hour
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when remembered duration is shorter than the default")
	}
}

func TestValidate_RejectsBadRateLimits(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.RateLimitConfig.AuthRPS = 0
	cfg.RateLimitConfig.BrowseBurst = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for bad rate limits")
	}
	if !strings.Contains(err.Error(), "RATE_LIMIT_AUTH_RPS") {
		t.Fatalf("expected error to mention RATE_LIMIT_AUTH_RPS, got: %v", err)
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestRequireSecureCookies(t *testing.T) {
	t.Parallel()
	cases := []struct {
		baseURL string
		want    bool
	}{
		{"http://localhost:8080", false},
		{"http://127.0.0.1:8080", false},
		{"https://millettbooks.example", true},
		{"http://millettbooks.example", true},
	}
	for _, tc := range cases {
		cfg := validTestConfig()
		cfg.BaseURL = tc.baseURL
		if got := cfg.RequireSecureCookies(); got != tc.want {
			t.Fatalf("RequireSecureCookies(%q) = %v, want %v", tc.baseURL, got, tc.want)
		}
	}
}
