package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "sessionguard"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth = AuthConfig{JWTSecret: strings.Repeat("s", 32), JWTIssuer: "iss", JWTAudience: "aud"}
	c.App.BaseURL = "https://app.example.com"

	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected DB_SSLMODE error, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != time.Hour || c.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("unexpected ttl defaults: %v %v", c.Auth.AccessTokenTTL, c.Auth.RefreshTokenTTL)
	}
	if c.CSRF.TTL != time.Hour {
		t.Fatalf("expected 1h csrf ttl, got %v", c.CSRF.TTL)
	}
	if c.Telemetry.Provider != TelemetryNone {
		t.Fatalf("expected telemetry none, got %q", c.Telemetry.Provider)
	}
	if c.App.BaseURL != "http://localhost:8080" || c.App.BaseURLFallback {
		t.Fatalf("unexpected base url handling: %q fallback=%v", c.App.BaseURL, c.App.BaseURLFallback)
	}
}

func TestValidate_RefreshTTLMustExceedAccessTTL(t *testing.T) {
	c := validLocal()
	c.Auth.AccessTokenTTL = time.Hour
	c.Auth.RefreshTokenTTL = time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected ttl ordering error")
	}
}

func TestValidate_MemoryBackendSkipsStores(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "dev", Port: 8080, StoreBackend: StoreBackendMemory},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ProductionBaseURLFallback(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth = AuthConfig{JWTSecret: strings.Repeat("s", 32), JWTIssuer: "iss", JWTAudience: "aud"}

	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !c.App.BaseURLFallback || c.App.BaseURL != "http://localhost:8080" {
		t.Fatalf("expected localhost fallback flagged, got %q %v", c.App.BaseURL, c.App.BaseURLFallback)
	}
}

func TestValidate_RejectsUnknownTelemetryProvider(t *testing.T) {
	c := validLocal()
	c.Telemetry.Provider = "sentry"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected telemetry provider error")
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("SESSIONGUARD_URL", "")
	t.Setenv("REFRESH_TIMEOUT", "")
	t.Setenv("REFRESH_MARGIN", "")
	t.Setenv("SESSIONGUARD_TOKEN_FILE", "/tmp/tokens.json")

	c, err := LoadClient()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.BaseURL != "http://localhost:8080" || c.RefreshTimeout != 10*time.Second || c.TokenFile != "/tmp/tokens.json" {
		t.Fatalf("unexpected client config: %+v", c)
	}
}

func TestLoadClient_RejectsBadDuration(t *testing.T) {
	t.Setenv("REFRESH_TIMEOUT", "soon")
	if _, err := LoadClient(); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestValidate_TrustedProxies(t *testing.T) {
	c := validLocal()
	c.App.TrustedProxies = []string{"10.0.0.1", "192.168.0.0/16", "::1"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c = validLocal()
	c.App.TrustedProxies = []string{"proxy.internal"}
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "TRUSTED_PROXIES") {
		t.Fatalf("expected TRUSTED_PROXIES error, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Fatalf("expected nil for empty value, got %v", got)
	}
	got := splitList(" 10.0.0.1, ,10.0.0.0/8 ")
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.0/8" {
		t.Fatalf("unexpected split: %v", got)
	}
}
