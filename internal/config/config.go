package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CSRF      CSRFConfig
	Login     LoginConfig
	Telemetry TelemetryConfig
	Guard     GuardConfig
	Bootstrap BootstrapConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BaseURL is the externally visible origin of the app.
	BaseURL string
	// BaseURLFallback is set by Validate when BaseURL had to be derived from the port.
	BaseURLFallback bool

	// StoreBackend selects persistence: "postgres" (Postgres + Redis) or "memory".
	StoreBackend string

	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured.
	// Empty means the client IP is always the socket peer.
	TrustedProxies []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// Leeway is the clock skew tolerated on exp/iat. Zero means exp must be strictly in the future.
	Leeway time.Duration
}

type CSRFConfig struct {
	TTL time.Duration
}

type LoginConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

type TelemetryConfig struct {
	// Provider is one of: none, prometheus.
	Provider string
}

type GuardConfig struct {
	// PolicyFile is an optional YAML file overriding the default route policy.
	PolicyFile string
}

type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	TelemetryNone       = "none"
	TelemetryPrometheus = "prometheus"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")
	c.App.StoreBackend = strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	c.App.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL, parseErrs = appendDurationErr(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = appendDurationErr(parseErrs, "JWT_REFRESH_TTL")
	c.Auth.Leeway, parseErrs = appendDurationErr(parseErrs, "JWT_LEEWAY")

	c.CSRF.TTL, parseErrs = appendDurationErr(parseErrs, "CSRF_TTL")

	{
		n, err := optionalInt("LOGIN_RATE_LIMIT", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Login.RateLimit = n
	}
	c.Login.RateWindow, parseErrs = appendDurationErr(parseErrs, "LOGIN_RATE_WINDOW")

	c.Telemetry.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("TELEMETRY_PROVIDER")))
	c.Guard.PolicyFile = strings.TrimSpace(os.Getenv("GUARD_POLICY_FILE"))

	c.Bootstrap.AdminEmail = strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))
	c.Bootstrap.AdminPassword = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		// Production should always set this; main logs the fallback as critical.
		c.App.BaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		c.App.BaseURLFallback = c.IsProduction()
	}

	for _, p := range c.App.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}

	if c.App.StoreBackend == "" {
		c.App.StoreBackend = StoreBackendPostgres
	}
	switch c.App.StoreBackend {
	case StoreBackendPostgres:
		errs = append(errs, c.validateStores()...)
	case StoreBackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of postgres, memory, got %q", c.App.StoreBackend))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	if c.Auth.Leeway < 0 {
		errs = append(errs, errors.New("JWT_LEEWAY must not be negative"))
	}

	if c.CSRF.TTL <= 0 {
		c.CSRF.TTL = time.Hour
	}

	if c.Login.RateLimit <= 0 {
		c.Login.RateLimit = 10
	}
	if c.Login.RateWindow <= 0 {
		c.Login.RateWindow = time.Minute
	}

	if c.Telemetry.Provider == "" {
		c.Telemetry.Provider = TelemetryNone
	}
	if c.Telemetry.Provider != TelemetryNone && c.Telemetry.Provider != TelemetryPrometheus {
		errs = append(errs, fmt.Errorf("TELEMETRY_PROVIDER must be one of none, prometheus, got %q", c.Telemetry.Provider))
	}

	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}

	return joinErrors(errs)
}

func (c *Config) validateStores() []error {
	var errs []error

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) UsesMemoryStores() bool {
	return c.App.StoreBackend == StoreBackendMemory
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendDurationErr(errs []error, key string) (time.Duration, []error) {
	d, err := optionalDuration(key)
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}

// splitList parses a comma separated env value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
