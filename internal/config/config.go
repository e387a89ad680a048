package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	DBAutoMigrate      bool
	CORSAllowedOrigins []string

	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
	AdminPassword     string
	AdminTokenTTL     time.Duration

	CurrencySymbol  string
	CatalogCacheTTL time.Duration
	PricingCacheTTL time.Duration
	QuoteSessionTTL time.Duration
	IdempotencyTTL  time.Duration

	ImportMaxBytes   int64
	ImportLockTTL    time.Duration
	LockRetryBackoff time.Duration

	RateLimitQuotePerMinute int
	RateLimitLoginPerMinute int
	SecurityHeadersEnabled  bool
	WorkerConcurrency       int

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from the environment, after merging an optional
// .env file. Every malformed value is reported, not only the first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	in := reader{k: k}

	cfg := &Config{
		AppEnv:             in.str("APP_ENV", "development"),
		Port:               in.str("PORT", "8080"),
		DatabaseURL:        in.required("DATABASE_URL"),
		RedisURL:           in.required("REDIS_URL"),
		DBAutoMigrate:      in.flag("DB_AUTO_MIGRATE", false),
		CORSAllowedOrigins: in.list("CORS_ALLOWED_ORIGINS"),

		JWTSecret:         in.required("JWT_SECRET"),
		AdminUsername:     in.str("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: in.str("ADMIN_PASSWORD_HASH", ""),
		AdminPassword:     k.String("ADMIN_PASSWORD"),
		AdminTokenTTL:     in.duration("ADMIN_TOKEN_TTL", 30*time.Minute),

		CurrencySymbol:  in.str("CURRENCY_SYMBOL", "$"),
		CatalogCacheTTL: in.duration("CATALOG_CACHE_TTL", time.Minute),
		PricingCacheTTL: in.duration("PRICING_CACHE_TTL", 30*time.Second),
		QuoteSessionTTL: in.duration("QUOTE_SESSION_TTL", 2*time.Hour),
		IdempotencyTTL:  in.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		ImportMaxBytes:   int64(in.positive("IMPORT_MAX_BYTES", 5<<20)),
		ImportLockTTL:    in.duration("IMPORT_LOCK_TTL", 2*time.Minute),
		LockRetryBackoff: in.duration("LOCK_RETRY_BACKOFF", 50*time.Millisecond),

		RateLimitQuotePerMinute: in.integer("RATE_LIMIT_QUOTE_PER_MINUTE", 120),
		RateLimitLoginPerMinute: in.integer("RATE_LIMIT_LOGIN_PER_MINUTE", 10),
		SecurityHeadersEnabled:  in.flag("SECURITY_HEADERS_ENABLED", true),
		WorkerConcurrency:       in.positive("WORKER_CONCURRENCY", 2),

		LogFormat:        in.str("OBS_LOG_FORMAT", "json"),
		LogLevel:         in.str("OBS_LOG_LEVEL", "info"),
		MetricsNamespace: in.str("OBS_METRICS_NAMESPACE", "pcquote"),
		MetricsBuckets:   in.str("OBS_METRICS_BUCKETS_MS", ""),
		TracingEnabled:   in.flag("OBS_TRACING_ENABLED", false),
		OTLPEndpoint:     in.str("OBS_OTLP_ENDPOINT", ""),
		TracingSampling:  in.ratio("OBS_TRACING_SAMPLE_RATIO", 1),
		PprofEnabled:     in.flag("SECURE_PPROF_ENABLED", false),
		PprofUser:        k.String("SECURE_PPROF_BASIC_AUTH_USER"),
		PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
	}
	if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		in.fail("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required")
	}
	if cfg.IsProduction() && cfg.AdminPasswordHash == "" {
		in.fail("ADMIN_PASSWORD_HASH is required in production; ADMIN_PASSWORD is for local runs")
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// HTTPAddr returns the listen address; PORT may be "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	return ":" + strings.TrimPrefix(port, ":")
}

// reader wraps koanf lookups with defaults, recording malformed values.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) fail(format string, args ...any) {
	r.errs = append(r.errs, fmt.Errorf(format, args...))
}

func (r *reader) raw(key string) string {
	return strings.TrimSpace(r.k.String(key))
}

func (r *reader) str(key, fallback string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return fallback
}

func (r *reader) required(key string) string {
	v := r.raw(key)
	if v == "" {
		r.fail("%s is required", key)
	}
	return v
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail("%s: %q is not a positive duration", key, v)
		return fallback
	}
	return d
}

func (r *reader) integer(key string, fallback int) int {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail("%s: %q is not an integer", key, v)
		return fallback
	}
	return n
}

func (r *reader) positive(key string, fallback int) int {
	n := r.integer(key, fallback)
	if n <= 0 {
		r.fail("%s must be positive", key)
	}
	return n
}

func (r *reader) ratio(key string, fallback float64) float64 {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		r.fail("%s: %q is not a ratio between 0 and 1", key, v)
		return fallback
	}
	return f
}

func (r *reader) flag(key string, fallback bool) bool {
	switch v := strings.ToLower(r.raw(key)); v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		r.fail("%s: %q is not a boolean", key, v)
		return fallback
	}
}

// MustLoad is Load for entrypoints that cannot run without configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests runs Load with env applied on top of the process environment
// and restores the previous values afterwards. Empty values unset the key.
func LoadForTests(env map[string]string) (*Config, error) {
	previous := make(map[string]*string, len(env))
	for key, value := range env {
		if old, ok := os.LookupEnv(key); ok {
			previous[key] = &old
		} else {
			previous[key] = nil
		}
		if err := setEnv(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()

	var restore []error
	for key, old := range previous {
		value := ""
		if old != nil {
			value = *old
		}
		if rerr := setEnv(key, value); rerr != nil {
			restore = append(restore, fmt.Errorf("restore %s: %w", key, rerr))
		}
	}
	if err != nil {
		return nil, err
	}
	return cfg, errors.Join(restore...)
}

func setEnv(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}
