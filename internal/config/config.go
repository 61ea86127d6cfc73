// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes sync-layer settings
// such as credential verification timeouts, cache freshness windows, polling
// cadence, retry policy, database paths, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the local API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-study-sync")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SessionConfig bounds the credential verification and sign-out paths.
type SessionConfig struct {
	// VerifyTimeout is the hard bound on the initial session check. The
	// underlying call keeps running past the deadline and may still update
	// the credential cache late.
	VerifyTimeout time.Duration
	// SignOutTimeout is the shorter bound after which local state is cleared
	// regardless of whether the remote sign-out completed.
	SignOutTimeout time.Duration
	// StoragePrefix namespaces the durable local-storage keys per deployment.
	StoragePrefix string
	// StoragePath is the directory backing durable local storage.
	StoragePath string
}

// CacheConfig tunes the entity cache freshness and garbage collection.
type CacheConfig struct {
	DocumentListTTL time.Duration // short window; lists refetch on view re-entry
	DocumentTTL     time.Duration
	SummaryTTL      time.Duration // only applies to terminal summaries
	FlashcardTTL    time.Duration
	GCWindow        time.Duration // entry evicted after this much inactivity
	GCInterval      time.Duration
}

// PollConfig tunes the processing-status poller.
type PollConfig struct {
	// InitialDelay is the first re-check delay when no summary row exists yet.
	InitialDelay time.Duration
	// Interval is the fixed re-check cadence while the job is in flight.
	Interval time.Duration
}

// RetryConfig tunes the read-failure retry and auth-recovery policy.
type RetryConfig struct {
	MaxAttempts int           // non-auth retries after the first failure
	BaseDelay   time.Duration // first backoff step, doubled per attempt
	MaxDelay    time.Duration // backoff ceiling
	AuthDelay   time.Duration // single, longer delay after an auth failure
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath     string // SQLite path for the entity store
	AIEndpoint string // base URL of the AI processing trigger
	IDEndpoint string // base URL of the identity service

	// Core subsystems
	Session SessionConfig
	Cache   CacheConfig
	Poll    PollConfig
	Retry   RetryConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:     getenv("DB_PATH", "study.db"),
		AIEndpoint: getenv("AI_ENDPOINT", "http://localhost:9090"),
		IDEndpoint: getenv("IDENTITY_ENDPOINT", "http://localhost:9091"),

		Session: SessionConfig{
			VerifyTimeout:  getdur("VERIFY_TIMEOUT", 4*time.Second),
			SignOutTimeout: getdur("SIGNOUT_TIMEOUT", 2*time.Second),
			StoragePrefix:  getenv("STORAGE_PREFIX", "studysync"),
			StoragePath:    getenv("STORAGE_PATH", "data"),
		},

		Cache: CacheConfig{
			DocumentListTTL: getdur("CACHE_DOCLIST_TTL", 15*time.Second),
			DocumentTTL:     getdur("CACHE_DOC_TTL", 60*time.Second),
			SummaryTTL:      getdur("CACHE_SUMMARY_TTL", 5*time.Minute),
			FlashcardTTL:    getdur("CACHE_FLASHCARD_TTL", 5*time.Minute),
			GCWindow:        getdur("CACHE_GC_WINDOW", 10*time.Minute),
			GCInterval:      getdur("CACHE_GC_INTERVAL", time.Minute),
		},

		Poll: PollConfig{
			InitialDelay: getdur("POLL_INITIAL_DELAY", 500*time.Millisecond),
			Interval:     getdur("POLL_INTERVAL", 1500*time.Millisecond),
		},

		Retry: RetryConfig{
			MaxAttempts: getint("RETRY_MAX_ATTEMPTS", 2),
			BaseDelay:   getdur("RETRY_BASE_DELAY", 250*time.Millisecond),
			MaxDelay:    getdur("RETRY_MAX_DELAY", 2*time.Second),
			AuthDelay:   getdur("RETRY_AUTH_DELAY", 3*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 25.0),
		RateBurst: getint("RATE_BURST", 50),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-study-sync"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Session.StoragePath) == "" {
		return cfg, errors.New("STORAGE_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Session.StoragePrefix) == "" {
		return cfg, errors.New("STORAGE_PREFIX must not be empty")
	}
	if cfg.Session.VerifyTimeout <= 0 || cfg.Session.SignOutTimeout <= 0 {
		return cfg, errors.New("session timeouts must be positive durations")
	}
	if cfg.Session.SignOutTimeout > cfg.Session.VerifyTimeout {
		return cfg, errors.New("SIGNOUT_TIMEOUT must not exceed VERIFY_TIMEOUT")
	}
	if cfg.Poll.InitialDelay <= 0 || cfg.Poll.Interval <= 0 {
		return cfg, errors.New("poll delays must be positive durations")
	}
	if cfg.Poll.Interval >= 2*time.Second {
		return cfg, errors.New("POLL_INTERVAL must stay below 2s while a job is in flight")
	}
	if cfg.Cache.GCWindow <= 0 || cfg.Cache.GCInterval <= 0 {
		return cfg, errors.New("cache GC settings must be positive durations")
	}
	if cfg.Retry.MaxAttempts < 0 {
		return cfg, errors.New("RETRY_MAX_ATTEMPTS must be >= 0")
	}
	if cfg.Retry.BaseDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return cfg, errors.New("RETRY_BASE_DELAY must be positive and <= RETRY_MAX_DELAY")
	}
	if cfg.Retry.AuthDelay <= cfg.Retry.BaseDelay {
		return cfg, errors.New("RETRY_AUTH_DELAY must exceed RETRY_BASE_DELAY")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
