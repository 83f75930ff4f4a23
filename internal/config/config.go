// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// sync engine: stream subscription, cache policy, bot generation, the
// operational HTTP surface, logging, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// StreamConfig defines the event-stream subscription settings.
type StreamConfig struct {
	URL             string        // STREAM_URL (ws:// or wss://)
	EventsPerSecond float64       // STREAM_EVENTS_PER_SECOND dispatch budget
	ReconnectBase   time.Duration // STREAM_RECONNECT_BASE backoff base
	ReconnectMax    time.Duration // STREAM_RECONNECT_MAX backoff cap
	MaxAttempts     int           // STREAM_RECONNECT_MAX_ATTEMPTS (0 = unlimited)
}

// BotConfig defines the generative-responder settings.
type BotConfig struct {
	Enabled      bool    // BOT_ENABLED
	UserID       string  // BOT_USER_ID identity replies are persisted under
	APIURL       string  // BOT_API_URL chat-completions endpoint
	APIKey       string  // BOT_API_KEY
	Model        string  // BOT_MODEL
	Temperature  float64 // BOT_TEMPERATURE
	MaxTokens    int     // BOT_MAX_TOKENS
	HistoryLimit int     // BOT_HISTORY_LIMIT trailing context window
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
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

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// API
	APIBasePath string // base path for API routes

	// Engine
	DBPath          string        // SQLite path (cache store + reference backend)
	CacheTTL        time.Duration // advisory cache expiry
	ColdLoadTimeout time.Duration // hard timeout for the empty-cache first load

	// Stream / Bot
	Stream StreamConfig
	Bot    BotConfig

	// Rate limiting (HTTP surface)
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

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// API
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Engine
		DBPath:          getenv("DB_PATH", "sync.db"),
		CacheTTL:        getdur("CACHE_TTL", 5*time.Minute),
		ColdLoadTimeout: getdur("COLD_LOAD_TIMEOUT", 15*time.Second),

		// Stream
		Stream: StreamConfig{
			URL:             getenv("STREAM_URL", ""),
			EventsPerSecond: getfloat("STREAM_EVENTS_PER_SECOND", 10),
			ReconnectBase:   getdur("STREAM_RECONNECT_BASE", time.Second),
			ReconnectMax:    getdur("STREAM_RECONNECT_MAX", 30*time.Second),
			MaxAttempts:     getint("STREAM_RECONNECT_MAX_ATTEMPTS", 0),
		},

		// Bot
		Bot: BotConfig{
			Enabled:      getbool("BOT_ENABLED", true),
			UserID:       getenv("BOT_USER_ID", "jelly"),
			APIURL:       getenv("BOT_API_URL", "https://api.moonshot.cn/v1/chat/completions"),
			APIKey:       getenv("BOT_API_KEY", ""),
			Model:        getenv("BOT_MODEL", "moonshot-v1-8k"),
			Temperature:  getfloat("BOT_TEMPERATURE", 0.7),
			MaxTokens:    getint("BOT_MAX_TOKENS", 500),
			HistoryLimit: getint("BOT_HISTORY_LIMIT", 10),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "jellyspace-sync"),
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
	if cfg.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.ColdLoadTimeout <= 0 {
		return cfg, errors.New("COLD_LOAD_TIMEOUT must be > 0")
	}
	if cfg.Stream.EventsPerSecond <= 0 {
		return cfg, errors.New("STREAM_EVENTS_PER_SECOND must be > 0")
	}
	if cfg.Stream.ReconnectBase <= 0 || cfg.Stream.ReconnectMax < cfg.Stream.ReconnectBase {
		return cfg, errors.New("STREAM_RECONNECT_BASE/MAX must be positive with MAX >= BASE")
	}
	if cfg.Stream.MaxAttempts < 0 {
		return cfg, errors.New("STREAM_RECONNECT_MAX_ATTEMPTS must be >= 0")
	}
	if cfg.Bot.HistoryLimit < 1 {
		return cfg, errors.New("BOT_HISTORY_LIMIT must be >= 1")
	}
	if cfg.Bot.Temperature < 0 || cfg.Bot.Temperature > 2 {
		return cfg, errors.New("BOT_TEMPERATURE must be in [0,2]")
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
