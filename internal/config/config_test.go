package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("want default port 8080, got %q", cfg.Port)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("want 5m cache TTL, got %v", cfg.CacheTTL)
	}
	if cfg.ColdLoadTimeout != 15*time.Second {
		t.Fatalf("want 15s cold-load timeout, got %v", cfg.ColdLoadTimeout)
	}
	if cfg.Stream.EventsPerSecond != 10 {
		t.Fatalf("want 10 events/s, got %v", cfg.Stream.EventsPerSecond)
	}
	if cfg.Bot.HistoryLimit != 10 {
		t.Fatalf("want history limit 10, got %d", cfg.Bot.HistoryLimit)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("want /api/v1 base path, got %q", cfg.APIBasePath)
	}
}

func TestLoad_NormalizesWarnAndGinMode(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("GIN_MODE", "bogus")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("want warn, got %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("want release fallback, got %q", cfg.GinMode)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"LOG_LEVEL":                "verbose",
		"CACHE_TTL":                "-1s",
		"COLD_LOAD_TIMEOUT":        "0s",
		"STREAM_EVENTS_PER_SECOND": "0",
		"BOT_HISTORY_LIMIT":        "0",
		"RATE_BURST":               "0",
		"OTEL_TRACES_SAMPLER_ARG":  "1.5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s must fail validation", key, val)
			}
		})
	}
}

func TestLoad_ReconnectWindow(t *testing.T) {
	t.Setenv("STREAM_RECONNECT_BASE", "10s")
	t.Setenv("STREAM_RECONNECT_MAX", "5s")
	if _, err := Load(); err == nil {
		t.Fatal("MAX < BASE must fail validation")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":        "/",
		"api":     "/api",
		"/api/":   "/api",
		"/api/v2": "/api/v2",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
