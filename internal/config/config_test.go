// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package config

import (
	"errors"
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "hours", input: "12h", expected: 12 * time.Hour},
		{name: "single hour", input: "1h", expected: time.Hour},
		{name: "days", input: "7d", expected: 7 * 24 * time.Hour},
		{name: "single day", input: "1d", expected: 24 * time.Hour},
		{name: "invalid unit minutes", input: "30m", wantErr: true},
		{name: "invalid unit seconds", input: "10s", wantErr: true},
		{name: "missing unit", input: "24", wantErr: true},
		{name: "missing number", input: "h", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "zero", input: "0h", wantErr: true},
		{name: "negative", input: "-1d", wantErr: true},
		{name: "garbage", input: "abch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInterval(%q) = %v, expected error", tt.input, got)
				}
				var invalidErr *ErrInvalidInterval
				if !errors.As(err, &invalidErr) {
					t.Errorf("expected *ErrInvalidInterval, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if got := cfg.CacheTTL(); got != 24*time.Hour {
		t.Errorf("default cache TTL = %v, want 24h", got)
	}
	if got := cfg.HistoryRefreshInterval(); got != 24*time.Hour {
		t.Errorf("default history refresh interval = %v, want 24h", got)
	}
}

func TestValidateRejectsBadIntervals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad cache ttl unit",
			mutate: func(c *Config) { c.Trakt.CacheTTL = "30m" },
		},
		{
			name:   "bad refresh interval unit",
			mutate: func(c *Config) { c.Trakt.HistoryRefreshInterval = "1w" },
		},
		{
			name:   "empty refresh interval",
			mutate: func(c *Config) { c.Trakt.HistoryRefreshInterval = "" },
		},
		{
			name:   "zero read concurrency",
			mutate: func(c *Config) { c.Trakt.RateLimit.Read.MaxConcurrent = 0 },
		},
		{
			name:   "negative write interval",
			mutate: func(c *Config) { c.Trakt.RateLimit.Write.MinInterval = -time.Second },
		},
		{
			name:   "unknown cache backend",
			mutate: func(c *Config) { c.Cache.Backend = "redis" },
		},
		{
			name:   "badger backend without path",
			mutate: func(c *Config) { c.Cache.Path = "" },
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
		},
		{
			name:   "empty base url",
			mutate: func(c *Config) { c.Trakt.BaseURL = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env      string
		expected string
	}{
		{"TRAKT_CLIENT_ID", "trakt.client_id"},
		{"WATCHGATE_TRAKT_CLIENT_ID", "trakt.client_id"},
		{"WATCHGATE_HTTP_PORT", "server.port"},
		{"TRAKT_CACHE_DURATION", "trakt.cache_ttl"},
		{"TRAKT_HISTORY_FETCH_INTERVAL", "trakt.history_refresh_interval"},
		{"FANART_API_KEY", "fanart.api_key"},
		{"DUCKDB_PATH", "database.path"},
		{"WATCHED_EMOJI", "sync.watched_marker"},
		{"HTTP_PORT", "server.port"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.expected)
			}
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("WATCHGATE_TRAKT_CLIENT_ID", "abc123")
	t.Setenv("TRAKT_CACHE_DURATION", "6h")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Trakt.ClientID != "abc123" {
		t.Errorf("client id = %q, want abc123", cfg.Trakt.ClientID)
	}
	if got := cfg.CacheTTL(); got != 6*time.Hour {
		t.Errorf("cache TTL = %v, want 6h", got)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadRejectsInvalidIntervalUnit(t *testing.T) {
	t.Setenv("TRAKT_HISTORY_FETCH_INTERVAL", "15m")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail on invalid interval unit")
	}
}
