// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package config provides layered configuration loading for Watchgate.
//
// Configuration is resolved in three layers with later layers taking priority:
//
//  1. Struct defaults (DefaultConfig)
//  2. Optional YAML config file (CONFIG_PATH or default search paths)
//  3. Environment variables (TRAKT_CLIENT_ID, CACHE_PATH, ...)
//
// Durations that follow the Trakt convention (cache TTL, history refresh
// interval) use the compact <integer><unit> form where unit is "h" or "d".
// A malformed value is a fatal startup error, never a per-call error.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for all Watchgate components.
type Config struct {
	Trakt    TraktConfig    `koanf:"trakt"`
	Fanart   FanartConfig   `koanf:"fanart"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TraktConfig holds remote service credentials and mediation settings.
type TraktConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	BaseURL      string `koanf:"base_url"`
	RedirectURI  string `koanf:"redirect_uri"`

	// CacheTTL is the default TTL for cached Trakt responses ("12h", "1d").
	CacheTTL string `koanf:"cache_ttl"`

	// HistoryRefreshInterval bounds how often a user's watch history is
	// re-fetched from Trakt ("24h", "1d").
	HistoryRefreshInterval string `koanf:"history_refresh_interval"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig carries separate budgets for read and write traffic.
// Trakt publishes different limits for GET and POST calls.
type RateLimitConfig struct {
	Read  LaneConfig `koanf:"read"`
	Write LaneConfig `koanf:"write"`
}

// LaneConfig is the budget for one queue lane.
type LaneConfig struct {
	// MaxConcurrent is the number of in-flight calls allowed at once.
	MaxConcurrent int `koanf:"max_concurrent"`

	// MinInterval is the minimum spacing between dispatched calls.
	MinInterval time.Duration `koanf:"min_interval"`
}

// FanartConfig holds Fanart.tv access settings for logo enrichment.
type FanartConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// CacheConfig selects and tunes the shared TTL response cache.
type CacheConfig struct {
	// Backend is "badger" (durable, production) or "memory" (tests, dev).
	Backend string `koanf:"backend"`

	// Path is the BadgerDB directory (badger backend only).
	Path string `koanf:"path"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
	// Threads caps DuckDB worker threads; 0 means one per CPU.
	Threads int `koanf:"threads"`
	// MaxMemory is the DuckDB memory ceiling, e.g. "1GB".
	MaxMemory string `koanf:"max_memory"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds inbound API protection settings.
type SecurityConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// SyncConfig tunes the background history sync service.
type SyncConfig struct {
	// Enabled starts the periodic sync service under the supervisor.
	Enabled bool `koanf:"enabled"`

	// Interval is the scheduler tick; the per-user refresh interval in
	// TraktConfig still gates actual network work.
	Interval time.Duration `koanf:"interval"`

	// WatchedMarker is prefixed to annotated catalog item names.
	WatchedMarker string `koanf:"watched_marker"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DefaultConfig returns a Config with all default values applied.
// These defaults are loaded first, then overridden by file and env layers.
func DefaultConfig() *Config {
	return &Config{
		Trakt: TraktConfig{
			ClientID:               "",
			ClientSecret:           "",
			BaseURL:                "https://api.trakt.tv",
			RedirectURI:            "",
			CacheTTL:               "1d",
			HistoryRefreshInterval: "24h",
			RateLimit: RateLimitConfig{
				// Trakt allows 1000 GET calls per 5 minutes; 300ms spacing
				// with a small concurrency window stays safely under that.
				Read: LaneConfig{
					MaxConcurrent: 5,
					MinInterval:   300 * time.Millisecond,
				},
				// POST calls are limited to 1 per second.
				Write: LaneConfig{
					MaxConcurrent: 1,
					MinInterval:   time.Second,
				},
			},
		},
		Fanart: FanartConfig{
			APIKey:  "",
			BaseURL: "https://webservice.fanart.tv/v3",
		},
		Cache: CacheConfig{
			Backend: "badger",
			Path:    "/data/cache",
		},
		Database: DatabaseConfig{
			Path:      "/data/watchgate.duckdb",
			MaxMemory: "1GB",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    7000,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Sync: SyncConfig{
			Enabled:       true,
			Interval:      time.Hour,
			WatchedMarker: "✔️",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// CacheTTL returns the parsed default response cache TTL.
// Call Validate first; this panics on a malformed value.
func (c *Config) CacheTTL() time.Duration {
	d, err := ParseInterval(c.Trakt.CacheTTL)
	if err != nil {
		panic(fmt.Sprintf("config not validated: %v", err))
	}
	return d
}

// HistoryRefreshInterval returns the parsed history refresh interval.
// Call Validate first; this panics on a malformed value.
func (c *Config) HistoryRefreshInterval() time.Duration {
	d, err := ParseInterval(c.Trakt.HistoryRefreshInterval)
	if err != nil {
		panic(fmt.Sprintf("config not validated: %v", err))
	}
	return d
}
