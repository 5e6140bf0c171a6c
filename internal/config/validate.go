// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package config

import (
	"fmt"
)

// Validate checks the configuration for fatal errors. It is called once at
// startup; a non-nil error must abort the process.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateTrakt,
		c.validateRateLimits,
		c.validateCache,
		c.validateServer,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateTrakt() error {
	if c.Trakt.BaseURL == "" {
		return fmt.Errorf("trakt.base_url must not be empty")
	}

	if _, err := ParseInterval(c.Trakt.CacheTTL); err != nil {
		return fmt.Errorf("trakt.cache_ttl: %w", err)
	}
	if _, err := ParseInterval(c.Trakt.HistoryRefreshInterval); err != nil {
		return fmt.Errorf("trakt.history_refresh_interval: %w", err)
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	lanes := map[string]LaneConfig{
		"trakt.rate_limit.read":  c.Trakt.RateLimit.Read,
		"trakt.rate_limit.write": c.Trakt.RateLimit.Write,
	}

	for name, lane := range lanes {
		if lane.MaxConcurrent < 1 {
			return fmt.Errorf("%s.max_concurrent must be >= 1, got %d", name, lane.MaxConcurrent)
		}
		if lane.MinInterval < 0 {
			return fmt.Errorf("%s.min_interval must not be negative, got %s", name, lane.MinInterval)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "badger":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path must be set for the badger backend")
		}
	case "memory":
		// No path needed.
	default:
		return fmt.Errorf("cache.backend must be \"badger\" or \"memory\", got %q", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.RateLimitReqs < 0 {
		return fmt.Errorf("security.rate_limit_reqs must not be negative, got %d", c.Security.RateLimitReqs)
	}
	return nil
}
