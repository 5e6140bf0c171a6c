// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package services

import (
	"context"
	"time"

	"github.com/watchgate/watchgate/internal/logging"
)

// Collector is the cache maintenance surface, implemented by
// *cachestore.BadgerStore.
type Collector interface {
	RunGC() error
}

// CacheGCService periodically reclaims space from the on-disk cache. The
// in-memory backend needs no maintenance, so the service is only wired when
// the cache is disk-backed.
type CacheGCService struct {
	collector Collector
	tick      time.Duration
}

// NewCacheGCService creates the periodic cache maintenance loop.
func NewCacheGCService(collector Collector, tick time.Duration) *CacheGCService {
	if tick <= 0 {
		tick = 10 * time.Minute
	}
	return &CacheGCService{collector: collector, tick: tick}
}

// Serve implements suture.Service. GC failures are logged, not returned; a
// missed round is harmless and the next tick retries.
func (s *CacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.collector.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Cache garbage collection failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *CacheGCService) String() string {
	return "cache-gc"
}
