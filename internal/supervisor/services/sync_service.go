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

// Syncer is the background sync surface, implemented by *history.Engine.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// SyncService periodically syncs every linked user's watched history. The
// per-user interval gate lives in the engine, so a short tick here only
// controls how quickly an expired gate is noticed.
type SyncService struct {
	syncer Syncer
	tick   time.Duration
}

// NewSyncService creates the periodic sync loop.
func NewSyncService(syncer Syncer, tick time.Duration) *SyncService {
	if tick <= 0 {
		tick = time.Hour
	}
	return &SyncService{syncer: syncer, tick: tick}
}

// Serve implements suture.Service. Sync errors are logged, not returned:
// returning would make the supervisor restart the loop, and the next tick
// retries anyway.
func (s *SyncService) Serve(ctx context.Context) error {
	// One pass at startup so a fresh install does not wait a full tick.
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SyncService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.syncer.SyncAll(ctx); err != nil {
		logging.Warn().Err(err).Msg("Background history sync pass had failures")
	}
}

// String identifies the service in supervisor logs.
func (s *SyncService) String() string {
	return "history-sync"
}
