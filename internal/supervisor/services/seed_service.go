// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package services

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/watchgate/watchgate/internal/logging"
)

// Seeder seeds the genre reference catalog, implemented by the API server's
// seeding helper.
type Seeder interface {
	SeedGenres(ctx context.Context) error
}

// SeedService runs the genre seed once at startup. Seeding is idempotent,
// so a retry after upstream failure is safe; once it succeeds the service
// terminates and the supervisor does not restart it.
type SeedService struct {
	seeder     Seeder
	retryDelay time.Duration
}

// NewSeedService creates the one-shot seeder.
func NewSeedService(seeder Seeder, retryDelay time.Duration) *SeedService {
	if retryDelay <= 0 {
		retryDelay = 5 * time.Minute
	}
	return &SeedService{seeder: seeder, retryDelay: retryDelay}
}

// Serve implements suture.Service.
func (s *SeedService) Serve(ctx context.Context) error {
	if err := s.seeder.SeedGenres(ctx); err != nil {
		logging.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("Genre seed failed, will retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
			return err // supervisor restarts us for the retry
		}
	}

	logging.Info().Msg("Genre catalog seeded")
	return suture.ErrDoNotRestart
}

// String identifies the service in supervisor logs.
func (s *SeedService) String() string {
	return "genre-seed"
}
