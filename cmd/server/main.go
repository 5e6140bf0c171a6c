// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package main is the entry point for the Watchgate server.
//
// Watchgate sits between media catalog frontends and the Trakt API. It
// mediates every remote call through a rate-limited queue, a shared TTL
// response cache, and a circuit breaker; manages per-user OAuth token
// pairs with transparent refresh; mirrors watched history into DuckDB;
// and annotates catalog feeds with each user's watch state.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file via Koanf v2
//  2. Database: DuckDB for token pairs, history mirror, and genres
//  3. Cache: BadgerDB (or in-memory) TTL store for Trakt responses
//  4. Trakt client: rate-limited queue + cache-aside + circuit breaker
//  5. Token manager: per-user OAuth refresh-and-retry
//  6. History engine: interval-gated watched-history mirroring
//  7. HTTP Server: Chi REST API under supervisor control
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (WATCHGATE_ prefix)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// Minimum viable configuration is the Trakt application credentials:
//
//	export WATCHGATE_TRAKT_CLIENT_ID=your-client-id
//	export WATCHGATE_TRAKT_CLIENT_SECRET=your-client-secret
//	export WATCHGATE_TRAKT_REDIRECT_URI=https://yourhost/api/v1/auth/trakt/callback
//	./watchgate
//
// Fanart.tv logo enrichment activates when an API key is present:
//
//	export WATCHGATE_FANART_API_KEY=your-fanart-key
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Drains the request queue and closes cache and database
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watchgate/watchgate/internal/api"
	"github.com/watchgate/watchgate/internal/cachestore"
	"github.com/watchgate/watchgate/internal/config"
	"github.com/watchgate/watchgate/internal/database"
	"github.com/watchgate/watchgate/internal/fanart"
	"github.com/watchgate/watchgate/internal/history"
	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/queue"
	"github.com/watchgate/watchgate/internal/supervisor"
	"github.com/watchgate/watchgate/internal/supervisor/services"
	"github.com/watchgate/watchgate/internal/tokens"
	"github.com/watchgate/watchgate/internal/trakt"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Watchgate with supervisor tree")
	logging.Info().
		Str("trakt_base_url", cfg.Trakt.BaseURL).
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	store, err := newCacheStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open response cache")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing response cache")
		}
	}()

	// One queue for the process; every Trakt call flows through it.
	q := queue.New(
		queue.LaneConfig{
			MaxConcurrent: cfg.Trakt.RateLimit.Read.MaxConcurrent,
			MinInterval:   cfg.Trakt.RateLimit.Read.MinInterval,
		},
		queue.LaneConfig{
			MaxConcurrent: cfg.Trakt.RateLimit.Write.MaxConcurrent,
			MinInterval:   cfg.Trakt.RateLimit.Write.MinInterval,
		},
	)
	defer q.Close()

	client := trakt.NewClient(trakt.Options{
		BaseURL:      cfg.Trakt.BaseURL,
		ClientID:     cfg.Trakt.ClientID,
		ClientSecret: cfg.Trakt.ClientSecret,
		RedirectURI:  cfg.Trakt.RedirectURI,
		CacheTTL:     cfg.CacheTTL(),
	}, q, store)

	tokenManager := tokens.NewManager(db, client)
	engine := history.NewEngine(db, tokenManager, cfg.HistoryRefreshInterval(), cfg.Sync.WatchedMarker)
	art := fanart.NewClient(cfg.Fanart.BaseURL, cfg.Fanart.APIKey)
	if cfg.Fanart.APIKey == "" {
		logging.Info().Msg("Fanart.tv API key not set, logo enrichment disabled")
	}

	server := api.NewServer(cfg, db, client, tokenManager, engine, art)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddSyncService(services.NewSeedService(server, 5*time.Minute))
	if badgerStore, ok := store.(*cachestore.BadgerStore); ok {
		tree.AddSyncService(services.NewCacheGCService(badgerStore, 10*time.Minute))
	}
	if cfg.Sync.Enabled {
		tree.AddSyncService(services.NewSyncService(engine, cfg.Sync.Interval))
		logging.Info().Dur("interval", cfg.Sync.Interval).Msg("History sync service added")
	} else {
		logging.Info().Msg("Background history sync disabled (on-demand sync still available)")
	}

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// newCacheStore opens the configured response cache backend.
func newCacheStore(cfg *config.Config) (cachestore.Store, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cachestore.NewMemoryStore(), nil
	case "badger", "":
		return cachestore.NewBadgerStore(cfg.Cache.Path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
