// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package api provides the HTTP surface: annotated catalog browsing, list
// and watchlist access, the OAuth linking flow, and sync triggers. Routing
// uses the Chi router with go-chi middleware.
package api

import (
	"context"
	"fmt"

	"github.com/watchgate/watchgate/internal/config"
	"github.com/watchgate/watchgate/internal/database"
	"github.com/watchgate/watchgate/internal/fanart"
	"github.com/watchgate/watchgate/internal/history"
	"github.com/watchgate/watchgate/internal/tokens"
	"github.com/watchgate/watchgate/internal/trakt"
)

// Server holds the wired dependencies behind every handler.
type Server struct {
	cfg     *config.Config
	db      *database.DB
	trakt   *trakt.Client
	tokens  *tokens.Manager
	history *history.Engine
	fanart  *fanart.Client
}

// NewServer creates the API server over fully constructed dependencies.
func NewServer(cfg *config.Config, db *database.DB, client *trakt.Client, mgr *tokens.Manager, engine *history.Engine, art *fanart.Client) *Server {
	return &Server{
		cfg:     cfg,
		db:      db,
		trakt:   client,
		tokens:  mgr,
		history: engine,
		fanart:  art,
	}
}

// SeedGenres fetches the upstream genre catalogs and seeds the local table.
// Safe to re-run; existing genres are left untouched.
func (s *Server) SeedGenres(ctx context.Context) error {
	for _, mediaType := range []string{"movie", "show"} {
		genres, err := s.trakt.FetchGenres(ctx, mediaType)
		if err != nil {
			return fmt.Errorf("fetch %s genres: %w", mediaType, err)
		}
		if err := s.db.SeedGenres(ctx, mediaType, genres); err != nil {
			return fmt.Errorf("seed %s genres: %w", mediaType, err)
		}
	}
	return nil
}
