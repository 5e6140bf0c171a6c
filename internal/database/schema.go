// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package database

import (
	"context"
	"fmt"
	"time"
)

// createTables creates the schema if it does not exist yet. DuckDB replays
// any pending WAL on open, so these statements must stay idempotent.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS trakt_history_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS genres_id_seq START 1`,

		// One row per linked account. last_fetched_at gates the history
		// sync interval and only advances on a fully successful sync.
		`CREATE TABLE IF NOT EXISTS trakt_tokens (
			username        VARCHAR PRIMARY KEY,
			access_token    VARCHAR NOT NULL,
			refresh_token   VARCHAR NOT NULL,
			last_fetched_at TIMESTAMP,
			created_at      TIMESTAMP NOT NULL DEFAULT current_timestamp,
			updated_at      TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		// Local mirror of the upstream watched feed, keyed by the external
		// catalog identifier (imdb preferred, tmdb fallback).
		`CREATE TABLE IF NOT EXISTS trakt_history (
			id              BIGINT PRIMARY KEY DEFAULT nextval('trakt_history_id_seq'),
			username        VARCHAR NOT NULL,
			media_type      VARCHAR NOT NULL,
			title           VARCHAR NOT NULL,
			imdb_id         VARCHAR NOT NULL,
			plays           INTEGER NOT NULL DEFAULT 0,
			last_watched_at TIMESTAMP,
			updated_at      TIMESTAMP NOT NULL DEFAULT current_timestamp,
			UNIQUE (username, imdb_id)
		)`,

		// Genre reference catalog, seeded once per media type.
		`CREATE TABLE IF NOT EXISTS genres (
			id         BIGINT PRIMARY KEY DEFAULT nextval('genres_id_seq'),
			genre_name VARCHAR NOT NULL,
			genre_slug VARCHAR NOT NULL,
			media_type VARCHAR NOT NULL,
			UNIQUE (genre_slug, media_type)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_trakt_history_username ON trakt_history (username)`,
		`CREATE INDEX IF NOT EXISTS idx_genres_media_type ON genres (media_type)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
