// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package database

import (
	"context"
	"fmt"

	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/trakt"
)

// SeedGenres inserts the genre catalog for one media type in a single
// transaction. Re-seeding is a no-op for genres that already exist; the
// catalog is treated as immutable.
func (db *DB) SeedGenres(ctx context.Context, mediaType string, genres []trakt.Genre) (err error) {
	if len(genres) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Genre seed rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO genres (genre_name, genre_slug, media_type)
		 VALUES (?, ?, ?)
		 ON CONFLICT (genre_slug, media_type) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare genre seed: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for _, g := range genres {
		if _, err = stmt.ExecContext(ctx, g.Name, g.Slug, mediaType); err != nil {
			return fmt.Errorf("seed genre %s/%s: %w", g.Slug, mediaType, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit genre seed: %w", err)
	}
	return nil
}

// ListGenres returns the seeded genre catalog for one media type.
func (db *DB) ListGenres(ctx context.Context, mediaType string) ([]trakt.Genre, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT genre_name, genre_slug FROM genres WHERE media_type = ? ORDER BY genre_name`,
		mediaType)
	if err != nil {
		return nil, fmt.Errorf("list genres for %s: %w", mediaType, err)
	}
	defer closeWithLog(rows, "rows")

	var genres []trakt.Genre
	for rows.Next() {
		var g trakt.Genre
		if err := rows.Scan(&g.Name, &g.Slug); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}
