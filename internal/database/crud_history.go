// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/watchgate/watchgate/internal/logging"
)

// HistoryRecord is one row of the mirrored watched history.
type HistoryRecord struct {
	Username      string
	MediaType     string
	Title         string
	ExternalID    string
	Plays         int
	LastWatchedAt time.Time
}

// SaveWatchedHistoryBatch atomically reconciles a batch of watched records
// for one user. Existing rows (matched on username + external id) have their
// play counts and watch timestamps updated; new rows are inserted. A failure
// anywhere rolls the whole batch back, leaving the mirror unchanged.
func (db *DB) SaveWatchedHistoryBatch(ctx context.Context, records []HistoryRecord) (err error) {
	if len(records) == 0 {
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
					Msg("History batch rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trakt_history (username, media_type, title, imdb_id, plays, last_watched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (username, imdb_id) DO UPDATE SET
			title = excluded.title,
			plays = excluded.plays,
			last_watched_at = excluded.last_watched_at,
			updated_at = now()`)
	if err != nil {
		return fmt.Errorf("prepare history upsert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for _, rec := range records {
		if rec.ExternalID == "" {
			// Items without a usable external id cannot be matched to the
			// catalog and are skipped, not failed.
			logging.Debug().
				Str("username", rec.Username).
				Str("title", rec.Title).
				Msg("Skipping history item without external id")
			continue
		}
		if _, err = stmt.ExecContext(ctx,
			rec.Username, rec.MediaType, rec.Title, rec.ExternalID, rec.Plays, rec.LastWatchedAt,
		); err != nil {
			return fmt.Errorf("upsert history row %s/%s: %w", rec.Username, rec.ExternalID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit history batch: %w", err)
	}
	return nil
}

// WatchedExternalIDs returns the set of external ids the user has watched
// for one media type, used by the read path to annotate catalog listings.
// TMDB numbers movies and shows in separate namespaces, so the type filter
// keeps a watched movie from marking the same-numbered show.
func (db *DB) WatchedExternalIDs(ctx context.Context, username, mediaType string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT imdb_id FROM trakt_history WHERE username = ? AND media_type = ?`,
		username, mediaType)
	if err != nil {
		return nil, fmt.Errorf("query watched ids for %s: %w", username, err)
	}
	defer closeWithLog(rows, "rows")

	watched := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan watched id: %w", err)
		}
		watched[id] = true
	}
	return watched, rows.Err()
}

// GetHistory returns the user's mirrored history ordered by most recent
// watch first.
func (db *DB) GetHistory(ctx context.Context, username string) ([]HistoryRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT username, media_type, title, imdb_id, plays, last_watched_at
		 FROM trakt_history
		 WHERE username = ?
		 ORDER BY last_watched_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", username, err)
	}
	defer closeWithLog(rows, "rows")

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.Username, &rec.MediaType, &rec.Title, &rec.ExternalID,
			&rec.Plays, &rec.LastWatchedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountHistory returns the number of mirrored rows for a user.
func (db *DB) CountHistory(ctx context.Context, username string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trakt_history WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count history for %s: %w", username, err)
	}
	return count, nil
}
