// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/watchgate/watchgate/internal/tokens"
)

// GetTokens returns the stored token pair for a user. Implements
// tokens.Store.
func (db *DB) GetTokens(ctx context.Context, username string) (tokens.Pair, error) {
	var pair tokens.Pair
	err := db.conn.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM trakt_tokens WHERE username = ?`,
		username,
	).Scan(&pair.AccessToken, &pair.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return tokens.Pair{}, tokens.ErrNotLinked
	}
	if err != nil {
		return tokens.Pair{}, fmt.Errorf("query tokens for %s: %w", username, err)
	}
	return pair, nil
}

// SaveTokens links a user by inserting a fresh pair, replacing any previous
// link. The sync gate (last_fetched_at) is reset so the next sync runs
// immediately.
func (db *DB) SaveTokens(ctx context.Context, username string, pair tokens.Pair) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO trakt_tokens (username, access_token, refresh_token, last_fetched_at)
		 VALUES (?, ?, ?, NULL)
		 ON CONFLICT (username) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			last_fetched_at = NULL,
			updated_at = now()`,
		username, pair.AccessToken, pair.RefreshToken,
	)
	if err != nil {
		return fmt.Errorf("save tokens for %s: %w", username, err)
	}
	return nil
}

// UpdateTokens replaces the stored pair after a refresh grant. Implements
// tokens.Store. Unlike SaveTokens it leaves the sync gate untouched.
func (db *DB) UpdateTokens(ctx context.Context, username string, pair tokens.Pair) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE trakt_tokens
		 SET access_token = ?, refresh_token = ?, updated_at = current_timestamp
		 WHERE username = ?`,
		pair.AccessToken, pair.RefreshToken, username,
	)
	if err != nil {
		return fmt.Errorf("update tokens for %s: %w", username, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tokens.ErrNotLinked
	}
	return nil
}

// DeleteTokens unlinks a user and removes their mirrored history.
func (db *DB) DeleteTokens(ctx context.Context, username string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM trakt_history WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete history for %s: %w", username, err)
	}
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM trakt_tokens WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete tokens for %s: %w", username, err)
	}
	return nil
}

// GetLastFetchedAt returns when the user's history was last successfully
// synced. A nil result means never.
func (db *DB) GetLastFetchedAt(ctx context.Context, username string) (*time.Time, error) {
	var fetched sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT last_fetched_at FROM trakt_tokens WHERE username = ?`,
		username,
	).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tokens.ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("query last_fetched_at for %s: %w", username, err)
	}
	if !fetched.Valid {
		return nil, nil
	}
	t := fetched.Time
	return &t, nil
}

// SetLastFetchedAt advances the sync gate. Called only after a fully
// successful sync, with the sync's start time.
func (db *DB) SetLastFetchedAt(ctx context.Context, username string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE trakt_tokens SET last_fetched_at = ? WHERE username = ?`,
		at, username,
	)
	if err != nil {
		return fmt.Errorf("set last_fetched_at for %s: %w", username, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tokens.ErrNotLinked
	}
	return nil
}

// ListLinkedUsernames returns every user with a stored token pair.
func (db *DB) ListLinkedUsernames(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT username FROM trakt_tokens ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list linked usernames: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}
