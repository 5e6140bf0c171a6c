// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

/*
engine.go - Watched-History Sync Engine

This file implements the interval-gated mirror of each user's upstream
watched history. One sync run:

 1. Reads the user's last successful sync time; inside the refresh interval
    the run is a no-op
 2. Fetches the movie and show feeds concurrently through the authenticated
    (refresh-on-401) path
 3. Reconciles both feeds into the local mirror in a single all-or-nothing
    transaction
 4. Advances the gate to the sync's START time, and only on full success

Recording the start time rather than the completion time means anything
watched while the sync ran falls after the gate and is picked up next run.
A failed run leaves both the mirror and the gate untouched, so the next
request retries the whole sync.

The read path (Annotate*) never triggers a sync; it only consults the
mirror and prefixes watched titles with the configured marker.
*/

//nolint:staticcheck // File documentation, not package doc
package history

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/watchgate/watchgate/internal/database"
	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/metrics"
	"github.com/watchgate/watchgate/internal/trakt"
)

// Store is the persistence surface the engine drives. Implemented by
// *database.DB.
type Store interface {
	GetLastFetchedAt(ctx context.Context, username string) (*time.Time, error)
	SetLastFetchedAt(ctx context.Context, username string, at time.Time) error
	SaveWatchedHistoryBatch(ctx context.Context, records []database.HistoryRecord) error
	WatchedExternalIDs(ctx context.Context, username, mediaType string) (map[string]bool, error)
	ListLinkedUsernames(ctx context.Context) ([]string, error)
}

// Fetcher is the authenticated API surface the engine reads from.
// Implemented by *tokens.Manager.
type Fetcher interface {
	AuthenticatedGet(ctx context.Context, username, endpoint string, params url.Values) ([]byte, error)
}

// Result describes one sync attempt.
type Result struct {
	// Skipped is true when the refresh interval had not elapsed.
	Skipped bool
	// Records is the number of history rows reconciled.
	Records int
}

// Engine mirrors upstream watched history into the local store.
type Engine struct {
	store    Store
	fetcher  Fetcher
	interval time.Duration
	marker   string

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a sync engine. interval gates how often one user's
// history is re-fetched; marker is prefixed to watched titles by Annotate.
func NewEngine(store Store, fetcher Fetcher, interval time.Duration, marker string) *Engine {
	return &Engine{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		marker:   marker,
		now:      time.Now,
	}
}

// Sync refreshes one user's mirror if the refresh interval has elapsed.
func (e *Engine) Sync(ctx context.Context, username string) (Result, error) {
	syncStart := e.now()

	last, err := e.store.GetLastFetchedAt(ctx, username)
	if err != nil {
		return Result{}, fmt.Errorf("read sync gate for %s: %w", username, err)
	}
	if last != nil && syncStart.Sub(*last) < e.interval {
		logging.Debug().
			Str("username", username).
			Time("last_fetched_at", *last).
			Msg("History sync inside refresh interval, skipping")
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		return Result{Skipped: true}, nil
	}

	result, err := e.run(ctx, username, syncStart)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failure").Inc()
		return Result{}, err
	}
	metrics.SyncRuns.WithLabelValues("success").Inc()
	metrics.SyncRecords.Add(float64(result.Records))
	metrics.SyncLastSuccess.SetToCurrentTime()
	metrics.SyncDuration.Observe(e.now().Sub(syncStart).Seconds())
	return result, nil
}

func (e *Engine) run(ctx context.Context, username string, syncStart time.Time) (Result, error) {
	var movies, shows []trakt.WatchedItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		movies, err = e.fetchWatched(gctx, username, "movies")
		return err
	})
	g.Go(func() error {
		var err error
		shows, err = e.fetchWatched(gctx, username, "shows")
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("fetch watched history for %s: %w", username, err)
	}

	records := make([]database.HistoryRecord, 0, len(movies)+len(shows))
	records = append(records, toRecords(username, movies)...)
	records = append(records, toRecords(username, shows)...)

	if err := e.store.SaveWatchedHistoryBatch(ctx, records); err != nil {
		return Result{}, fmt.Errorf("persist watched history for %s: %w", username, err)
	}

	// The gate records the sync START so activity during the run is not
	// lost to the next interval check.
	if err := e.store.SetLastFetchedAt(ctx, username, syncStart); err != nil {
		return Result{}, fmt.Errorf("advance sync gate for %s: %w", username, err)
	}

	logging.Info().
		Str("username", username).
		Int("records", len(records)).
		Msg("History sync completed")
	return Result{Records: len(records)}, nil
}

func (e *Engine) fetchWatched(ctx context.Context, username, mediaType string) ([]trakt.WatchedItem, error) {
	endpoint := fmt.Sprintf("/users/%s/watched/%s", url.PathEscape(username), mediaType)
	data, err := e.fetcher.AuthenticatedGet(ctx, username, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var items []trakt.WatchedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s feed: %w", mediaType, err)
	}
	return items, nil
}

func toRecords(username string, items []trakt.WatchedItem) []database.HistoryRecord {
	records := make([]database.HistoryRecord, 0, len(items))
	for i := range items {
		item := &items[i]
		media := item.Media()
		if media == nil {
			continue
		}
		records = append(records, database.HistoryRecord{
			Username:      username,
			MediaType:     item.MediaType(),
			Title:         media.Title,
			ExternalID:    item.ExternalID(),
			Plays:         item.Plays,
			LastWatchedAt: item.LastWatchedAt,
		})
	}
	return records
}

// SyncAll syncs every linked user, continuing past per-user failures.
// Returns the first error encountered, if any.
func (e *Engine) SyncAll(ctx context.Context) error {
	usernames, err := e.store.ListLinkedUsernames(ctx)
	if err != nil {
		return fmt.Errorf("list linked users: %w", err)
	}

	var firstErr error
	for _, username := range usernames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := e.Sync(ctx, username); err != nil {
			logging.Error().Err(err).Str("username", username).Msg("History sync failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Annotate prefixes the watched marker onto titles the user has already
// watched for the given media type. items are modified in place; the mirror
// is consulted as-is and no sync is triggered.
func (e *Engine) Annotate(ctx context.Context, username, mediaType string, items []*trakt.MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	watched, err := e.store.WatchedExternalIDs(ctx, username, mediaType)
	if err != nil {
		return fmt.Errorf("load watched set for %s: %w", username, err)
	}
	if len(watched) == 0 {
		return nil
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		if e.isWatched(watched, item) {
			item.Title = e.marker + " " + item.Title
		}
	}
	return nil
}

// isWatched checks the item's external ids against the mirror, preferring
// imdb and falling back to tmdb like the sync path does.
func (e *Engine) isWatched(watched map[string]bool, item *trakt.MediaItem) bool {
	if item.IDs.IMDB != "" && watched[item.IDs.IMDB] {
		return true
	}
	if item.IDs.TMDB != 0 && watched[fmt.Sprint(item.IDs.TMDB)] {
		return true
	}
	return false
}

// IsAnnotated reports whether a title already carries the watched marker.
func (e *Engine) IsAnnotated(title string) bool {
	return strings.HasPrefix(title, e.marker+" ")
}
