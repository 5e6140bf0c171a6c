// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package history

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/watchgate/watchgate/internal/database"
	"github.com/watchgate/watchgate/internal/trakt"
)

// fakeStore is an in-memory Store keyed like the real mirror.
type fakeStore struct {
	mu          sync.Mutex
	lastFetched map[string]time.Time
	rows        map[string]database.HistoryRecord // keyed username+"/"+externalID
	saveErr     error
	batches     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lastFetched: make(map[string]time.Time),
		rows:        make(map[string]database.HistoryRecord),
	}
}

func (s *fakeStore) GetLastFetchedAt(_ context.Context, username string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastFetched[username]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fakeStore) SetLastFetchedAt(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetched[username] = at
	return nil
}

func (s *fakeStore) SaveWatchedHistoryBatch(_ context.Context, records []database.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, rec := range records {
		if rec.ExternalID == "" {
			continue
		}
		s.rows[rec.Username+"/"+rec.MediaType+"/"+rec.ExternalID] = rec
	}
	return nil
}

func (s *fakeStore) WatchedExternalIDs(_ context.Context, username, mediaType string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watched := make(map[string]bool)
	for key := range s.rows {
		name, rest, ok := strings.Cut(key, "/")
		if !ok || name != username {
			continue
		}
		if kind, id, ok := strings.Cut(rest, "/"); ok && kind == mediaType {
			watched[id] = true
		}
	}
	return watched, nil
}

func (s *fakeStore) ListLinkedUsernames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for name := range s.lastFetched {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// fakeFetcher serves canned movie/show feeds per endpoint suffix.
type fakeFetcher struct {
	mu       sync.Mutex
	movies   string
	shows    string
	fetchErr error
	calls    int
}

func (f *fakeFetcher) AuthenticatedGet(_ context.Context, _, endpoint string, _ url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if strings.HasSuffix(endpoint, "/movies") {
		return []byte(f.movies), nil
	}
	return []byte(f.shows), nil
}

const (
	movieFeed = `[{"plays":2,"last_watched_at":"2026-07-01T20:00:00.000Z","movie":{"title":"Heat","year":1995,"ids":{"imdb":"tt0113277","tmdb":949}}}]`
	showFeed  = `[{"plays":9,"last_watched_at":"2026-07-02T21:00:00.000Z","show":{"title":"Severance","year":2022,"ids":{"tmdb":95396}}}]`
)

func newTestEngine(store *fakeStore, fetcher *fakeFetcher) *Engine {
	return NewEngine(store, fetcher, 24*time.Hour, "✔️")
}

func TestSyncMirrorsBothFeeds(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	result, err := engine.Sync(context.Background(), "alice")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Skipped || result.Records != 2 {
		t.Fatalf("result = %+v, want 2 records", result)
	}

	movie, ok := store.rows["alice/movie/tt0113277"]
	if !ok || movie.Plays != 2 || movie.MediaType != "movie" {
		t.Errorf("movie row = %+v", movie)
	}
	// The show has no imdb id; the tmdb fallback keys it.
	show, ok := store.rows["alice/show/95396"]
	if !ok || show.MediaType != "show" {
		t.Errorf("show row = %+v", show)
	}
}

func TestSyncSkippedInsideInterval(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	callsAfterFirst := fetcher.calls

	result, err := engine.Sync(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !result.Skipped {
		t.Error("second sync inside interval should be skipped")
	}
	if fetcher.calls != callsAfterFirst {
		t.Errorf("skipped sync still fetched (%d calls)", fetcher.calls-callsAfterFirst)
	}
}

func TestSyncRunsAgainAfterInterval(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }
	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	engine.now = func() time.Time { return base.Add(25 * time.Hour) }
	result, err := engine.Sync(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Skipped {
		t.Error("sync past the interval should run")
	}
}

func TestSyncGateRecordsStartTime(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return start }

	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	gate, _ := store.GetLastFetchedAt(context.Background(), "alice")
	if gate == nil || !gate.Equal(start) {
		t.Errorf("gate = %v, want sync start %v", gate, start)
	}
}

func TestFailedFetchLeavesGateAndMirrorUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{fetchErr: errors.New("upstream down")}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err == nil {
		t.Fatal("expected sync error")
	}
	if len(store.rows) != 0 {
		t.Errorf("failed sync wrote %d rows", len(store.rows))
	}
	if gate, _ := store.GetLastFetchedAt(context.Background(), "alice"); gate != nil {
		t.Errorf("failed sync advanced the gate to %v", gate)
	}

	// The next attempt is not interval-gated and retries in full.
	fetcher.mu.Lock()
	fetcher.fetchErr = nil
	fetcher.movies, fetcher.shows = movieFeed, showFeed
	fetcher.mu.Unlock()

	result, err := engine.Sync(context.Background(), "alice")
	if err != nil || result.Skipped {
		t.Fatalf("retry after failure: %+v, %v", result, err)
	}
}

func TestFailedPersistLeavesGateUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err == nil {
		t.Fatal("expected persist error")
	}
	if gate, _ := store.GetLastFetchedAt(context.Background(), "alice"); gate != nil {
		t.Errorf("failed persist advanced the gate to %v", gate)
	}
}

func TestSyncIdempotentReconciliation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }
	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	engine.now = func() time.Time { return base.Add(48 * time.Hour) }
	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if len(store.rows) != 2 {
		t.Errorf("rows = %d, want 2 (reconciliation must not duplicate)", len(store.rows))
	}
}

func TestAnnotateMarksWatchedTitles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	movies := []*trakt.MediaItem{
		{Title: "Heat", IDs: trakt.IDs{IMDB: "tt0113277"}},
		{Title: "Ronin", IDs: trakt.IDs{IMDB: "tt0122690"}},
	}
	if err := engine.Annotate(context.Background(), "alice", "movie", movies); err != nil {
		t.Fatalf("annotate movies: %v", err)
	}
	shows := []*trakt.MediaItem{{Title: "Severance", IDs: trakt.IDs{TMDB: 95396}}}
	if err := engine.Annotate(context.Background(), "alice", "show", shows); err != nil {
		t.Fatalf("annotate shows: %v", err)
	}

	if movies[0].Title != "✔️ Heat" {
		t.Errorf("imdb-matched title = %q", movies[0].Title)
	}
	if movies[1].Title != "Ronin" {
		t.Errorf("unwatched title = %q", movies[1].Title)
	}
	if shows[0].Title != "✔️ Severance" {
		t.Errorf("tmdb-matched title = %q", shows[0].Title)
	}
	if !engine.IsAnnotated(movies[0].Title) || engine.IsAnnotated(movies[1].Title) {
		t.Error("IsAnnotated disagrees with Annotate")
	}
}

func TestAnnotateScopedToMediaType(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// A movie carrying only a tmdb id is mirrored under the tmdb fallback.
	noIMDB := `[{"plays":1,"last_watched_at":"2026-07-01T20:00:00.000Z","movie":{"title":"The Matrix","year":1999,"ids":{"tmdb":603}}}]`
	fetcher := &fakeFetcher{movies: noIMDB, shows: `[]`}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// tmdb numbers movies and shows separately; the watched movie must not
	// mark the same-numbered show.
	shows := []*trakt.MediaItem{{Title: "The Show", IDs: trakt.IDs{TMDB: 603}}}
	if err := engine.Annotate(context.Background(), "alice", "show", shows); err != nil {
		t.Fatalf("annotate shows: %v", err)
	}
	if shows[0].Title != "The Show" {
		t.Errorf("show marked by same-numbered movie: %q", shows[0].Title)
	}

	movies := []*trakt.MediaItem{{Title: "The Matrix", IDs: trakt.IDs{TMDB: 603}}}
	if err := engine.Annotate(context.Background(), "alice", "movie", movies); err != nil {
		t.Fatalf("annotate movies: %v", err)
	}
	if movies[0].Title != "✔️ The Matrix" {
		t.Errorf("tmdb-matched movie = %q", movies[0].Title)
	}
}

func TestAnnotateScopedToUser(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	if _, err := engine.Sync(context.Background(), "alice"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	items := []*trakt.MediaItem{{Title: "Heat", IDs: trakt.IDs{IMDB: "tt0113277"}}}
	if err := engine.Annotate(context.Background(), "bob", "movie", items); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if items[0].Title != "Heat" {
		t.Errorf("bob's view shows alice's watch state: %q", items[0].Title)
	}
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// Pre-seed two linked users with expired gates.
	old := time.Now().Add(-48 * time.Hour)
	store.lastFetched["alice"] = old
	store.lastFetched["bob"] = old

	fetcher := &fakeFetcher{movies: movieFeed, shows: showFeed}
	engine := newTestEngine(store, fetcher)

	if err := engine.SyncAll(context.Background()); err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(store.rows) != 4 {
		t.Errorf("rows = %d, want 4 (2 users x 2 items)", len(store.rows))
	}
}
