// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/watchgate/watchgate/internal/cachestore"
	"github.com/watchgate/watchgate/internal/queue"
)

func newTestClient(t *testing.T, serverURL string) (*Client, *cachestore.MemoryStore) {
	t.Helper()

	q := queue.New(
		queue.LaneConfig{MaxConcurrent: 4},
		queue.LaneConfig{MaxConcurrent: 1},
	)
	t.Cleanup(q.Close)

	store := cachestore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	client := NewClient(Options{
		BaseURL:      serverURL,
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "http://localhost/callback",
		CacheTTL:     time.Minute,
	}, q, store)
	return client, store
}

func TestCacheKeyDeterminism(t *testing.T) {
	t.Parallel()

	url := "https://api.example.test/movies/trending?limit=100"
	body := []byte(`{"movies":[{"ids":{"imdb":"tt1"}}]}`)

	if got, want := cacheKey(http.MethodGet, "", url, nil), cacheKey(http.MethodGet, "", url, nil); got != want {
		t.Fatalf("identical inputs produced different keys: %q vs %q", got, want)
	}
	if cacheKey(http.MethodGet, "", url, nil) == cacheKey(http.MethodPost, "", url, nil) {
		t.Error("method should differentiate keys")
	}
	if cacheKey(http.MethodGet, "token-a", url, nil) == cacheKey(http.MethodGet, "token-b", url, nil) {
		t.Error("access token should differentiate keys")
	}
	if cacheKey(http.MethodGet, "token-a", url, nil) == cacheKey(http.MethodGet, "", url, nil) {
		t.Error("authenticated and public keys should differ")
	}
	if cacheKey(http.MethodPost, "", url, body) == cacheKey(http.MethodPost, "", url, nil) {
		t.Error("body should differentiate keys")
	}
	if !strings.Contains(cacheKey(http.MethodGet, "", url, nil), ":public:") {
		t.Error("unauthenticated key should carry the public scope")
	}
}

func TestFetchDataCachesSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("trakt-api-version"); got != "2" {
			t.Errorf("trakt-api-version = %q, want %q", got, "2")
		}
		if got := r.Header.Get("trakt-api-key"); got != "test-client-id" {
			t.Errorf("trakt-api-key = %q, want client id", got)
		}
		w.Write([]byte(`[{"watchers":7}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	first, err := client.FetchData(ctx, "/movies/trending", nil, "")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := client.FetchData(ctx, "/movies/trending", nil, "")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("cached response differs from original")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("remote calls = %d, want 1 (second fetch should hit cache)", got)
	}
}

func TestFetchDataDoesNotCacheFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, store := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := client.FetchData(ctx, "/movies/popular", nil, "")
	if err == nil {
		t.Fatal("expected error from 500 response")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failure was cached: %d entries", store.Len())
	}

	data, err := client.FetchData(ctx, "/movies/popular", nil, "")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected body %q", data)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote calls = %d, want 2", got)
	}
}

func TestUnauthorizedSurfacesAsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, store := newTestClient(t, srv.URL)

	_, err := client.FetchData(context.Background(), "/users/me", nil, "stale-token")
	if !IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized = false for %v", err)
	}
	if store.Len() != 0 {
		t.Error("401 response must not be cached")
	}
}

func TestConcurrentMissesTolerated(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.FetchData(ctx, "/shows/trending", nil, "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}
	// Concurrent misses may each reach the remote; the point is that none
	// of them fail and later calls are served from cache.
	if calls.Load() > waiters {
		t.Errorf("remote calls = %d, want at most %d", calls.Load(), waiters)
	}
	before := calls.Load()
	if _, err := client.FetchData(ctx, "/shows/trending", nil, ""); err != nil {
		t.Fatalf("post-stampede fetch: %v", err)
	}
	if calls.Load() != before {
		t.Error("post-stampede fetch should be a cache hit")
	}
}

func TestPostDataCachesWithBodyInKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"added":{"movies":1}}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	bodyA := map[string]string{"q": "alpha"}
	bodyB := map[string]string{"q": "beta"}

	if _, err := client.PostData(ctx, "/sync/history", bodyA, "tok"); err != nil {
		t.Fatalf("first post: %v", err)
	}
	if _, err := client.PostData(ctx, "/sync/history", bodyA, "tok"); err != nil {
		t.Fatalf("repeat post: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("remote calls after repeat = %d, want 1", got)
	}
	if _, err := client.PostData(ctx, "/sync/history", bodyB, "tok"); err != nil {
		t.Fatalf("different body post: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote calls after new body = %d, want 2", got)
	}
}

func TestTokenExchangeNeverCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q, want /oauth/token", r.URL.Path)
		}
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":7200,"created_at":1700000000}`))
	}))
	defer srv.Close()

	client, store := newTestClient(t, srv.URL)
	ctx := context.Background()

	first, err := client.ExchangeCode(ctx, "auth-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if first.AccessToken != "at" || first.RefreshToken != "rt" {
		t.Fatalf("unexpected token pair %+v", first)
	}
	if store.Len() != 0 {
		t.Fatal("token response landed in the cache")
	}

	if _, err := client.ExchangeCode(ctx, "auth-code"); err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote calls = %d, want 2 (token calls must not be served from cache)", got)
	}
}

func TestRefreshTokenRejectsIncompleteResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at"}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	if _, err := client.RefreshToken(context.Background(), "rt"); err == nil {
		t.Fatal("expected error for response missing refresh_token")
	}
}

func TestFetchDataAuthorizationHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	if _, err := client.FetchData(context.Background(), "/users/me", nil, "secret-token"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestScopedCacheIsolation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"n":` + r.Header.Get("Authorization")[len("Bearer "):] + `}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	ctx := context.Background()

	a, err := client.FetchData(ctx, "/users/me", nil, "1")
	if err != nil {
		t.Fatalf("fetch as user 1: %v", err)
	}
	b, err := client.FetchData(ctx, "/users/me", nil, "2")
	if err != nil {
		t.Fatalf("fetch as user 2: %v", err)
	}
	if string(a) == string(b) {
		t.Error("responses for different tokens should not share a cache entry")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote calls = %d, want 2", got)
	}
}
