// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

/*
manager.go - OAuth Token Lifecycle Manager

This file owns the expired-credential recovery protocol. Every authenticated
Trakt call goes through AuthenticatedGet/AuthenticatedPost, which implement
the refresh-and-retry contract:

 1. Attempt the call with the stored access token
 2. On 401, run the refresh grant with the stored refresh token
 3. Persist the new pair to durable storage BEFORE retrying
 4. Retry the original call exactly once with the new token
 5. A second 401 (or a failed refresh) surfaces ErrRefreshFailed

Refreshes are serialized per username: when several in-flight calls hit 401
for the same user, the first holds the user's lock through the refresh and
the rest re-read the store under the lock, find a fresh pair, and skip their
own refresh. A failed refresh never modifies the stored pair.

Non-401 errors are never treated as credential problems and never trigger a
refresh.
*/

//nolint:staticcheck // File documentation, not package doc
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/metrics"
	"github.com/watchgate/watchgate/internal/trakt"
)

// ErrNotLinked reports that no token pair is stored for the user.
var ErrNotLinked = errors.New("tokens: user has no linked Trakt account")

// ErrRefreshFailed reports that the stored credentials could not be
// recovered: the refresh grant failed, or the refreshed token was rejected.
// The caller must re-run the interactive authorization flow.
var ErrRefreshFailed = errors.New("tokens: token refresh failed, re-authorization required")

// Pair is one user's stored OAuth credential pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Store is the durable token storage the manager reads and writes.
type Store interface {
	// GetTokens returns the stored pair, or ErrNotLinked.
	GetTokens(ctx context.Context, username string) (Pair, error)
	// UpdateTokens atomically replaces the stored pair.
	UpdateTokens(ctx context.Context, username string, pair Pair) error
}

// API is the subset of the Trakt client the manager drives.
type API interface {
	FetchData(ctx context.Context, endpoint string, params url.Values, accessToken string) ([]byte, error)
	PostData(ctx context.Context, endpoint string, body interface{}, accessToken string) ([]byte, error)
	RefreshToken(ctx context.Context, refreshToken string) (*trakt.TokenResponse, error)
}

// Manager wraps a Trakt API with transparent per-user token refresh.
type Manager struct {
	store Store
	api   API

	// locks holds one *sync.Mutex per username, created on first use.
	locks sync.Map
}

// NewManager creates a Manager over the given store and API client.
func NewManager(store Store, api API) *Manager {
	return &Manager{store: store, api: api}
}

func (m *Manager) userLock(username string) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(username, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// AuthenticatedGet performs a GET on the user's behalf, refreshing the
// stored token pair once if the upstream rejects it.
func (m *Manager) AuthenticatedGet(ctx context.Context, username, endpoint string, params url.Values) ([]byte, error) {
	return m.withAuth(ctx, username, func(token string) ([]byte, error) {
		return m.api.FetchData(ctx, endpoint, params, token)
	})
}

// AuthenticatedPost performs a POST on the user's behalf with the same
// refresh-and-retry behavior as AuthenticatedGet.
func (m *Manager) AuthenticatedPost(ctx context.Context, username, endpoint string, body interface{}) ([]byte, error) {
	return m.withAuth(ctx, username, func(token string) ([]byte, error) {
		return m.api.PostData(ctx, endpoint, body, token)
	})
}

// withAuth runs call with the stored access token, applying the
// refresh-once-retry-once protocol on 401.
func (m *Manager) withAuth(ctx context.Context, username string, call func(token string) ([]byte, error)) ([]byte, error) {
	pair, err := m.store.GetTokens(ctx, username)
	if err != nil {
		return nil, err
	}

	data, err := call(pair.AccessToken)
	if err == nil || !trakt.IsUnauthorized(err) {
		return data, err
	}

	logging.Info().Str("username", username).Msg("Access token rejected, attempting refresh")
	fresh, refreshErr := m.refresh(ctx, username, pair)
	if refreshErr != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		logging.Error().Err(refreshErr).Str("username", username).Msg("Token refresh failed")
		return nil, fmt.Errorf("%w: %s", ErrRefreshFailed, refreshErr)
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	data, err = call(fresh.AccessToken)
	if err != nil && trakt.IsUnauthorized(err) {
		return nil, fmt.Errorf("%w: refreshed token rejected", ErrRefreshFailed)
	}
	return data, err
}

// refresh exchanges the user's refresh token for a new pair and persists it.
// The user's lock serializes concurrent refresh attempts; a holder that
// arrives after another goroutine already refreshed sees a changed pair in
// the store and returns it without a second grant.
func (m *Manager) refresh(ctx context.Context, username string, stale Pair) (Pair, error) {
	lock := m.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.store.GetTokens(ctx, username)
	if err != nil {
		return Pair{}, fmt.Errorf("re-read tokens: %w", err)
	}
	if current.AccessToken != stale.AccessToken {
		logging.Debug().Str("username", username).Msg("Token pair already refreshed by concurrent caller")
		return current, nil
	}

	resp, err := m.api.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return Pair{}, fmt.Errorf("refresh grant: %w", err)
	}

	fresh := Pair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := m.store.UpdateTokens(ctx, username, fresh); err != nil {
		return Pair{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	logging.Info().Str("username", username).Msg("Token pair refreshed and persisted")
	return fresh, nil
}
