// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

/*
client.go - Cache-Aside Trakt API Client

This file provides the core Client struct and the cache-aside request path
every Trakt call goes through:

 1. Build a deterministic cache key from method, credential scope, URL and
    (for POST) the canonical JSON body
 2. Consult the shared TTL store; a hit returns immediately without touching
    the queue or the network
 3. On a miss, submit the call to the rate-limited queue (GET on the read
    lane, POST on the write lane) and await the future
 4. Cache the response bytes on success; cache nothing on failure

Token-exchange calls use postNoCache: OAuth responses must never land in the
shared cache.

Concurrent misses for the same key each enqueue their own call; the last
writer to the cache wins. This stampede tolerance is deliberate - the rate
gate bounds the damage and per-key coalescing is not worth the coupling here.

All network calls run through a sony/gobreaker circuit breaker. Client errors
(4xx, including the 401 refresh signal) do not trip the breaker; it guards
against a dead or melting upstream, not bad credentials.
*/

//nolint:staticcheck // File documentation, not package doc
package trakt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/watchgate/watchgate/internal/cachestore"
	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/metrics"
	"github.com/watchgate/watchgate/internal/queue"
)

// apiVersion is the trakt-api-version header value.
const apiVersion = "2"

// publicScope is the credential scope used in cache keys for
// unauthenticated calls.
const publicScope = "public"

// Doer abstracts the HTTP transport for testing.
// Satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// CacheTTL is the default TTL for cached responses.
	CacheTTL time.Duration

	// HTTPClient defaults to an *http.Client with a 30 second timeout.
	HTTPClient Doer
}

// Client is the cache-aside, rate-limited Trakt API client. Both the queue
// and the cache store are injected dependencies, so independent instances
// (separate tenants, separate budgets) are just separate constructions.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	redirectURI  string
	cacheTTL     time.Duration

	http    Doer
	queue   *queue.Queue
	cache   cachestore.Store
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Trakt client dispatching through q and caching in store.
func NewClient(opts Options, q *queue.Queue, store cachestore.Store) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	cbName := "trakt-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		// A 4xx answer means the upstream is alive; only network faults
		// and 5xx count against the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *StatusError
			return errors.As(err, &statusErr) && statusErr.Status < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Client{
		baseURL:      opts.BaseURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		redirectURI:  opts.RedirectURI,
		cacheTTL:     opts.CacheTTL,
		http:         httpClient,
		queue:        q,
		cache:        store,
		breaker:      breaker,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// cacheKey builds the deterministic key for one call. The credential scope
// keeps one user's authenticated responses from leaking into another's (or
// into public traffic); POST bodies are part of the key because the same URL
// carries different payloads.
func cacheKey(method, accessToken, reqURL string, body []byte) string {
	scope := accessToken
	if scope == "" {
		scope = publicScope
	}
	key := fmt.Sprintf("trakt:%s:%s:%s", method, scope, reqURL)
	if len(body) > 0 {
		key += ":" + string(body)
	}
	return key
}

// FetchData performs a cache-aside GET against an API endpoint and returns
// the raw response bytes. params may be nil.
func (c *Client) FetchData(ctx context.Context, endpoint string, params url.Values, accessToken string) ([]byte, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return c.get(ctx, reqURL, accessToken)
}

// PostData performs a cache-aside POST with a JSON body and returns the raw
// response bytes. Duplicate writes within the TTL window are served from
// cache without a second side-effecting call.
func (c *Client) PostData(ctx context.Context, endpoint string, body interface{}, accessToken string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.post(ctx, c.baseURL+endpoint, payload, accessToken, true)
}

// get is the cache-aside read path.
func (c *Client) get(ctx context.Context, reqURL, accessToken string) ([]byte, error) {
	key := cacheKey(http.MethodGet, accessToken, reqURL, nil)

	if cached, found, err := c.cache.Get(ctx, key); err == nil && found {
		metrics.CacheHits.Inc()
		logging.Debug().Str("url", reqURL).Msg("Cache hit")
		return cached, nil
	} else if err != nil {
		logging.Warn().Err(err).Str("url", reqURL).Msg("Cache read failed, falling through to remote")
	}
	metrics.CacheMisses.Inc()

	future := c.queue.Enqueue(queue.KindRead, func(jobCtx context.Context) (interface{}, error) {
		return c.send(jobCtx, http.MethodGet, reqURL, nil, accessToken)
	})

	value, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}
	data := value.([]byte)

	c.storeResponse(ctx, key, data)
	return data, nil
}

// post is the cache-aside write path. cacheable=false bypasses the cache in
// both directions (token exchange).
func (c *Client) post(ctx context.Context, reqURL string, payload []byte, accessToken string, cacheable bool) ([]byte, error) {
	var key string
	if cacheable {
		key = cacheKey(http.MethodPost, accessToken, reqURL, payload)
		if cached, found, err := c.cache.Get(ctx, key); err == nil && found {
			metrics.CacheHits.Inc()
			logging.Debug().Str("url", reqURL).Msg("Cache hit for POST")
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	future := c.queue.Enqueue(queue.KindWrite, func(jobCtx context.Context) (interface{}, error) {
		return c.send(jobCtx, http.MethodPost, reqURL, payload, accessToken)
	})

	value, err := future.Wait(ctx)
	if err != nil {
		return nil, err
	}
	data := value.([]byte)

	if cacheable {
		c.storeResponse(ctx, key, data)
	}
	return data, nil
}

// postNoCache performs a POST that must never touch the shared cache.
func (c *Client) postNoCache(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return c.post(ctx, c.baseURL+endpoint, payload, "", false)
}

// storeResponse writes one successful response to the cache. Exactly one
// write per successful remote call; a failed write is logged, never surfaced,
// and never leaves a partial entry behind (the store's Set is atomic).
func (c *Client) storeResponse(ctx context.Context, key string, data []byte) {
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		logging.Warn().Err(err).Msg("Cache write failed")
	}
}

// send executes one HTTP call through the circuit breaker. Exactly one
// attempt per invocation; retry policy lives in higher layers.
func (c *Client) send(ctx context.Context, method, reqURL string, payload []byte, accessToken string) ([]byte, error) {
	start := time.Now()

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, method, reqURL, payload, accessToken)
	})

	status := 0
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		status = statusErr.Status
	} else if err == nil {
		status = http.StatusOK
	}
	metrics.ObserveRemoteRequest(method, status, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s %s", ErrUnavailable, method, reqURL)
	}
	return data, err
}

// doRequest builds and executes a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, reqURL string, payload []byte, accessToken string) ([]byte, error) {
	var body io.Reader = http.NoBody
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		logging.Debug().Str("url", reqURL).Msg("No access token provided, making unauthenticated request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := readBodyForError(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			logging.Warn().Str("url", reqURL).Msg("Unauthorized response from Trakt")
		} else {
			logging.Error().Int("status", resp.StatusCode).Str("url", reqURL).Msg("Trakt request failed")
		}
		return nil, &StatusError{Status: resp.StatusCode, URL: reqURL, Body: string(errBody)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	logging.Debug().Str("method", method).Str("url", reqURL).Msg("Trakt request successful")
	return data, nil
}

// readBodyForError reads at most maxErrorBodySize bytes for error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
