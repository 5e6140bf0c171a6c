// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"errors"
	"fmt"
	"net/http"
)

// maxErrorBodySize limits how much of a response body is kept for error
// reporting, preventing unbounded allocation on large error responses.
const maxErrorBodySize = 64 * 1024

// StatusError is returned for any non-2xx response from the remote service.
// It carries the status code so upstream layers can classify the failure;
// the token manager keys its refresh path off StatusUnauthorized.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trakt: %s returned status %d: %s", e.URL, e.Status, e.Body)
}

// IsUnauthorized reports whether err is the unauthorized signal (HTTP 401).
// This is the only failure class that triggers a token refresh.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized
}

// IsTransient reports whether err looks like a temporary remote condition
// (5xx, rate limiting, or an open circuit breaker). Callers may serve stale
// data instead of failing hard.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500 || statusErr.Status == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrUnavailable)
}

// ErrUnavailable wraps circuit-breaker rejections. The remote service was not
// even attempted.
var ErrUnavailable = errors.New("trakt: service unavailable")
