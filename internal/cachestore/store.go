// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package cachestore provides the shared TTL byte store behind the
// cache-aside client. The store owns persistence mechanics only; key
// construction and the read/write protocol live with the caller.
//
// Two implementations exist: a BadgerDB-backed store for production (entries
// expire via Badger's native TTL) and an in-memory store for tests and
// development.
package cachestore

import (
	"context"
	"time"
)

// Store is a get/set-with-TTL byte store.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent or expired; that is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A non-positive ttl stores
	// without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases underlying resources.
	Close() error
}
