// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package metrics provides Prometheus instrumentation for the mediation layer:
// queue pressure, cache efficiency, remote call outcomes, token refreshes,
// and history sync runs. All metrics are registered via promauto and served
// from the /metrics endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchgate_queue_depth",
			Help: "Number of jobs waiting in the rate-limited queue",
		},
		[]string{"kind"}, // "read", "write"
	)

	QueueWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchgate_queue_wait_seconds",
			Help:    "Time jobs spend queued before dispatch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Response cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchgate_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchgate_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// Remote call metrics
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchgate_remote_requests_total",
			Help: "Total outbound Trakt API calls by method and status",
		},
		[]string{"method", "status"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchgate_remote_request_seconds",
			Help:    "Duration of outbound Trakt API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Token lifecycle metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchgate_token_refreshes_total",
			Help: "Total token refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// History sync metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchgate_sync_runs_total",
			Help: "Total history sync runs by result",
		},
		[]string{"result"}, // "success", "skipped", "failure"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchgate_sync_duration_seconds",
			Help:    "Duration of history sync runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SyncRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchgate_sync_records_total",
			Help: "Total history records reconciled into local storage",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchgate_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful history sync",
		},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchgate_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Inbound API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchgate_api_requests_total",
			Help: "Total inbound API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchgate_api_request_seconds",
			Help:    "Duration of inbound API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// ObserveRemoteRequest records one outbound call with its duration and status.
func ObserveRemoteRequest(method string, status int, elapsed time.Duration) {
	RemoteRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	RemoteRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveAPIRequest records one inbound request with its duration and status.
func ObserveAPIRequest(route string, status int, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
