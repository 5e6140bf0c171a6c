// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the full HTTP handler: global middleware, health and
// metrics endpoints, the OAuth linking flow, and the mediated catalog API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	mw := NewMiddleware(&MiddlewareConfig{
		CORSAllowedOrigins: s.cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  s.cfg.Security.RateLimitReqs,
		RateLimitWindow:    s.cfg.Security.RateLimitWindow,
	})

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", s.handleHealthLive)
		r.Get("/ready", s.handleHealthReady)
		r.Get("/", s.handleHealthReady)
	})

	r.Route("/api/v1/auth/trakt", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Get("/authorize", s.handleAuthorizeURL)
		r.Get("/callback", s.handleOAuthCallback)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(RequestMetrics())

		r.Route("/catalog/{mediaType}", func(r chi.Router) {
			r.Get("/trending", s.handleTrending)
			r.Get("/popular", s.handlePopular)
		})

		r.Route("/lists", func(r chi.Router) {
			r.Get("/trending", s.handleTrendingLists)
			r.Get("/popular", s.handlePopularLists)
			r.Get("/search", s.handleSearchLists)
			r.Get("/{listID}/items", s.handleListItems)
		})

		r.Get("/genres/{mediaType}", s.handleGenres)
		r.Get("/search/{idType}/{id}", s.handleIDLookup)
		r.Get("/logo/{mediaType}/{id}", s.handleLogo)

		r.Route("/users/{username}", func(r chi.Router) {
			r.Delete("/link", s.handleUnlink)
			r.Post("/sync", s.handleSync)
			r.Get("/history", s.handleHistory)
			r.Get("/watchlist", s.handleWatchlist)
			r.Get("/recommendations", s.handleRecommendations)
			r.Post("/watched", s.handleMarkWatched)
		})
	})

	return r
}
