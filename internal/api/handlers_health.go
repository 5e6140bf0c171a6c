// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"net/http"
	"time"
)

// handleHealthLive reports process liveness only.
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]string{"status": "alive"}, 0)
}

// handleHealthReady reports readiness: the database must answer a ping.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutContext(r, 5*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Database not available", err)
		return
	}
	respondData(w, r, map[string]string{"status": "ready"}, 0)
}
