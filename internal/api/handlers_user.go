// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/watchgate/watchgate/internal/trakt"
)

type userRequest struct {
	Username string `validate:"required,username"`
}

func userFromPath(r *http.Request) (userRequest, bool) {
	req := userRequest{Username: chi.URLParam(r, "username")}
	return req, validateRequest(&req) == nil
}

// handleSync triggers an on-demand history sync for one user. Inside the
// refresh interval this is a cheap no-op.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req, ok := userFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid username", nil)
		return
	}

	ctx, cancel := timeoutContext(r, 2*time.Minute)
	defer cancel()

	result, err := s.history.Sync(ctx, req.Username)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, map[string]interface{}{
		"skipped": result.Skipped,
		"records": result.Records,
	}, result.Records)
}

// handleHistory serves the user's mirrored watched history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	req, ok := userFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid username", nil)
		return
	}

	ctx, cancel := timeoutContext(r, 10*time.Second)
	defer cancel()

	records, err := s.db.GetHistory(ctx, req.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load history", err)
		return
	}
	respondData(w, r, records, len(records))
}

// handleWatchlist serves the user's watchlist through the authenticated
// refresh-on-401 path, sorted per query parameters.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	req, ok := userFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid username", nil)
		return
	}
	mediaType := r.URL.Query().Get("type")
	if mediaType == "" {
		mediaType = "movie"
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("/sync/watchlist/%s/rank", apiPathType(mediaType))
	data, err := s.tokens.AuthenticatedGet(ctx, req.Username, endpoint, nil)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	var items []trakt.WatchlistItem
	if err := json.Unmarshal(data, &items); err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Malformed watchlist response", err)
		return
	}

	trakt.SortWatchlist(items, r.URL.Query().Get("sort_by"), r.URL.Query().Get("sort_how"))

	media := make([]*trakt.MediaItem, 0, len(items))
	for i := range items {
		if m := items[i].Media(); m != nil {
			media = append(media, m)
		}
	}
	s.annotateItems(ctx, req.Username, mediaType, media)
	respondData(w, r, items, len(items))
}

// handleRecommendations serves personalized recommendations through the
// authenticated path, annotated with the user's watch state.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	req, ok := userFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid username", nil)
		return
	}
	mediaType := r.URL.Query().Get("type")
	if mediaType == "" {
		mediaType = "movie"
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	endpoint := "/recommendations/" + apiPathType(mediaType)
	params := url.Values{}
	params.Set("limit", "100")
	params.Set("ignore_collected", "true")
	data, err := s.tokens.AuthenticatedGet(ctx, req.Username, endpoint, params)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	var items []trakt.MediaItem
	if err := json.Unmarshal(data, &items); err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Malformed recommendations response", err)
		return
	}

	media := make([]*trakt.MediaItem, len(items))
	for i := range items {
		media[i] = &items[i]
	}
	s.annotateItems(ctx, req.Username, mediaType, media)
	respondData(w, r, items, len(items))
}

type markWatchedRequest struct {
	MediaType string    `json:"media_type" validate:"required,mediatype"`
	IDs       trakt.IDs `json:"ids"`
}

// handleMarkWatched records media as watched upstream on the user's behalf.
func (s *Server) handleMarkWatched(w http.ResponseWriter, r *http.Request) {
	req, ok := userFromPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid username", nil)
		return
	}

	var payload markWatchedRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body", err)
		return
	}
	if apiErr := validateRequest(&payload); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if payload.IDs.IMDB == "" && payload.IDs.TMDB == 0 && payload.IDs.Trakt == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "At least one media id is required", nil)
		return
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	entry := map[string]interface{}{"ids": payload.IDs}
	body := map[string]interface{}{}
	if localGenreType(payload.MediaType) == "movie" {
		body["movies"] = []interface{}{entry}
	} else {
		body["shows"] = []interface{}{entry}
	}

	if _, err := s.tokens.AuthenticatedPost(ctx, req.Username, "/sync/history", body); err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, map[string]string{"marked": "true"}, 0)
}

// apiPathType maps catalog-facing media types onto Trakt URL path segments.
func apiPathType(mediaType string) string {
	if localGenreType(mediaType) == "movie" {
		return "movies"
	}
	return "shows"
}
