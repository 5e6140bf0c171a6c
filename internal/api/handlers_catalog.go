// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/trakt"
)

const catalogTimeout = 30 * time.Second

type catalogRequest struct {
	MediaType string `validate:"required,mediatype"`
	Username  string `validate:"omitempty,username"`
}

// handleTrending serves the trending feed for one media type, annotated
// with the caller's watch state when a username is supplied.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	s.serveItemFeed(w, r, s.trakt.FetchTrendingItems)
}

// handlePopular serves the popular feed for one media type.
func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	s.serveItemFeed(w, r, s.trakt.FetchPopularItems)
}

func (s *Server) serveItemFeed(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, mediaType, genre string, page int) ([]trakt.TrendingItem, error)) {
	req := catalogRequest{
		MediaType: chi.URLParam(r, "mediaType"),
		Username:  r.URL.Query().Get("username"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	items, err := fetch(ctx, req.MediaType, r.URL.Query().Get("genre"), getIntParam(r, "page", 1))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	s.annotateItems(ctx, req.Username, req.MediaType, trendingMedia(items))
	respondData(w, r, items, len(items))
}

// trendingMedia collects the populated media pointers for annotation.
func trendingMedia(items []trakt.TrendingItem) []*trakt.MediaItem {
	media := make([]*trakt.MediaItem, 0, len(items))
	for i := range items {
		if m := items[i].Media(); m != nil {
			media = append(media, m)
		}
	}
	return media
}

// annotateItems marks watched titles of one media type for the user.
// Annotation reads only the local mirror; failures degrade to unannotated
// output.
func (s *Server) annotateItems(ctx context.Context, username, mediaType string, media []*trakt.MediaItem) {
	if username == "" || len(media) == 0 {
		return
	}
	if err := s.history.Annotate(ctx, username, mediaType, media); err != nil {
		logging.Warn().Err(err).Str("username", username).Msg("Watch-state annotation failed")
	}
}

// handleTrendingLists serves the trending user lists feed.
func (s *Server) handleTrendingLists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	lists, err := s.trakt.FetchTrendingLists(ctx, getIntParam(r, "page", 1))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, lists, len(lists))
}

// handlePopularLists serves the popular user lists feed.
func (s *Server) handlePopularLists(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	lists, err := s.trakt.FetchPopularLists(ctx, getIntParam(r, "page", 1))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, lists, len(lists))
}

type searchListsRequest struct {
	Query string `validate:"required,min=2,max=200"`
}

// handleSearchLists searches user lists by free text.
func (s *Server) handleSearchLists(w http.ResponseWriter, r *http.Request) {
	req := searchListsRequest{Query: r.URL.Query().Get("query")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	lists, err := s.trakt.SearchLists(ctx, req.Query, getIntParam(r, "page", 1))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, lists, len(lists))
}

// handleListItems serves one list's items in the list owner's sort order,
// annotated with the caller's watch state.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	req := catalogRequest{
		MediaType: r.URL.Query().Get("type"),
		Username:  r.URL.Query().Get("username"),
	}
	if req.MediaType == "" {
		req.MediaType = "movie"
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	items, err := s.trakt.FetchListItems(ctx, chi.URLParam(r, "listID"), req.MediaType, getIntParam(r, "page", 1))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	media := make([]*trakt.MediaItem, 0, len(items))
	for i := range items {
		if m := items[i].Media(); m != nil {
			media = append(media, m)
		}
	}
	s.annotateItems(ctx, req.Username, req.MediaType, media)
	respondData(w, r, items, len(items))
}

// handleGenres serves the seeded genre catalog from local storage.
func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	req := catalogRequest{MediaType: chi.URLParam(r, "mediaType")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := timeoutContext(r, 10*time.Second)
	defer cancel()

	genres, err := s.db.ListGenres(ctx, localGenreType(req.MediaType))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load genres", err)
		return
	}
	respondData(w, r, genres, len(genres))
}

// localGenreType maps the route's media type onto the seeded rows.
func localGenreType(mediaType string) string {
	switch mediaType {
	case "movies", "movie":
		return "movie"
	default:
		return "show"
	}
}

// handleIDLookup resolves an external id to Trakt media.
func (s *Server) handleIDLookup(w http.ResponseWriter, r *http.Request) {
	idType := chi.URLParam(r, "idType")
	switch idType {
	case "imdb", "tmdb", "tvdb", "trakt":
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id type must be one of: imdb, tmdb, tvdb, trakt", nil)
		return
	}

	ctx, cancel := timeoutContext(r, catalogTimeout)
	defer cancel()

	results, err := s.trakt.LookupTraktID(ctx, idType, chi.URLParam(r, "id"), r.URL.Query().Get("type"))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondData(w, r, results, len(results))
}

// handleLogo resolves the best artwork logo for one item. Lookups are
// best-effort; a missing logo is a success with an empty URL.
func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	req := catalogRequest{MediaType: chi.URLParam(r, "mediaType")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}

	ctx, cancel := timeoutContext(r, 15*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	var logo string
	if localGenreType(req.MediaType) == "movie" {
		logo = s.fanart.GetMovieLogo(ctx, id, lang)
	} else {
		logo = s.fanart.GetShowLogo(ctx, id, lang)
	}
	respondData(w, r, map[string]string{"logo": logo}, 0)
}
