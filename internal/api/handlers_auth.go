// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/tokens"
)

// timeoutContext derives a bounded context for handler work.
func timeoutContext(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

type authorizeRequest struct {
	Username string `validate:"required,username"`
}

// handleAuthorizeURL returns the Trakt authorization URL the client should
// open to start the linking flow. The username rides along as OAuth state.
func (s *Server) handleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	req := authorizeRequest{Username: r.URL.Query().Get("username")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	authorizeURL := fmt.Sprintf("https://trakt.tv/oauth/authorize?response_type=code&client_id=%s&redirect_uri=%s&state=%s",
		url.QueryEscape(s.cfg.Trakt.ClientID),
		url.QueryEscape(s.cfg.Trakt.RedirectURI),
		url.QueryEscape(req.Username),
	)
	respondData(w, r, map[string]string{"authorize_url": authorizeURL}, 0)
}

type callbackRequest struct {
	Code     string `validate:"required,min=8"`
	Username string `validate:"required,username"`
}

// handleOAuthCallback completes the linking flow: exchanges the code for a
// token pair and stores it. Re-linking resets the sync gate so the first
// sync runs immediately.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	req := callbackRequest{
		Code:     r.URL.Query().Get("code"),
		Username: r.URL.Query().Get("state"),
	}
	if req.Username == "" {
		req.Username = r.URL.Query().Get("username")
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, cancel := timeoutContext(r, 30*time.Second)
	defer cancel()

	token, err := s.trakt.ExchangeCode(ctx, req.Code)
	if err != nil {
		respondError(w, http.StatusBadGateway, "OAUTH_EXCHANGE_FAILED", "Authorization code exchange failed", err)
		return
	}

	// Best-effort identity check: the linked Trakt profile is logged so a
	// mismatched state parameter is visible in the audit trail.
	if profile, err := s.trakt.FetchUserProfile(ctx, token.AccessToken); err != nil {
		logging.Warn().Err(err).Str("username", req.Username).Msg("Could not fetch Trakt profile after linking")
	} else if profile.Username != "" && profile.Username != req.Username {
		logging.Warn().
			Str("username", req.Username).
			Str("trakt_username", profile.Username).
			Msg("Linked Trakt profile name differs from catalog username")
	}

	pair := tokens.Pair{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if err := s.db.SaveTokens(ctx, req.Username, pair); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to store token pair", err)
		return
	}

	logging.Info().Str("username", req.Username).Msg("Trakt account linked")
	respondData(w, r, map[string]string{"username": req.Username, "linked": "true"}, 0)
}

// handleUnlink removes a user's token pair and mirrored history.
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	ctx, cancel := timeoutContext(r, 10*time.Second)
	defer cancel()

	if err := s.db.DeleteTokens(ctx, username); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to unlink account", err)
		return
	}

	logging.Info().Str("username", username).Msg("Trakt account unlinked")
	respondData(w, r, map[string]string{"username": username, "linked": "false"}, 0)
}
