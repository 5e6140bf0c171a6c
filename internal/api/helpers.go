// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchgate/watchgate/internal/logging"
	"github.com/watchgate/watchgate/internal/models"
	"github.com/watchgate/watchgate/internal/tokens"
	"github.com/watchgate/watchgate/internal/trakt"
	"github.com/watchgate/watchgate/internal/validation"
)

// sanitizeLogValue replaces control characters so request-derived strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps a payload in the success envelope.
func respondData(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			Count:     count,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondUpstreamError maps the error taxonomy onto HTTP statuses: broken
// credentials ask the client to re-link, transient upstream conditions (open
// breaker, 5xx, rate limiting) map to 503, everything else is a 502 from the
// mediation layer.
func respondUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tokens.ErrNotLinked):
		respondError(w, http.StatusNotFound, "NOT_LINKED", "User has no linked Trakt account", err)
	case errors.Is(err, tokens.ErrRefreshFailed):
		respondError(w, http.StatusUnauthorized, "REAUTH_REQUIRED", "Stored credentials expired, re-authorization required", err)
	case trakt.IsTransient(err):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Trakt API temporarily unavailable", err)
	case trakt.IsUnauthorized(err):
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Trakt rejected the request", err)
	default:
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Trakt request failed", err)
	}
}

// validateRequest validates a struct and converts failures to the API
// error envelope.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
