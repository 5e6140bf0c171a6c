// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package fanart resolves artwork logos for media items. Logo lookups are
// best-effort decoration: any failure degrades to an empty URL and never
// propagates to the caller's response.
package fanart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchgate/watchgate/internal/logging"
)

// Logo is one logo candidate from the artwork provider.
type Logo struct {
	URL   string `json:"url"`
	Lang  string `json:"lang"`
	Likes int    `json:"likes,string"`
}

// moviePayload is the movie artwork response; only logo sections are kept.
type moviePayload struct {
	HDMovieLogo []Logo `json:"hdmovielogo"`
	MovieLogo   []Logo `json:"movielogo"`
}

// tvPayload is the TV artwork response.
type tvPayload struct {
	HDTVLogo []Logo `json:"hdtvlogo"`
	TVLogo   []Logo `json:"clearlogo"`
}

// Client fetches logos from the fanart.tv web service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a fanart client. An empty apiKey disables lookups; every
// call then returns an empty URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetMovieLogo returns the best logo URL for a movie by tmdb or imdb id, or
// "" when none is available.
func (c *Client) GetMovieLogo(ctx context.Context, id, preferredLang string) string {
	var payload moviePayload
	if !c.fetch(ctx, "/movies/"+id, &payload) {
		return ""
	}
	candidates := append(payload.HDMovieLogo, payload.MovieLogo...)
	return PickLogo(candidates, preferredLang)
}

// GetShowLogo returns the best logo URL for a show by thetvdb id, or "" when
// none is available.
func (c *Client) GetShowLogo(ctx context.Context, id, preferredLang string) string {
	var payload tvPayload
	if !c.fetch(ctx, "/tv/"+id, &payload) {
		return ""
	}
	candidates := append(payload.HDTVLogo, payload.TVLogo...)
	return PickLogo(candidates, preferredLang)
}

// fetch loads one artwork payload. Returns false on any failure.
func (c *Client) fetch(ctx context.Context, endpoint string, out interface{}) bool {
	if c.apiKey == "" {
		return false
	}

	reqURL := fmt.Sprintf("%s%s?api_key=%s", c.baseURL, endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		logging.Warn().Err(err).Msg("Fanart request build failed")
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Warn().Err(err).Msg("Fanart request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 404 just means no artwork exists for the item.
		if resp.StatusCode != http.StatusNotFound {
			logging.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("Fanart lookup failed")
		}
		return false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.Warn().Err(err).Msg("Fanart response read failed")
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logging.Warn().Err(err).Msg("Fanart response decode failed")
		return false
	}
	return true
}

// PickLogo selects the most-liked logo in the preferred language, falling
// back to the most-liked English logo, then to "". The returned URL is
// normalized to https.
func PickLogo(logos []Logo, preferredLang string) string {
	best := bestByLang(logos, preferredLang)
	if best == nil && preferredLang != "en" {
		best = bestByLang(logos, "en")
	}
	if best == nil {
		return ""
	}
	return strings.Replace(best.URL, "http://", "https://", 1)
}

func bestByLang(logos []Logo, lang string) *Logo {
	var best *Logo
	for i := range logos {
		if logos[i].Lang != lang {
			continue
		}
		if best == nil || logos[i].Likes > best.Likes {
			best = &logos[i]
		}
	}
	return best
}
