// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/watchgate/watchgate/internal/logging"
)

// tokenRequest is the OAuth token endpoint payload. Code is set for the
// authorization-code grant, RefreshToken for the refresh grant.
type tokenRequest struct {
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}

// ExchangeCode trades an authorization code for a token pair. The response
// is never cached.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	return c.requestToken(ctx, tokenRequest{
		Code:         code,
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURI:  c.redirectURI,
		GrantType:    "authorization_code",
	})
}

// RefreshToken trades a refresh token for a fresh token pair. The response
// is never cached.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, tokenRequest{
		RefreshToken: refreshToken,
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURI:  c.redirectURI,
		GrantType:    "refresh_token",
	})
}

func (c *Client) requestToken(ctx context.Context, req tokenRequest) (*TokenResponse, error) {
	data, err := c.postNoCache(ctx, "/oauth/token", req)
	if err != nil {
		return nil, fmt.Errorf("oauth token request (%s): %w", req.GrantType, err)
	}

	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return nil, fmt.Errorf("oauth token response missing tokens (%s)", req.GrantType)
	}

	logging.Debug().Str("grant_type", req.GrantType).Msg("OAuth token grant succeeded")
	return &token, nil
}
