// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"strconv"
	"time"
)

// IDs is the identifier namespace block Trakt attaches to every media object.
type IDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// MediaItem is a movie or show payload. Trakt returns the same shape for
// both; the wrapper object tells them apart.
type MediaItem struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// WatchedItem is one entry of a user's watched-history feed. Exactly one of
// Movie or Show is set; the accessors resolve the union once so callers never
// branch on payload shape.
type WatchedItem struct {
	Plays         int        `json:"plays"`
	LastWatchedAt time.Time  `json:"last_watched_at"`
	Movie         *MediaItem `json:"movie,omitempty"`
	Show          *MediaItem `json:"show,omitempty"`
}

// Media returns the populated side of the union, or nil for a malformed item.
func (w *WatchedItem) Media() *MediaItem {
	if w.Movie != nil {
		return w.Movie
	}
	return w.Show
}

// MediaType returns "movie" or "show" based on which side is populated.
func (w *WatchedItem) MediaType() string {
	if w.Movie != nil {
		return "movie"
	}
	return "show"
}

// ExternalID returns the preferred stable identifier for the item: the IMDB
// id when present, otherwise the TMDB id rendered as a string. Returns empty
// when the item carries neither.
func (w *WatchedItem) ExternalID() string {
	media := w.Media()
	if media == nil {
		return ""
	}
	if media.IDs.IMDB != "" {
		return media.IDs.IMDB
	}
	if media.IDs.TMDB != 0 {
		return strconv.Itoa(media.IDs.TMDB)
	}
	return ""
}

// TrendingItem wraps a media object with its current watcher count.
type TrendingItem struct {
	Watchers int        `json:"watchers"`
	Movie    *MediaItem `json:"movie,omitempty"`
	Show     *MediaItem `json:"show,omitempty"`
}

// Media returns the populated side of the union.
func (t *TrendingItem) Media() *MediaItem {
	if t.Movie != nil {
		return t.Movie
	}
	return t.Show
}

// List is a Trakt user list.
type List struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Privacy        string    `json:"privacy"`
	ItemCount      int       `json:"item_count"`
	Likes          int       `json:"likes"`
	UpdatedAt      time.Time `json:"updated_at"`
	IDs            IDs       `json:"ids"`
	SortBy         string    `json:"sort_by,omitempty"`
	SortHow        string    `json:"sort_how,omitempty"`
	CommentCount   int       `json:"comment_count"`
	DisplayNumbers bool      `json:"display_numbers"`
}

// ListSummary wraps a list with its popularity counters as returned by the
// trending/popular/search list endpoints.
type ListSummary struct {
	LikeCount    int  `json:"like_count"`
	CommentCount int  `json:"comment_count"`
	List         List `json:"list"`
}

// ListItem is one entry of a list's items feed.
type ListItem struct {
	Rank     int        `json:"rank"`
	ListedAt time.Time  `json:"listed_at"`
	Type     string     `json:"type"`
	Movie    *MediaItem `json:"movie,omitempty"`
	Show     *MediaItem `json:"show,omitempty"`
}

// Media returns the populated side of the union.
func (l *ListItem) Media() *MediaItem {
	if l.Movie != nil {
		return l.Movie
	}
	return l.Show
}

// WatchlistItem is one entry of a user's watchlist.
type WatchlistItem struct {
	Rank     int        `json:"rank"`
	ListedAt time.Time  `json:"listed_at"`
	Notes    string     `json:"notes,omitempty"`
	Type     string     `json:"type"`
	Movie    *MediaItem `json:"movie,omitempty"`
	Show     *MediaItem `json:"show,omitempty"`
}

// Media returns the populated side of the union.
func (w *WatchlistItem) Media() *MediaItem {
	if w.Movie != nil {
		return w.Movie
	}
	return w.Show
}

// Genre is one entry of the immutable genre reference catalog.
type Genre struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UserProfile is the authenticated user's profile.
type UserProfile struct {
	Username string `json:"username"`
	Private  bool   `json:"private"`
	Name     string `json:"name"`
	VIP      bool   `json:"vip"`
	IDs      struct {
		Slug string `json:"slug"`
	} `json:"ids"`
}

// TokenResponse is the OAuth token endpoint payload for both the
// authorization-code exchange and the refresh grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// SearchResult is one entry of an id-lookup response.
type SearchResult struct {
	Type  string     `json:"type"`
	Score float64    `json:"score"`
	Movie *MediaItem `json:"movie,omitempty"`
	Show  *MediaItem `json:"show,omitempty"`
}

// apiMediaType converts the catalog-facing type names ("movie", "series") to
// the plural forms Trakt's URL paths use.
func apiMediaType(mediaType string) string {
	switch mediaType {
	case "movie":
		return "movies"
	case "series", "show":
		return "shows"
	default:
		return mediaType
	}
}

// localMediaType converts the catalog-facing type names to the singular forms
// stored in the history table.
func localMediaType(mediaType string) string {
	switch mediaType {
	case "movies", "movie":
		return "movie"
	case "series", "shows", "show":
		return "show"
	default:
		return mediaType
	}
}
