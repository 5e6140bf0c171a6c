// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// feedPageLimit is the page size requested from Trakt listing endpoints.
const feedPageLimit = 100

// FetchUserProfile returns the profile of the authenticated user.
func (c *Client) FetchUserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	data, err := c.FetchData(ctx, "/users/me", nil, accessToken)
	if err != nil {
		return nil, err
	}
	var profile UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	return &profile, nil
}

// FetchTrendingItems returns the current trending feed for one media type,
// optionally filtered by genre slug.
func (c *Client) FetchTrendingItems(ctx context.Context, mediaType, genre string, page int) ([]TrendingItem, error) {
	return c.fetchItemFeed(ctx, fmt.Sprintf("/%s/trending", apiMediaType(mediaType)), genre, page)
}

// FetchPopularItems returns the all-time popular feed for one media type.
// Trakt's popular endpoints return bare media objects rather than wrapped
// ones; the result is normalized to the TrendingItem shape.
func (c *Client) FetchPopularItems(ctx context.Context, mediaType, genre string, page int) ([]TrendingItem, error) {
	params := feedParams(genre, page)
	data, err := c.FetchData(ctx, fmt.Sprintf("/%s/popular", apiMediaType(mediaType)), params, "")
	if err != nil {
		return nil, err
	}
	var media []MediaItem
	if err := json.Unmarshal(data, &media); err != nil {
		return nil, fmt.Errorf("decode popular feed: %w", err)
	}

	items := make([]TrendingItem, 0, len(media))
	isMovie := localMediaType(mediaType) == "movie"
	for i := range media {
		item := TrendingItem{}
		if isMovie {
			item.Movie = &media[i]
		} else {
			item.Show = &media[i]
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) fetchItemFeed(ctx context.Context, endpoint, genre string, page int) ([]TrendingItem, error) {
	data, err := c.FetchData(ctx, endpoint, feedParams(genre, page), "")
	if err != nil {
		return nil, err
	}
	var items []TrendingItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode item feed: %w", err)
	}
	return items, nil
}

func feedParams(genre string, page int) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(feedPageLimit))
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if genre != "" {
		params.Set("genres", genre)
	}
	return params
}

// FetchTrendingLists returns the currently trending user lists.
func (c *Client) FetchTrendingLists(ctx context.Context, page int) ([]ListSummary, error) {
	return c.fetchListFeed(ctx, "/lists/trending", nil, page)
}

// FetchPopularLists returns the most popular user lists.
func (c *Client) FetchPopularLists(ctx context.Context, page int) ([]ListSummary, error) {
	return c.fetchListFeed(ctx, "/lists/popular", nil, page)
}

// SearchLists searches user lists by free-text query.
func (c *Client) SearchLists(ctx context.Context, query string, page int) ([]ListSummary, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.fetchListFeed(ctx, "/search/list", params, page)
}

func (c *Client) fetchListFeed(ctx context.Context, endpoint string, params url.Values, page int) ([]ListSummary, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("limit", strconv.Itoa(feedPageLimit))
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	data, err := c.FetchData(ctx, endpoint, params, "")
	if err != nil {
		return nil, err
	}
	var lists []ListSummary
	if err := json.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("decode list feed: %w", err)
	}
	return lists, nil
}

// FetchListByID returns one list's metadata by its Trakt id.
func (c *Client) FetchListByID(ctx context.Context, listID string) (*List, error) {
	data, err := c.FetchData(ctx, "/lists/"+url.PathEscape(listID), nil, "")
	if err != nil {
		return nil, err
	}
	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return &list, nil
}

// FetchListItems returns the items of a list, sorted per the list's own
// sort_by/sort_how preferences. Trakt serves list items in rank order
// regardless of the preference, so the sort happens here.
func (c *Client) FetchListItems(ctx context.Context, listID, mediaType string, page int) ([]ListItem, error) {
	list, err := c.FetchListByID(ctx, listID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/lists/%s/items/%s", url.PathEscape(listID), apiMediaType(mediaType))
	params := url.Values{}
	params.Set("limit", strconv.Itoa(feedPageLimit))
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	data, err := c.FetchData(ctx, endpoint, params, "")
	if err != nil {
		return nil, err
	}
	var items []ListItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode list items: %w", err)
	}

	sortListItems(items, list.SortBy, list.SortHow)
	return items, nil
}

// sortListItems orders items by the list owner's preference. Unknown sort
// keys leave the rank order untouched.
func sortListItems(items []ListItem, sortBy, sortHow string) {
	var less func(a, b *ListItem) bool
	switch sortBy {
	case "", "rank":
		less = func(a, b *ListItem) bool { return a.Rank < b.Rank }
	case "added", "listed_at":
		less = func(a, b *ListItem) bool { return a.ListedAt.Before(b.ListedAt) }
	case "title":
		less = func(a, b *ListItem) bool {
			return strings.ToLower(mediaTitle(a)) < strings.ToLower(mediaTitle(b))
		}
	case "year", "released":
		less = func(a, b *ListItem) bool { return mediaYear(a) < mediaYear(b) }
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		if sortHow == "desc" {
			return less(&items[j], &items[i])
		}
		return less(&items[i], &items[j])
	})
}

func mediaTitle(item *ListItem) string {
	if m := item.Media(); m != nil {
		return m.Title
	}
	return ""
}

func mediaYear(item *ListItem) int {
	if m := item.Media(); m != nil {
		return m.Year
	}
	return 0
}

// SortWatchlist orders watchlist items by the user's watchlist preference,
// using the same sort keys as list items.
func SortWatchlist(items []WatchlistItem, sortBy, sortHow string) {
	var less func(a, b *WatchlistItem) bool
	switch sortBy {
	case "", "rank":
		less = func(a, b *WatchlistItem) bool { return a.Rank < b.Rank }
	case "added", "listed_at":
		less = func(a, b *WatchlistItem) bool { return a.ListedAt.Before(b.ListedAt) }
	case "title":
		less = func(a, b *WatchlistItem) bool {
			return strings.ToLower(watchlistTitle(a)) < strings.ToLower(watchlistTitle(b))
		}
	case "year", "released":
		less = func(a, b *WatchlistItem) bool { return watchlistYear(a) < watchlistYear(b) }
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		if sortHow == "desc" {
			return less(&items[j], &items[i])
		}
		return less(&items[i], &items[j])
	})
}

func watchlistTitle(item *WatchlistItem) string {
	if m := item.Media(); m != nil {
		return m.Title
	}
	return ""
}

func watchlistYear(item *WatchlistItem) int {
	if m := item.Media(); m != nil {
		return m.Year
	}
	return 0
}

// FetchGenres returns the genre catalog for one media type.
func (c *Client) FetchGenres(ctx context.Context, mediaType string) ([]Genre, error) {
	data, err := c.FetchData(ctx, "/genres/"+apiMediaType(mediaType), nil, "")
	if err != nil {
		return nil, err
	}
	var genres []Genre
	if err := json.Unmarshal(data, &genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	return genres, nil
}

// LookupTraktID resolves an external id (imdb, tmdb, tvdb) to Trakt media.
func (c *Client) LookupTraktID(ctx context.Context, idType, id, mediaType string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("/search/%s/%s", url.PathEscape(idType), url.PathEscape(id))
	params := url.Values{}
	if mediaType != "" {
		params.Set("type", localMediaType(mediaType))
	}
	data, err := c.FetchData(ctx, endpoint, params, "")
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode id lookup: %w", err)
	}
	return results, nil
}

