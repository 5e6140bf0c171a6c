// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package trakt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWatchedItemExternalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item WatchedItem
		want string
	}{
		{
			name: "imdb preferred",
			item: WatchedItem{Movie: &MediaItem{IDs: IDs{IMDB: "tt0133093", TMDB: 603}}},
			want: "tt0133093",
		},
		{
			name: "tmdb fallback",
			item: WatchedItem{Movie: &MediaItem{IDs: IDs{TMDB: 603}}},
			want: "603",
		},
		{
			name: "show union side",
			item: WatchedItem{Show: &MediaItem{IDs: IDs{IMDB: "tt0903747"}}},
			want: "tt0903747",
		},
		{
			name: "no usable id",
			item: WatchedItem{Movie: &MediaItem{IDs: IDs{Trakt: 42}}},
			want: "",
		},
		{
			name: "empty union",
			item: WatchedItem{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.item.ExternalID(); got != tt.want {
				t.Errorf("ExternalID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortListItems(t *testing.T) {
	t.Parallel()

	base := func() []ListItem {
		return []ListItem{
			{Rank: 1, ListedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Movie: &MediaItem{Title: "Zodiac", Year: 2007}},
			{Rank: 2, ListedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Movie: &MediaItem{Title: "alien", Year: 1979}},
			{Rank: 3, ListedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Movie: &MediaItem{Title: "Heat", Year: 1995}},
		}
	}

	tests := []struct {
		name       string
		sortBy     string
		sortHow    string
		wantTitles []string
	}{
		{"default rank", "", "", []string{"Zodiac", "alien", "Heat"}},
		{"rank desc", "rank", "desc", []string{"Heat", "alien", "Zodiac"}},
		{"added asc", "added", "asc", []string{"alien", "Heat", "Zodiac"}},
		{"title case-insensitive", "title", "asc", []string{"alien", "Heat", "Zodiac"}},
		{"year desc", "year", "desc", []string{"Zodiac", "Heat", "alien"}},
		{"unknown key keeps rank order", "popularity", "asc", []string{"Zodiac", "alien", "Heat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items := base()
			sortListItems(items, tt.sortBy, tt.sortHow)
			for i, want := range tt.wantTitles {
				if got := items[i].Media().Title; got != want {
					t.Errorf("position %d: got %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestFetchPopularItemsNormalizesShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("genres"); got != "thriller" {
			t.Errorf("genres param = %q, want %q", got, "thriller")
		}
		w.Write([]byte(`[{"title":"Se7en","year":1995,"ids":{"imdb":"tt0114369"}}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	items, err := client.FetchPopularItems(context.Background(), "movie", "thriller", 1)
	if err != nil {
		t.Fatalf("fetch popular: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].Movie == nil || items[0].Movie.Title != "Se7en" {
		t.Errorf("movie side not populated: %+v", items[0])
	}
}

func TestFetchListItemsAppliesListSortPreference(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lists/99":
			w.Write([]byte(`{"name":"Noir","ids":{"trakt":99},"sort_by":"year","sort_how":"desc"}`))
		case "/lists/99/items/movies":
			w.Write([]byte(`[
				{"rank":1,"type":"movie","movie":{"title":"Old","year":1950,"ids":{"imdb":"tt1"}}},
				{"rank":2,"type":"movie","movie":{"title":"New","year":2020,"ids":{"imdb":"tt2"}}}
			]`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	items, err := client.FetchListItems(context.Background(), "99", "movie", 1)
	if err != nil {
		t.Fatalf("fetch list items: %v", err)
	}
	if len(items) != 2 || items[0].Media().Title != "New" {
		t.Fatalf("expected year-descending order, got %+v", items)
	}
}

func TestFetchGenres(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/genres/shows" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"name":"Science Fiction","slug":"science-fiction"}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	genres, err := client.FetchGenres(context.Background(), "series")
	if err != nil {
		t.Fatalf("fetch genres: %v", err)
	}
	if len(genres) != 1 || genres[0].Slug != "science-fiction" {
		t.Fatalf("unexpected genres %+v", genres)
	}
}

func TestLookupTraktID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/imdb/tt0133093" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("type"); got != "movie" {
			t.Errorf("type param = %q, want movie", got)
		}
		w.Write([]byte(`[{"type":"movie","score":1000,"movie":{"title":"The Matrix","year":1999,"ids":{"trakt":481,"imdb":"tt0133093"}}}]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL)
	results, err := client.LookupTraktID(context.Background(), "imdb", "tt0133093", "movie")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(results) != 1 || results[0].Movie.IDs.Trakt != 481 {
		t.Fatalf("unexpected results %+v", results)
	}
}
