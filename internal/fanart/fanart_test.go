// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

package fanart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPickLogo(t *testing.T) {
	t.Parallel()

	logos := []Logo{
		{URL: "http://assets.example/fr-5.png", Lang: "fr", Likes: 5},
		{URL: "http://assets.example/en-10.png", Lang: "en", Likes: 10},
		{URL: "http://assets.example/en-20.png", Lang: "en", Likes: 20},
	}

	tests := []struct {
		name  string
		logos []Logo
		lang  string
		want  string
	}{
		{
			name:  "preferred language wins",
			logos: logos,
			lang:  "fr",
			want:  "https://assets.example/fr-5.png",
		},
		{
			name:  "english fallback picks most liked",
			logos: logos,
			lang:  "de",
			want:  "https://assets.example/en-20.png",
		},
		{
			name:  "most liked within preferred language",
			logos: logos,
			lang:  "en",
			want:  "https://assets.example/en-20.png",
		},
		{
			name:  "no match anywhere",
			logos: []Logo{{URL: "http://assets.example/ja.png", Lang: "ja", Likes: 99}},
			lang:  "de",
			want:  "",
		},
		{
			name:  "empty candidate set",
			logos: nil,
			lang:  "en",
			want:  "",
		},
		{
			name:  "https left untouched",
			logos: []Logo{{URL: "https://assets.example/en.png", Lang: "en", Likes: 1}},
			lang:  "en",
			want:  "https://assets.example/en.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PickLogo(tt.logos, tt.lang); got != tt.want {
				t.Errorf("PickLogo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetMovieLogoParsesStringLikes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movies/603" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key" {
			t.Errorf("missing api key")
		}
		// fanart.tv serves likes as JSON strings.
		w.Write([]byte(`{"hdmovielogo":[
			{"url":"http://assets.example/a.png","lang":"en","likes":"3"},
			{"url":"http://assets.example/b.png","lang":"en","likes":"12"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	got := client.GetMovieLogo(context.Background(), "603", "en")
	if got != "https://assets.example/b.png" {
		t.Errorf("GetMovieLogo() = %q", got)
	}
}

func TestGetShowLogoDegradesToEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key")
	if got := client.GetShowLogo(context.Background(), "81189", "en"); got != "" {
		t.Errorf("GetShowLogo() = %q, want empty on 404", got)
	}
}

func TestMissingAPIKeyDisablesLookups(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if got := client.GetMovieLogo(context.Background(), "603", "en"); got != "" {
		t.Errorf("GetMovieLogo() = %q, want empty without api key", got)
	}
	if called {
		t.Error("request made despite missing api key")
	}
}
