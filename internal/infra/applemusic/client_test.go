package applemusic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/domain/catalog"
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

func newTestClient(t *testing.T, handler http.Handler, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

const albumBody = `{"data":[{"id":"a1","type":"albums","attributes":{"name":"Album","artwork":{"url":"https://img/a1/{w}x{h}.jpg"}},
"relationships":{"tracks":{"data":[
 {"id":"s1","type":"songs","attributes":{"name":"One","artistName":"Artist","albumName":"Album","durationInMillis":201000,"genreNames":["Music","Rock"],"contentRating":"explicit"}},
 {"id":"v1","type":"music-videos","attributes":{"name":"Video"}},
 {"id":"s2","type":"songs","attributes":{"name":"Two","artistName":"Artist","artwork":{"url":"https://img/s2/{w}x{h}.jpg"}}}
],"next":"/v1/catalog/us/albums/a1/tracks?offset=3"}}}]}`

const albumPage2 = `{"data":[{"id":"s3","type":"songs","attributes":{"name":"Three","artistName":"Artist","durationInMillis":60000,"genreNames":["Music"]}}]}`

func TestSource_ContainerTracks(t *testing.T) {
	var albumHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/us/albums/a1", func(w http.ResponseWriter, r *http.Request) {
		albumHits.Add(1)
		assert.Equal(t, "tracks", r.URL.Query().Get("include"))
		assert.Equal(t, "Bearer dev", r.Header.Get("Authorization"))
		assert.Equal(t, "user-tok", r.Header.Get(UserTokenHeader))
		_, _ = io.WriteString(w, albumBody)
	})
	mux.HandleFunc("/v1/catalog/us/albums/a1/tracks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("offset"))
		_, _ = io.WriteString(w, albumPage2)
	})
	c := newTestClient(t, mux, Config{DeveloperToken: "dev", UserToken: "user-tok", CacheSize: 8})
	src := NewSource(c)

	container := catalog.Container{ID: "a1", Kind: catalog.KindAlbum, Ref: "/v1/catalog/us/albums/a1", TrackCount: 3}
	tracks, err := src.ContainerTracks(context.Background(), container, 0)
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	assert.Equal(t, "s1", tracks[0].ID)
	assert.Equal(t, track.Kind, tracks[0].Kind)
	assert.Equal(t, 201, tracks[0].DurationSeconds)
	assert.Equal(t, "Rock", tracks[0].Genre)
	assert.True(t, tracks[0].IsExplicit())
	assert.Equal(t, "https://img/a1/{w}x{h}.jpg", tracks[0].ArtworkURLTemplate)
	assert.Contains(t, string(tracks[0].RawAttributes), `"artistName":"Artist"`)

	assert.Equal(t, track.DefaultDurationSeconds, tracks[1].DurationSeconds)
	assert.Equal(t, "https://img/s2/{w}x{h}.jpg", tracks[1].ArtworkURLTemplate)
	assert.Equal(t, "Music", tracks[2].Genre)

	_, err = src.ContainerTracks(context.Background(), container, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), albumHits.Load(), "second fetch served from cache")
}

// pagedPlaylist serves a playlist of pages*2 songs, two per page.
func pagedPlaylist(pages int, pageHits *atomic.Int32) http.Handler {
	songs := func(page int) string {
		return fmt.Sprintf(`[{"id":"s%d","type":"songs","attributes":{"name":"A"}},{"id":"s%d","type":"songs","attributes":{"name":"B"}}]`,
			page*2, page*2+1)
	}
	next := func(page int) string {
		if page+1 >= pages {
			return ""
		}
		return fmt.Sprintf(`/v1/catalog/us/playlists/p1/tracks?offset=%d`, (page+1)*2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/us/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"id":"p1","type":"playlists","relationships":{"tracks":{"data":%s,"next":%q}}}]}`, songs(0), next(0))
	})
	mux.HandleFunc("/v1/catalog/us/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := offset / 2
		fmt.Fprintf(w, `{"data":%s,"next":%q}`, songs(page), next(page))
	})
	return mux
}

func TestSource_ContainerTracksStopsAtLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantPages int32
		wantLen   int
	}{
		{name: "first page covers limit", limit: 2, wantPages: 0, wantLen: 2},
		{name: "one more page", limit: 3, wantPages: 1, wantLen: 4},
		{name: "past the end", limit: 50, wantPages: 4, wantLen: 10},
		{name: "no limit", limit: 0, wantPages: 4, wantLen: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pageHits atomic.Int32
			c := newTestClient(t, pagedPlaylist(5, &pageHits), Config{UserToken: "u"})
			container := catalog.Container{ID: "p1", Kind: catalog.KindPlaylist, Ref: "/v1/catalog/us/playlists/p1"}

			tracks, err := NewSource(c).ContainerTracks(context.Background(), container, tt.limit)
			require.NoError(t, err)
			assert.Len(t, tracks, tt.wantLen)
			assert.Equal(t, tt.wantPages, pageHits.Load())
		})
	}
}

func TestSource_ContainerTracksIgnoresForeignLinks(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer foreign.Close()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"id":"p1","type":"playlists","relationships":{"tracks":{"data":[],"next":%q}}}]}`,
			foreign.URL+"/v1/catalog/us/playlists/p1/tracks?offset=100")
	}), Config{DeveloperToken: "dev", UserToken: "u"})
	container := catalog.Container{ID: "p1", Kind: catalog.KindPlaylist, Ref: "/v1/catalog/us/playlists/p1"}

	_, err := NewSource(c).ContainerTracks(context.Background(), container, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to follow link")
	assert.Equal(t, int32(0), foreignHits.Load())
}

func TestClient_Resolve(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:8787/"})
	require.NoError(t, err)

	got, err := c.resolve("v1/me/storefront")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8787/v1/me/storefront", got)

	got, err = c.resolve("http://localhost:8787/v1/me/library/playlists?offset=100")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8787/v1/me/library/playlists?offset=100", got)

	_, err = c.resolve("https://localhost:8787/v1/me/storefront")
	assert.Error(t, err, "scheme differs")
	_, err = c.resolve("http://tracker.example/v1/me/storefront")
	assert.Error(t, err, "host differs")
}

func TestSource_Recommendations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/recommendations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"r1","type":"personal-recommendation","relationships":{"contents":{"data":[
			{"id":"a1","type":"albums","href":"/v1/catalog/us/albums/a1","attributes":{"name":"Album","trackCount":10}},
			{"id":"p1","type":"playlists","href":"/v1/catalog/us/playlists/p1","attributes":{"name":"Mix","trackCount":0}}
		]}}}]}`)
	})
	c := newTestClient(t, mux, Config{UserToken: "user-tok"})

	containers, err := NewSource(c).Recommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "a1", containers[0].ID)
	assert.Equal(t, 10, containers[0].TrackCount)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
		wantAuth bool
	}{
		{
			name:     "proxy envelope",
			status:   http.StatusUnauthorized,
			body:     `{"error":"unauthorized","message":"Music user token expired","details":"token age"}`,
			wantCode: "unauthorized",
			wantMsg:  "Music user token expired",
			wantAuth: true,
		},
		{
			name:     "api errors array",
			status:   http.StatusForbidden,
			body:     `{"errors":[{"code":"40300","title":"Forbidden","detail":"Invalid token"}]}`,
			wantCode: "40300",
			wantMsg:  "Forbidden",
			wantAuth: true,
		},
		{
			name:    "non json body",
			status:  http.StatusNotFound,
			body:    "nope",
			wantMsg: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}), Config{})

			_, err := c.get(context.Background(), "/v1/me/recommendations")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apperr.StatusCode(err))
			assert.Equal(t, tt.wantAuth, apperr.IsAuthError(err))
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}), Config{})

	body, err := c.get(context.Background(), "/v1/me/recommendations")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), Config{})

	_, err := c.get(context.Background(), "/v1/me/storefront")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextUserTokenWins(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "from-request", r.Header.Get(UserTokenHeader))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{}`)
	}), Config{UserToken: "static"})

	_, err := c.get(ContextWithUserToken(context.Background(), "from-request"), "/v1/me/storefront")
	require.NoError(t, err)
}

func TestLibrary_ListPlaylists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			_, _ = io.WriteString(w, `{"data":[{"id":"p.1","attributes":{"name":"First"}}],"next":"/v1/me/library/playlists?offset=100"}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"p.2","attributes":{"name":"Second"}}]}`)
	})
	c := newTestClient(t, mux, Config{UserToken: "u"})

	got, err := NewLibrary(c).ListPlaylists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []playlist.Summary{{ID: "p.1", Name: "First"}, {ID: "p.2", Name: "Second"}}, got)
}

func TestLibrary_CreatePlaylist(t *testing.T) {
	var received map[string]any
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"data":[{"id":"p.new"}]}}`)
	})
	c := newTestClient(t, mux, Config{UserToken: "u"})

	sub := playlist.Submission{
		Name:   "  Road Trip ",
		Tracks: []track.Track{track.New("s1", "One", "A", time.Minute), track.New("s2", "Two", "B", time.Minute)},
	}
	id, err := NewLibrary(c).CreatePlaylist(context.Background(), sub, "desc")
	require.NoError(t, err)
	assert.Equal(t, "p.new", id)
	assert.Equal(t, int32(1), calls.Load())

	attrs := received["attributes"].(map[string]any)
	assert.Equal(t, "Road Trip", attrs["name"])
	assert.Equal(t, "desc", attrs["description"])
	assert.Equal(t, false, attrs["isPublic"])

	data := received["relationships"].(map[string]any)["tracks"].(map[string]any)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, map[string]any{"id": "s1", "type": "songs"}, data[0])
	assert.Equal(t, map[string]any{"id": "s2", "type": "songs"}, data[1])
}

func TestLibrary_CreatePlaylistServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"upstream","message":"boom"}`)
	}), Config{UserToken: "u"})

	sub := playlist.Submission{Name: "x", Tracks: []track.Track{track.New("s1", "One", "A", time.Minute)}}
	_, err := NewLibrary(c).CreatePlaylist(context.Background(), sub, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}
