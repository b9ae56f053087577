package applemusic

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/osa030/musicshuffler/internal/app/expand"
	"github.com/osa030/musicshuffler/internal/domain/catalog"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

const recommendationsPath = "/v1/me/recommendations"

// Source serves personalized recommendations from Apple Music.
type Source struct {
	client *Client
}

// NewSource creates a new recommendation source.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "applemusic"
}

// Recommendations fetches the user's recommendation page and returns the
// albums and playlists it references.
func (s *Source) Recommendations(ctx context.Context) ([]catalog.Container, error) {
	body, err := s.client.get(ctx, recommendationsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}
	return expand.ParseRecommendations(body)
}

// ContainerTracks resolves an album or playlist into its songs, in
// container order. Relationship pages are followed until limit songs are
// loaded or the container ends.
func (s *Source) ContainerTracks(ctx context.Context, c catalog.Container, limit int) ([]track.Track, error) {
	body, err := s.client.getCached(ctx, withInclude(c.Ref))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s %s", c.Kind, c.ID)
	}

	res := gjson.GetBytes(body, "data.0")
	if !res.Exists() {
		return nil, errors.Newf("empty response for %s %s", c.Kind, c.ID)
	}
	artwork := res.Get("attributes.artwork.url").String()
	if artwork == "" {
		artwork = c.ArtworkURL
	}

	rel := res.Get("relationships.tracks")
	tracks := parseSongs(rel.Get("data"), artwork)

	seen := make(map[string]bool)
	next := rel.Get("next").String()
	for next != "" && !seen[next] && (limit <= 0 || len(tracks) < limit) {
		seen[next] = true
		pageBody, err := s.client.getCached(ctx, next)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get tracks page of %s %s", c.Kind, c.ID)
		}
		tracks = append(tracks, parseSongs(gjson.GetBytes(pageBody, "data"), artwork)...)
		next = gjson.GetBytes(pageBody, "next").String()
	}
	return tracks, nil
}

func withInclude(ref string) string {
	if strings.Contains(ref, "include=") {
		return ref
	}
	if strings.Contains(ref, "?") {
		return ref + "&include=tracks"
	}
	return ref + "?include=tracks"
}

// parseSongs converts song resources. Music videos and other kinds are skipped.
func parseSongs(data gjson.Result, fallbackArtwork string) []track.Track {
	var tracks []track.Track
	data.ForEach(func(_, item gjson.Result) bool {
		kind := item.Get("type").String()
		if kind != track.Kind && kind != "library-songs" {
			return true
		}
		id := item.Get("id").String()
		if id == "" {
			return true
		}

		attrs := item.Get("attributes")
		artwork := attrs.Get("artwork.url").String()
		if artwork == "" {
			artwork = fallbackArtwork
		}
		tracks = append(tracks, track.Track{
			ID:                 id,
			Kind:               track.Kind,
			Title:              attrs.Get("name").String(),
			ArtistName:         attrs.Get("artistName").String(),
			AlbumName:          attrs.Get("albumName").String(),
			Genre:              primaryGenre(attrs.Get("genreNames")),
			DurationSeconds:    track.DurationSeconds(time.Duration(attrs.Get("durationInMillis").Int()) * time.Millisecond),
			ArtworkURLTemplate: artwork,
			ContentRating:      attrs.Get("contentRating").String(),
			URL:                attrs.Get("url").String(),
			RawAttributes:      json.RawMessage(attrs.Raw),
		})
		return true
	})
	return tracks
}

// primaryGenre returns the first specific genre. "Music" is the catch-all
// parent genre and is only used when nothing else is listed.
func primaryGenre(names gjson.Result) string {
	var fallback string
	for _, g := range names.Array() {
		name := g.String()
		if name == "" {
			continue
		}
		if name != "Music" {
			return name
		}
		fallback = name
	}
	return fallback
}
