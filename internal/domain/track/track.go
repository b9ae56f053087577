// Package track provides the Track domain entity.
package track

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind is the resource kind of a playable track.
const Kind = "songs"

// DefaultDurationSeconds is used when the provider omits a track duration.
const DefaultDurationSeconds = 180

// Track represents a playable song resolved from a recommendation container.
// Immutable once produced.
type Track struct {
	ID                 string          // Provider catalog ID
	Kind               string          // Always "songs"
	Title              string          // Track name
	ArtistName         string          // Artist display name
	AlbumName          string          // Album name (may be empty)
	Genre              string          // Primary genre (may be empty)
	DurationSeconds    int             // Playback length in seconds
	ArtworkURLTemplate string          // Artwork URL with {w}/{h} placeholders (may be empty)
	ContentRating      string          // "explicit", "clean" or empty
	URL                string          // Provider URL
	RawAttributes      json.RawMessage // Provider attributes as received
}

// New creates a Track with the song kind and a normalized duration.
func New(id, title, artist string, duration time.Duration) Track {
	return Track{
		ID:              id,
		Kind:            Kind,
		Title:           title,
		ArtistName:      artist,
		DurationSeconds: DurationSeconds(duration),
	}
}

// DurationSeconds converts a provider duration to whole seconds.
// A missing (zero or negative) duration maps to DefaultDurationSeconds.
func DurationSeconds(d time.Duration) int {
	if d <= 0 {
		return DefaultDurationSeconds
	}
	return int(d / time.Second)
}

// Duration returns the track length as a time.Duration.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// IsExplicit reports whether the provider flagged the track as explicit.
func (t *Track) IsExplicit() bool {
	return strings.EqualFold(t.ContentRating, "explicit")
}

// ArtworkURL expands the artwork template to a square image of the given size.
// Returns an empty string when no artwork is available.
func (t *Track) ArtworkURL(size int) string {
	if t.ArtworkURLTemplate == "" {
		return ""
	}
	s := strconv.Itoa(size)
	return strings.NewReplacer("{w}", s, "{h}", s).Replace(t.ArtworkURLTemplate)
}
