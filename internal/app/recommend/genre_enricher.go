package recommend

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// GenreLookup resolves the genre of a track by title and artist.
type GenreLookup interface {
	Genre(ctx context.Context, trackName, artistName string) (string, error)
}

// GenreEnricher fills the genre of tracks that arrive without one.
// Lookup failures are logged and leave the track unchanged.
type GenreEnricher struct {
	lookup     GenreLookup
	maxLookups int
	timeout    time.Duration
}

// NewGenreEnricher creates a new GenreEnricher.
func NewGenreEnricher(lookup GenreLookup, maxLookups int, timeout time.Duration) *GenreEnricher {
	return &GenreEnricher{
		lookup:     lookup,
		maxLookups: maxLookups,
		timeout:    timeout,
	}
}

// Enrich returns a copy of tracks with missing genres filled in.
func (e *GenreEnricher) Enrich(ctx context.Context, tracks []track.Track) []track.Track {
	out := make([]track.Track, len(tracks))
	copy(out, tracks)

	lookups := 0
	for i := range out {
		if out[i].Genre != "" || out[i].Title == "" || out[i].ArtistName == "" {
			continue
		}
		if lookups >= e.maxLookups {
			break
		}
		lookups++

		lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
		genre, err := e.lookup.Genre(lookupCtx, out[i].Title, out[i].ArtistName)
		cancel()
		if err != nil {
			zlog.Debug().Msgf("genre lookup failed: track=%s artist=%s err=%v", out[i].Title, out[i].ArtistName, err)
			continue
		}
		out[i].Genre = genre
	}
	return out
}
