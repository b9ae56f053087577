package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/musicshuffler/internal/domain/catalog"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

const itemsPageLimit = 100

// Source serves featured and configured playlists as recommendation containers.
type Source struct {
	client        *Client
	seedPlaylists []string
	featuredLimit int
}

// NewSource creates a new recommendation source. seedPlaylists accepts
// IDs, URLs or URIs and is used in addition to featured playlists.
func NewSource(client *Client, seedPlaylists []string, featuredLimit int) *Source {
	if featuredLimit <= 0 {
		featuredLimit = 20
	}
	return &Source{client: client, seedPlaylists: seedPlaylists, featuredLimit: featuredLimit}
}

// Name returns the source name.
func (s *Source) Name() string {
	return "spotify"
}

// Recommendations returns featured playlists followed by the seed playlists.
// Featured playlists are unavailable to some applications; that failure is
// tolerated as long as seed playlists exist.
func (s *Source) Recommendations(ctx context.Context) ([]catalog.Container, error) {
	var containers []catalog.Container
	seen := make(map[string]bool)
	add := func(c catalog.Container) {
		if c.ID == "" || c.TrackCount <= 0 || seen[c.ID] {
			return
		}
		seen[c.ID] = true
		containers = append(containers, c)
	}

	var page *spotify.SimplePlaylistPage
	err := s.client.retry(ctx, func() error {
		_, p, err := s.client.client.FeaturedPlaylists(ctx,
			spotify.Limit(s.featuredLimit),
			spotify.Country(s.client.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		if len(s.seedPlaylists) == 0 {
			return nil, errors.Wrap(err, "failed to get featured playlists")
		}
		zlog.Warn().Msgf("featured playlists unavailable: %v", err)
	} else {
		for _, p := range page.Playlists {
			add(s.playlistContainer(p.ID, p.Name, int(p.Tracks.Total), p.Images))
		}
	}

	for _, seed := range s.seedPlaylists {
		c, err := s.seedContainer(ctx, seed)
		if err != nil {
			zlog.Error().Msgf("failed to resolve seed playlist %s: %v", seed, err)
			continue
		}
		add(c)
	}
	return containers, nil
}

func (s *Source) seedContainer(ctx context.Context, seed string) (catalog.Container, error) {
	id := extractPlaylistID(seed)
	if id == "" {
		return catalog.Container{}, errors.New("invalid playlist URL")
	}

	var pl *spotify.FullPlaylist
	err := s.client.retry(ctx, func() error {
		p, err := s.client.client.GetPlaylist(ctx, spotify.ID(id), spotify.Market(s.client.market))
		if err != nil {
			return err
		}
		pl = p
		return nil
	})
	if err != nil {
		return catalog.Container{}, errors.Wrap(err, "failed to get playlist")
	}
	return s.playlistContainer(pl.ID, pl.Name, int(pl.Tracks.Total), pl.Images), nil
}

func (s *Source) playlistContainer(id spotify.ID, name string, total int, images []spotify.Image) catalog.Container {
	var artwork string
	if len(images) > 0 {
		artwork = images[0].URL
	}
	return catalog.Container{
		ID:         string(id),
		Kind:       catalog.KindPlaylist,
		Ref:        s.client.GetPlaylistURL(string(id)),
		Name:       name,
		ArtworkURL: artwork,
		TrackCount: total,
	}
}

// ContainerTracks returns the playlist's tracks in order. Episodes and
// unavailable items are skipped. Paging stops once limit tracks are loaded.
func (s *Source) ContainerTracks(ctx context.Context, c catalog.Container, limit int) ([]track.Track, error) {
	if c.Kind != catalog.KindPlaylist {
		return nil, errors.Newf("unsupported container kind %s", c.Kind)
	}

	var tracks []track.Track
	offset := 0
	for {
		var page *spotify.PlaylistItemPage
		err := s.client.retry(ctx, func() error {
			p, err := s.client.client.GetPlaylistItems(ctx, spotify.ID(c.ID),
				spotify.Limit(itemsPageLimit),
				spotify.Offset(offset),
				spotify.Market(s.client.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				t := s.client.convertTrack(item.Track.Track)
				if t.ArtworkURLTemplate == "" {
					t.ArtworkURLTemplate = c.ArtworkURL
				}
				tracks = append(tracks, t)
			}
		}

		if !needsMoreItems(len(tracks), len(page.Items), limit) {
			break
		}
		offset += itemsPageLimit
	}
	return tracks, nil
}

// needsMoreItems reports whether another items page is required after a page
// of pageLen items left fetched usable tracks.
func needsMoreItems(fetched, pageLen, limit int) bool {
	if pageLen < itemsPageLimit {
		return false
	}
	return limit <= 0 || fetched < limit
}
