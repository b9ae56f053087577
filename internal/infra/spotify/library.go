package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/musicshuffler/internal/domain/playlist"
)

const (
	playlistsPageLimit = 50
	addTracksBatch     = 100
)

// Library manages the current user's playlists.
type Library struct {
	client *Client
}

// NewLibrary creates a new library.
func NewLibrary(client *Client) *Library {
	return &Library{client: client}
}

// ListPlaylists returns every playlist of the current user.
func (l *Library) ListPlaylists(ctx context.Context) ([]playlist.Summary, error) {
	var out []playlist.Summary
	offset := 0
	for {
		var page *spotify.SimplePlaylistPage
		err := l.client.retry(ctx, func() error {
			p, err := l.client.client.CurrentUsersPlaylists(ctx,
				spotify.Limit(playlistsPageLimit),
				spotify.Offset(offset),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to list playlists")
		}

		for _, p := range page.Playlists {
			out = append(out, playlist.Summary{ID: string(p.ID), Name: p.Name})
		}
		if len(page.Playlists) < playlistsPageLimit {
			break
		}
		offset += playlistsPageLimit
	}
	return out, nil
}

// CreatePlaylist creates a private playlist and adds the tracks in order.
// A playlist left empty by a failed add is unfollowed again.
func (l *Library) CreatePlaylist(ctx context.Context, sub playlist.Submission, description string) (string, error) {
	user, err := l.client.client.CurrentUser(ctx)
	if err != nil {
		return "", errors.Wrap(wrapError(err), "failed to get current user")
	}

	created, err := l.client.client.CreatePlaylistForUser(ctx, user.ID, sub.TrimmedName(), description, false, false)
	if err != nil {
		return "", errors.Wrap(wrapError(err), "failed to create playlist")
	}

	if err := l.addTracks(ctx, created.ID, sub.TrackIDs()); err != nil {
		if uerr := l.client.client.UnfollowPlaylist(ctx, created.ID); uerr != nil {
			zlog.Error().Msgf("failed to clean up playlist %s: %v", created.ID, uerr)
		}
		return "", err
	}
	return string(created.ID), nil
}

func (l *Library) addTracks(ctx context.Context, playlistID spotify.ID, trackIDs []string) error {
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(extractTrackID(id))
	}

	for _, batch := range chunk(ids, addTracksBatch) {
		err := l.client.retry(ctx, func() error {
			_, err := l.client.client.AddTracksToPlaylist(ctx, playlistID, batch...)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to add tracks to playlist")
		}
	}
	return nil
}

// chunk splits ids into consecutive batches of at most size elements.
func chunk(ids []spotify.ID, size int) [][]spotify.ID {
	var out [][]spotify.ID
	for i := 0; i < len(ids); i += size {
		end := min(i+size, len(ids))
		out = append(out, ids[i:end])
	}
	return out
}
