package spotify

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Player controls the user's active Spotify device.
type Player struct {
	client *Client
}

// NewPlayer creates a new player.
func NewPlayer(client *Client) *Player {
	return &Player{client: client}
}

// IsPlaying reports whether a device is currently playing.
func (p *Player) IsPlaying(ctx context.Context) (bool, error) {
	cp, err := p.client.client.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		return false, errors.Wrap(wrapError(err), "failed to get currently playing")
	}
	return cp != nil && cp.Playing, nil
}

// SkipPast moves to the next item when trackID is the one playing.
func (p *Player) SkipPast(ctx context.Context, trackID string) error {
	cp, err := p.client.client.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		return errors.Wrap(wrapError(err), "failed to get currently playing")
	}
	if cp == nil || cp.Item == nil || string(cp.Item.ID) != extractTrackID(trackID) {
		return nil
	}
	if err := p.client.client.Next(ctx); err != nil {
		return errors.Wrap(wrapError(err), "failed to skip to next")
	}
	return nil
}

// Stop pauses playback.
func (p *Player) Stop(ctx context.Context) error {
	if err := p.client.client.Pause(ctx); err != nil {
		return errors.Wrap(wrapError(err), "failed to pause")
	}
	return nil
}
