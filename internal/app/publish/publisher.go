// Package publish provides the playlist publisher that turns the accepted
// selection into a new playlist in the user's library.
package publish

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

const DefaultAppName = "Music Shuffler"

// Library is the user's playlist library on the provider.
type Library interface {
	// ListPlaylists returns every playlist in the user's library.
	ListPlaylists(ctx context.Context) ([]playlist.Summary, error)
	// CreatePlaylist creates a private playlist holding the submission's
	// tracks in order and returns its ID.
	CreatePlaylist(ctx context.Context, sub playlist.Submission, description string) (string, error)
}

// ErrorHandler is notified of provider errors that may mean the session expired.
type ErrorHandler interface {
	HandleAPIError(ctx context.Context, err error) bool
}

// Error is a publish failure reported by the provider.
type Error struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // provider message
	err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("publish failed: %s", e.Message)
	}
	return fmt.Sprintf("publish failed (HTTP %d): %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// HTTPStatus returns the upstream status.
func (e *Error) HTTPStatus() int {
	return e.Status
}

// Messages are the user-facing hints attached to publish errors.
type Messages struct {
	EmptySelection string
	EmptyName      string
	NameConflict   string
	SessionExpired string
	Failed         string
}

// Config represents publisher configuration.
type Config struct {
	AppName  string
	Messages Messages
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithErrorHandler sets the handler notified of authorization failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Publisher) { p.errHandler = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// Publisher creates playlists from accepted selections.
type Publisher struct {
	library    Library
	errHandler ErrorHandler
	metrics    *metrics.Metrics
	cfg        Config
}

// New creates a new Publisher.
func New(library Library, cfg Config, opts ...Option) *Publisher {
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	m := &cfg.Messages
	if m.EmptySelection == "" {
		m.EmptySelection = "Select at least one track before saving."
	}
	if m.EmptyName == "" {
		m.EmptyName = "Enter a playlist name."
	}
	if m.NameConflict == "" {
		m.NameConflict = "A playlist with this name already exists. Choose a different name."
	}
	if m.SessionExpired == "" {
		m.SessionExpired = "Your session has expired. Please sign in again."
	}
	if m.Failed == "" {
		m.Failed = "Failed to create playlist. Please try again."
	}

	p := &Publisher{library: library, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish creates a new private playlist named name holding tracks in order.
//
// An empty selection or a blank name fails with apperr.ErrInvalidInput before
// any provider call. An existing playlist with exactly the same name fails
// with apperr.ErrNameConflict and nothing is created.
func (p *Publisher) Publish(ctx context.Context, name string, tracks []track.Track) (*playlist.Playlist, error) {
	sub := playlist.Submission{Name: name, Tracks: tracks}
	if len(sub.Tracks) == 0 {
		p.metrics.Publish("invalid")
		return nil, apperr.New(apperr.ErrInvalidInput, p.cfg.Messages.EmptySelection, "no tracks to publish")
	}
	sub.Name = sub.TrimmedName()
	if sub.Name == "" {
		p.metrics.Publish("invalid")
		return nil, apperr.New(apperr.ErrInvalidInput, p.cfg.Messages.EmptyName, "playlist name is blank")
	}

	existing, err := p.library.ListPlaylists(ctx)
	if err != nil {
		return nil, p.fail(ctx, errors.Wrap(err, "list playlists"))
	}
	for _, pl := range existing {
		if pl.Name == sub.Name {
			p.metrics.Publish("conflict")
			zlog.Info().Msgf("playlist name conflict: name=%s existing_id=%s", sub.Name, pl.ID)
			return nil, apperr.New(apperr.ErrNameConflict, p.cfg.Messages.NameConflict,
				"playlist %q already exists", sub.Name)
		}
	}

	description := sub.Description(p.cfg.AppName)
	id, err := p.library.CreatePlaylist(ctx, sub, description)
	if err != nil {
		return nil, p.fail(ctx, errors.Wrap(err, "create playlist"))
	}

	p.metrics.Publish("created")
	zlog.Info().Msgf("playlist created: id=%s name=%s tracks=%d duration=%ds",
		id, sub.Name, len(sub.Tracks), sub.TotalDuration())

	return &playlist.Playlist{
		ID:          id,
		Name:        sub.Name,
		Description: description,
		Tracks:      sub.Tracks,
	}, nil
}

func (p *Publisher) fail(ctx context.Context, err error) error {
	status := apperr.StatusCode(err)
	if apperr.IsAuthStatus(status) {
		p.metrics.Publish("auth_expired")
		if p.errHandler != nil {
			p.errHandler.HandleAPIError(ctx, err)
		}
		return apperr.Wrap(err, apperr.ErrAuthExpired, p.cfg.Messages.SessionExpired)
	}

	p.metrics.Publish("failed")
	zlog.Error().Msgf("failed to publish playlist: %v", err)
	return apperr.Wrap(&Error{Status: status, Message: errors.UnwrapAll(err).Error(), err: err},
		apperr.ErrPublishFailed, p.cfg.Messages.Failed)
}
