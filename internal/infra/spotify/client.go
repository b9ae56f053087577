// Package spotify provides the Spotify provider: recommendation source,
// playlist library, player and session authorizer.
package spotify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Scopes are the permissions the refresh token must carry.
var Scopes = []string{
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
}

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// APIError is a Spotify error carrying the HTTP status.
type APIError struct {
	Status  int
	Message string
	err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify api error (HTTP %d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// HTTPStatus returns the response status.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// The refresh token is exchanged for an access token on first use.
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}
	httpClient := auth.Client(ctx, token)

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetPlaylistURL returns the Spotify URL for a playlist.
func (c *Client) GetPlaylistURL(playlistID string) string {
	return fmt.Sprintf("https://open.spotify.com/playlist/%s", playlistID)
}

// GetTrackURL returns the Spotify URL for a track.
func (c *Client) GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// convertTrack converts a Spotify FullTrack to a domain Track.
func (c *Client) convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	rating := "clean"
	if t.Explicit {
		rating = "explicit"
	}

	out := track.New(string(t.ID), t.Name, strings.Join(artists, ", "),
		time.Duration(t.Duration)*time.Millisecond)
	out.AlbumName = t.Album.Name
	out.ArtworkURLTemplate = albumArt
	out.ContentRating = rating
	out.URL = c.GetTrackURL(string(t.ID))
	return out
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return wrapError(err)
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(wrapError(lastErr), "max retries exceeded")
}

// wrapError attaches the HTTP status of Spotify and token errors so the
// session layer can recognize expired credentials.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return &APIError{Status: se.Status, Message: se.Message, err: err}
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		// A revoked refresh token is reported as 400 invalid_grant.
		status := http.StatusUnauthorized
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			status = re.Response.StatusCode
		}
		return &APIError{Status: status, Message: strings.TrimSpace(string(re.Body)), err: err}
	}
	return err
}

// isRetryable reports whether err is a rate limit, server or network error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(wrapError(err), &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	// spotify:<kind>:ID
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	// https://open.spotify.com/<kind>/ID or https://open.spotify.com/intl-XX/<kind>/ID
	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	// Assume it's already an ID
	return input
}
