// Package lastfm provides a client for the Last.fm API used to look up the
// genre of tracks whose provider reports none.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL   = "https://ws.audioscrobbler.com/2.0/"
	defaultCacheSize = 1024
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// track tags keyed by "artist\x00title", lower-cased
	tagCache *lru.Cache[string, []Tag]
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey    string
	CacheSize int
	Timeout   time.Duration
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// getTopTagsResponse represents the response from track.getTopTags API.
type getTopTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cache, err := lru.New[string, []Tag](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tag cache")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tagCache:   cache,
	}, nil
}

// GetTopTags retrieves top tags for a track from Last.fm.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = max(1, min(limit, 100))

	cacheKey := strings.ToLower(artistName) + "\x00" + strings.ToLower(trackName)
	if tags, ok := c.tagCache.Get(cacheKey); ok {
		zlog.Debug().Msgf("using cached tags for track: %s - %s", artistName, trackName)
		return truncate(tags, limit), nil
	}

	params := url.Values{}
	params.Set("method", "track.getTopTags")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response getTopTagsResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(response.TopTags.Tag))
	for _, t := range response.TopTags.Tag {
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.tagCache.Add(cacheKey, tags)
	zlog.Debug().Msgf("cached tags for track: %s - %s (count: %d)", artistName, trackName, len(tags))

	return truncate(tags, limit), nil
}

// Genre returns the most used tag of a track, or "" when it has none.
func (c *Client) Genre(ctx context.Context, trackName, artistName string) (string, error) {
	tags, err := c.GetTopTags(ctx, trackName, artistName, 1)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", nil
	}
	return tags[0].Name, nil
}

func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Newf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("last.fm API returned HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func truncate(tags []Tag, limit int) []Tag {
	if len(tags) > limit {
		return tags[:limit]
	}
	return tags
}
