// Package applemusic provides a client for the Apple Music API, either
// directly or through a credential-injecting proxy.
package applemusic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	zlog "github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

// DefaultBaseURL is the public Apple Music API endpoint.
const DefaultBaseURL = "https://api.music.apple.com"

// UserTokenHeader carries the Music User Token.
const UserTokenHeader = "Music-User-Token"

const cacheName = "applemusic_container"

// Config represents Apple Music client configuration.
type Config struct {
	BaseURL        string        // API or proxy base URL
	DeveloperToken string        // Developer JWT; empty when the proxy injects it
	UserToken      string        // Static Music User Token (optional)
	Timeout        time.Duration // HTTP timeout
	CacheSize      int           // Container body cache entries, 0 disables
	MaxRetries     int
	RetryDelay     time.Duration
}

// APIError is an error response from the API or the proxy.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("apple music api error (HTTP %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("apple music api error (HTTP %d): %s", e.Status, e.Message)
}

// HTTPStatus returns the response status.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the source of Music User Tokens.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is an Apple Music API client.
type Client struct {
	baseURL        string
	developerToken string
	httpClient     *http.Client
	cache          *lru.Cache[string, []byte]
	metrics        *metrics.Metrics
	maxRetries     int
	retryDelay     time.Duration

	tokenMu sync.RWMutex
	tokens  oauth2.TokenSource
}

// New creates a new Apple Music client.
func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	c := &Client{
		baseURL:        baseURL,
		developerToken: cfg.DeveloperToken,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelay:     retryDelay,
	}
	if cfg.UserToken != "" {
		c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.UserToken})
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create container cache")
		}
		c.cache = cache
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Direct reports whether the client talks to the public API rather than a proxy.
func (c *Client) Direct() bool {
	return c.baseURL == DefaultBaseURL
}

// HasDeveloperToken reports whether a developer token is configured.
func (c *Client) HasDeveloperToken() bool {
	return c.developerToken != ""
}

type userTokenKey struct{}

// ContextWithUserToken returns a context carrying a Music User Token that
// takes precedence over the configured token source.
func ContextWithUserToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, userTokenKey{}, token)
}

// setUserToken remembers token for requests whose context carries none.
func (c *Client) setUserToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if token == "" {
		c.tokens = nil
		return
	}
	c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func (c *Client) userToken(ctx context.Context) string {
	if tok, ok := ctx.Value(userTokenKey{}).(string); ok && tok != "" {
		return tok
	}
	c.tokenMu.RLock()
	ts := c.tokens
	c.tokenMu.RUnlock()
	if ts == nil {
		return ""
	}
	tok, err := ts.Token()
	if err != nil {
		zlog.Debug().Msgf("failed to get music user token: %v", err)
		return ""
	}
	return tok.AccessToken
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		b, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// getCached performs a GET request served from the container cache when possible.
func (c *Client) getCached(ctx context.Context, path string) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(path); ok {
			c.metrics.CacheLookup(cacheName, true)
			return body, nil
		}
		c.metrics.CacheLookup(cacheName, false)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(path, body)
	}
	return body, nil
}

// do performs a single request. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(b)
	}

	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.developerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.developerToken)
	}
	if tok := c.userToken(ctx); tok != "" {
		req.Header.Set(UserTokenHeader, tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(errors.Wrapf(err, "%s %s", method, path), apperr.ErrNetwork,
			"Network error. Check your connection and try again.")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(errors.Wrap(err, "failed to read response"), apperr.ErrNetwork, "")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, body)
	}
	return body, nil
}

// resolve joins path to the base URL. Absolute URLs taken from response
// links are only followed on the base URL's host since requests carry the
// user's tokens.
func (c *Client) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target, err := url.Parse(path)
		if err != nil {
			return "", errors.Wrapf(err, "invalid link %q", path)
		}
		base, err := url.Parse(c.baseURL)
		if err != nil {
			return "", errors.Wrapf(err, "invalid base url %q", c.baseURL)
		}
		if target.Scheme != base.Scheme || target.Host != base.Host {
			return "", errors.Newf("refusing to follow link to %s outside %s", target.Host, base.Host)
		}
		return path, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path, nil
}

// decodeError reads the proxy envelope {error,message,details} or the
// API's {errors:[{code,title,detail}]}.
func decodeError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		e.Code = r.Get("error").String()
		e.Message = r.Get("message").String()
		e.Details = r.Get("details").String()
		if first := r.Get("errors.0"); first.Exists() {
			if e.Code == "" {
				e.Code = first.Get("code").String()
			}
			if e.Message == "" {
				e.Message = first.Get("title").String()
			}
			if e.Details == "" {
				e.Details = first.Get("detail").String()
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
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
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports whether err is a rate limit, server or network error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	return errors.Is(err, apperr.ErrNetwork)
}
