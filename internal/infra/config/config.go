// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider types.
const (
	ProviderAppleMusic = "applemusic"
	ProviderSpotify    = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Log        LogConfig               `yaml:"log"`
	Provider   ProviderConfig          `yaml:"provider"`
	AppleMusic AppleMusicConfig        `yaml:"applemusic"`
	Spotify    SpotifyConfig           `yaml:"spotify"`
	LastFm     LastFmConfig            `yaml:"lastfm"`
	Sampler    SamplerConfig           `yaml:"sampler"`
	Shuffle    ShuffleConfig           `yaml:"shuffle"`
	Filters    map[string]FilterConfig `yaml:"filters"`
	Messages   MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr        string      `yaml:"addr" default:":8080"`
	MetricsPath string      `yaml:"metrics_path" default:"/metrics"`
	Hooks       HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// ProviderConfig selects the music provider and session behavior.
type ProviderConfig struct {
	Type          string        `yaml:"type" default:"applemusic" validate:"oneof=applemusic spotify"`
	PollInterval  time.Duration `yaml:"poll_interval" default:"10s" validate:"gt=0"`
	UserName      string        `yaml:"user_name" default:"User"`
	PlayerTimeout time.Duration `yaml:"player_timeout" default:"5s"`
}

// AppleMusicConfig represents Apple Music API configuration.
type AppleMusicConfig struct {
	BaseURL        string        `yaml:"base_url" default:"https://api.music.apple.com" validate:"url"`
	DeveloperToken string        `yaml:"developer_token"`
	UserToken      string        `yaml:"user_token"`
	Timeout        time.Duration `yaml:"timeout" default:"15s"`
	CacheSize      int           `yaml:"cache_size" default:"256" validate:"gte=0"`
	MaxRetries     int           `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID      string   `yaml:"client_id"`
	ClientSecret  string   `yaml:"client_secret"`
	RefreshToken  string   `yaml:"refresh_token"`
	Market        string   `yaml:"market" validate:"omitempty,len=2" default:"US"`
	SeedPlaylists []string `yaml:"seed_playlists"`
	FeaturedLimit int      `yaml:"featured_limit" default:"20" validate:"gte=1,lte=50"`
}

// LastFmConfig represents Last.fm genre enrichment configuration.
// Enrichment is disabled without an API key.
type LastFmConfig struct {
	APIKey     string        `yaml:"api_key"`
	CacheSize  int           `yaml:"cache_size" default:"1000" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
	MaxLookups int           `yaml:"max_lookups" default:"10" validate:"gte=0"`
}

// SamplerConfig represents batch fetching configuration.
type SamplerConfig struct {
	BatchSize  int           `yaml:"batch_size" default:"4" validate:"gte=1,lte=32"`
	BatchDelay time.Duration `yaml:"batch_delay" default:"50ms" validate:"gte=0"`
	RateLimit  float64       `yaml:"rate_limit" validate:"gte=0"`
}

// ShuffleConfig represents the swipe session configuration.
type ShuffleConfig struct {
	MinMinutes     int           `yaml:"min_minutes" default:"15" validate:"gte=1"`
	MaxMinutes     int           `yaml:"max_minutes" default:"120" validate:"gtefield=MinMinutes"`
	DefaultMinutes int           `yaml:"default_minutes" default:"30"`
	StepMinutes    int           `yaml:"step_minutes" default:"5" validate:"gte=1"`
	BatchCount     int           `yaml:"batch_count" default:"25" validate:"gte=1"`
	ReplenishCap   int           `yaml:"replenish_cap" default:"50" validate:"gtefield=BatchCount"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" default:"30s"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"Something went wrong. Please try again."`
	SessionExpired        string `yaml:"session_expired" default:"Your session has expired. Please sign in again."`
	SdkUnavailable        string `yaml:"sdk_unavailable" default:"Music provider not initialized."`
	EmptySelection        string `yaml:"empty_selection" default:"Select at least one track before creating a playlist."`
	EmptyName             string `yaml:"empty_name" default:"Enter a playlist name."`
	NameConflict          string `yaml:"name_conflict" default:"A playlist with this name already exists. Choose a different name."`
	PublishFailed         string `yaml:"publish_failed" default:"Failed to create playlist."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"Track was already presented."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"Track length is outside the allowed range."`
	ExplicitContent       string `yaml:"explicit_content" default:"Explicit tracks are excluded."`
	ExcludedGenre         string `yaml:"excluded_genre" default:"Track genre is excluded."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return &cfg
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("APPLE_MUSIC_DEVELOPER_TOKEN"); v != "" {
		c.AppleMusic.DeveloperToken = v
	}
	if v := os.Getenv("MUSIC_USER_TOKEN"); v != "" {
		c.AppleMusic.UserToken = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFm.APIKey = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "session_expired":
		return c.Messages.SessionExpired
	case "sdk_unavailable":
		return c.Messages.SdkUnavailable
	case "empty_selection":
		return c.Messages.EmptySelection
	case "empty_name":
		return c.Messages.EmptyName
	case "name_conflict":
		return c.Messages.NameConflict
	case "publish_failed":
		return c.Messages.PublishFailed
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "explicit_content":
		return c.Messages.ExplicitContent
	case "excluded_genre":
		return c.Messages.ExcludedGenre
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Provider.Type == ProviderSpotify {
		if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RefreshToken == "" {
			return errors.New("spotify provider requires client_id, client_secret and refresh_token")
		}
	}

	return c.validateShuffle()
}

// validateShuffle checks that the default target is a reachable step.
func (c *Config) validateShuffle() error {
	s := c.Shuffle
	if s.DefaultMinutes < s.MinMinutes || s.DefaultMinutes > s.MaxMinutes {
		return errors.Newf("shuffle.default_minutes (%d) must be within [%d, %d]",
			s.DefaultMinutes, s.MinMinutes, s.MaxMinutes)
	}
	if (s.DefaultMinutes-s.MinMinutes)%s.StepMinutes != 0 {
		return errors.Newf("shuffle.default_minutes (%d) must be min_minutes plus a multiple of step_minutes (%d)",
			s.DefaultMinutes, s.StepMinutes)
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of every enabled filter keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if !f.Enabled {
			continue
		}
		settings := f.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		out[name] = settings
	}
	return out
}

// EnabledFilterNames returns the enabled filter names in sorted order.
func (c *Config) EnabledFilterNames() []string {
	var names []string
	for name, f := range c.Filters {
		if f.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
