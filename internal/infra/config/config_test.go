package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/metrics", cfg.Server.MetricsPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ProviderAppleMusic, cfg.Provider.Type)
	assert.Equal(t, 10*time.Second, cfg.Provider.PollInterval)
	assert.Equal(t, "https://api.music.apple.com", cfg.AppleMusic.BaseURL)
	assert.Equal(t, 4, cfg.Sampler.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Sampler.BatchDelay)
	assert.Equal(t, 15, cfg.Shuffle.MinMinutes)
	assert.Equal(t, 120, cfg.Shuffle.MaxMinutes)
	assert.Equal(t, 30, cfg.Shuffle.DefaultMinutes)
	assert.Equal(t, 25, cfg.Shuffle.BatchCount)
	assert.Equal(t, 50, cfg.Shuffle.ReplenishCap)
	assert.Equal(t, "Your session has expired. Please sign in again.", cfg.Messages.SessionExpired)
}

func TestParse_FileValues(t *testing.T) {
	data := []byte(`
server:
  addr: ":9090"
provider:
  type: applemusic
  poll_interval: 30s
applemusic:
  base_url: http://localhost:8787
sampler:
  batch_size: 8
  batch_delay: 100ms
  rate_limit: 5
shuffle:
  default_minutes: 45
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_minutes: 10
  explicit_content_filter:
    enabled: false
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Provider.PollInterval)
	assert.Equal(t, "http://localhost:8787", cfg.AppleMusic.BaseURL)
	assert.Equal(t, 8, cfg.Sampler.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampler.BatchDelay)
	assert.Equal(t, 5.0, cfg.Sampler.RateLimit)
	assert.Equal(t, 45, cfg.Shuffle.DefaultMinutes)

	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("explicit_content_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown"))
	assert.Equal(t, []string{"duration_limit_filter"}, cfg.EnabledFilterNames())

	enabled := cfg.EnabledFilters()
	require.Contains(t, enabled, "duration_limit_filter")
	assert.Equal(t, 10, enabled["duration_limit_filter"]["max_minutes"])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown provider",
			yaml:    "provider:\n  type: tidal\n",
			wantErr: "Type",
		},
		{
			name:    "spotify without credentials",
			yaml:    "provider:\n  type: spotify\n",
			wantErr: "spotify provider requires",
		},
		{
			name:    "invalid market",
			yaml:    "spotify:\n  market: USA\n",
			wantErr: "Market",
		},
		{
			name:    "max below min",
			yaml:    "shuffle:\n  min_minutes: 30\n  max_minutes: 20\n",
			wantErr: "MaxMinutes",
		},
		{
			name:    "default off step",
			yaml:    "shuffle:\n  default_minutes: 32\n",
			wantErr: "multiple of step_minutes",
		},
		{
			name:    "default out of range",
			yaml:    "shuffle:\n  default_minutes: 200\n",
			wantErr: "must be within",
		},
		{
			name:    "bad log format",
			yaml:    "log:\n  format: xml\n",
			wantErr: "Format",
		},
		{
			name:    "replenish cap below batch",
			yaml:    "shuffle:\n  batch_count: 60\n",
			wantErr: "ReplenishCap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_SpotifyFromEnv(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-refresh")
	t.Setenv("LASTFM_API_KEY", "env-lastfm")

	cfg, err := Parse([]byte("provider:\n  type: spotify\nspotify:\n  client_id: file-id\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "env-refresh", cfg.Spotify.RefreshToken)
	assert.Equal(t, "env-lastfm", cfg.LastFm.APIKey)
}

func TestParse_AppleMusicFromEnv(t *testing.T) {
	t.Setenv("APPLE_MUSIC_DEVELOPER_TOKEN", "dev-jwt")
	t.Setenv("MUSIC_USER_TOKEN", "user-token")

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "dev-jwt", cfg.AppleMusic.DeveloperToken)
	assert.Equal(t, "user-token", cfg.AppleMusic.UserToken)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Messages.NameConflict, cfg.GetMessage("name_conflict"))
	assert.Equal(t, cfg.Messages.ExplicitContent, cfg.GetMessage("explicit_content"))
	assert.Equal(t, cfg.Messages.DefaultError, cfg.GetMessage("no_such_code"))
	assert.NotEmpty(t, cfg.GetMessage("no_such_code"))
}
