package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicshuffler/internal/infra/config"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

func TestNewProviderFromConfig(t *testing.T) {
	t.Run("apple music", func(t *testing.T) {
		cfg := config.Default()
		p, err := NewProviderFromConfig(context.Background(), cfg, metrics.New())
		require.NoError(t, err)
		assert.Equal(t, config.ProviderAppleMusic, p.Name)
		assert.Equal(t, "applemusic", p.Source.Name())
		assert.NotNil(t, p.Library)
		assert.NotNil(t, p.SDK)
		assert.Nil(t, p.Player)
	})

	t.Run("spotify", func(t *testing.T) {
		cfg := config.Default()
		cfg.Provider.Type = config.ProviderSpotify
		cfg.Spotify.ClientID = "id"
		cfg.Spotify.ClientSecret = "secret"
		cfg.Spotify.RefreshToken = "refresh"

		p, err := NewProviderFromConfig(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "spotify", p.Source.Name())
		assert.NotNil(t, p.Player)
	})

	t.Run("spotify without credentials", func(t *testing.T) {
		cfg := config.Default()
		cfg.Provider.Type = config.ProviderSpotify
		_, err := NewProviderFromConfig(context.Background(), cfg, nil)
		assert.Error(t, err)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := config.Default()
		cfg.Provider.Type = "tidal"
		_, err := NewProviderFromConfig(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "unsupported provider type")
	})
}

func TestNewEnricherFromConfig(t *testing.T) {
	cfg := config.Default()
	e, err := NewEnricherFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, e)

	cfg.LastFm.APIKey = "key"
	e, err = NewEnricherFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &GenreEnricher{}, e)
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Filters = map[string]config.FilterConfig{
		"explicit_content_filter": {Enabled: true},
		"duration_limit_filter":   {Enabled: false},
	}

	p, err := NewPipelineFromConfig(cfg, &fakeSource{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", p.SourceName())
	require.Len(t, p.chain.Filters(), 1)
	assert.Equal(t, "explicit_content_filter", p.chain.Filters()[0].Name())

	cfg.Filters["no_such_filter"] = config.FilterConfig{Enabled: true}
	_, err = NewPipelineFromConfig(cfg, &fakeSource{}, nil, nil)
	assert.Error(t, err)
}
