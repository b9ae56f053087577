package recommend

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/filter"
	"github.com/osa030/musicshuffler/internal/app/playback"
	"github.com/osa030/musicshuffler/internal/app/publish"
	"github.com/osa030/musicshuffler/internal/app/sampler"
	"github.com/osa030/musicshuffler/internal/app/session"
	"github.com/osa030/musicshuffler/internal/infra/applemusic"
	"github.com/osa030/musicshuffler/internal/infra/config"
	"github.com/osa030/musicshuffler/internal/infra/lastfm"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
	"github.com/osa030/musicshuffler/internal/infra/spotify"
)

// Provider bundles the collaborators of one music provider.
type Provider struct {
	Name    string
	Source  Source
	Library publish.Library
	SDK     session.SDK
	Player  playback.Player // nil when the provider has no remote player
}

// NewProviderFromConfig creates the provider selected by configuration.
func NewProviderFromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Provider, error) {
	zlog.Debug().Msgf("creating provider: type=%s", cfg.Provider.Type)
	switch cfg.Provider.Type {
	case config.ProviderAppleMusic:
		client, err := applemusic.New(applemusic.Config{
			BaseURL:        cfg.AppleMusic.BaseURL,
			DeveloperToken: cfg.AppleMusic.DeveloperToken,
			UserToken:      cfg.AppleMusic.UserToken,
			Timeout:        cfg.AppleMusic.Timeout,
			CacheSize:      cfg.AppleMusic.CacheSize,
			MaxRetries:     cfg.AppleMusic.MaxRetries,
		}, applemusic.WithMetrics(m))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create apple music client")
		}
		zlog.Info().Msgf("registered provider: type=%s base_url=%s", cfg.Provider.Type, cfg.AppleMusic.BaseURL)
		return &Provider{
			Name:    config.ProviderAppleMusic,
			Source:  applemusic.NewSource(client),
			Library: applemusic.NewLibrary(client),
			SDK:     applemusic.NewAuthorizer(client, cfg.Provider.UserName),
		}, nil

	case config.ProviderSpotify:
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create spotify client")
		}
		zlog.Info().Msgf("registered provider: type=%s market=%s seeds=%d",
			cfg.Provider.Type, cfg.Spotify.Market, len(cfg.Spotify.SeedPlaylists))
		return &Provider{
			Name:    config.ProviderSpotify,
			Source:  spotify.NewSource(client, cfg.Spotify.SeedPlaylists, cfg.Spotify.FeaturedLimit),
			Library: spotify.NewLibrary(client),
			SDK:     spotify.NewAuthorizer(client),
			Player:  spotify.NewPlayer(client),
		}, nil

	default:
		return nil, errors.Newf("unsupported provider type: %s", cfg.Provider.Type)
	}
}

// NewEnricherFromConfig creates the Last.fm genre enricher. Returns nil
// when no API key is configured.
func NewEnricherFromConfig(cfg *config.Config) (Enricher, error) {
	if cfg.LastFm.APIKey == "" || cfg.LastFm.MaxLookups == 0 {
		return nil, nil
	}
	client, err := lastfm.New(lastfm.Config{
		APIKey:    cfg.LastFm.APIKey,
		CacheSize: cfg.LastFm.CacheSize,
		Timeout:   cfg.LastFm.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lastfm client")
	}
	zlog.Info().Msgf("genre enrichment enabled: max_lookups=%d", cfg.LastFm.MaxLookups)
	return NewGenreEnricher(client, cfg.LastFm.MaxLookups, cfg.LastFm.Timeout), nil
}

// NewPipelineFromConfig wires the sampler, filter chain and enricher
// around source.
func NewPipelineFromConfig(cfg *config.Config, source Source, handler sampler.ErrorHandler, m *metrics.Metrics) (*Pipeline, error) {
	chain, err := filter.BuildChain(cfg.EnabledFilters())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build filter chain")
	}

	enricher, err := NewEnricherFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var samplerOpts []sampler.Option
	if handler != nil {
		samplerOpts = append(samplerOpts, sampler.WithErrorHandler(handler))
	}
	samplerOpts = append(samplerOpts, sampler.WithMetrics(m))
	fetcher := sampler.New(source, sampler.Config{
		BatchSize:  cfg.Sampler.BatchSize,
		BatchDelay: cfg.Sampler.BatchDelay,
		RateLimit:  cfg.Sampler.RateLimit,
	}, samplerOpts...)

	opts := []Option{WithFilterChain(chain)}
	if handler != nil {
		opts = append(opts, WithErrorHandler(handler))
	}
	if enricher != nil {
		opts = append(opts, WithEnricher(enricher))
	}
	return NewPipeline(source, fetcher, opts...), nil
}
