package recommend

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/app/expand"
	"github.com/osa030/musicshuffler/internal/app/filter"
	"github.com/osa030/musicshuffler/internal/app/sampler"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Batch is the outcome of one pipeline run.
type Batch struct {
	Tracks           []track.Track
	Containers       int
	FailedContainers int
	Rejected         map[string]int // filter rejections by code
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFilterChain sets the chain applied to sampled tracks.
func WithFilterChain(c *filter.Chain) Option {
	return func(p *Pipeline) { p.chain = c }
}

// WithEnricher sets the metadata enricher.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithErrorHandler sets the handler notified when the provider rejects the session.
func WithErrorHandler(h sampler.ErrorHandler) Option {
	return func(p *Pipeline) { p.errHandler = h }
}

// Pipeline turns recommendations into batches of tracks.
type Pipeline struct {
	source     Source
	fetcher    *sampler.Fetcher
	chain      *filter.Chain
	enricher   Enricher
	errHandler sampler.ErrorHandler
}

// NewPipeline creates a new pipeline. The fetcher must resolve containers
// against the same source.
func NewPipeline(source Source, fetcher *sampler.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:  source,
		fetcher: fetcher,
		chain:   filter.NewChain(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch retrieves up to n tracks sampled uniformly from the current
// recommendations. Tracks gathered before an authorization failure are
// returned together with the error.
func (p *Pipeline) Fetch(ctx context.Context, n int) (*Batch, error) {
	containers, err := p.source.Recommendations(ctx)
	if err != nil {
		if apperr.IsAuthError(err) {
			if p.errHandler != nil {
				p.errHandler.HandleAPIError(ctx, err)
			}
			return &Batch{}, apperr.Wrap(errors.Wrap(err, "fetch recommendations"), apperr.ErrAuthExpired, "")
		}
		return &Batch{}, errors.Wrap(err, "fetch recommendations")
	}

	placeholders := expand.Placeholders(containers)
	zlog.Debug().Msgf("recommendations expanded: source=%s containers=%d placeholders=%d",
		p.source.Name(), len(containers), len(placeholders))

	res, sampleErr := p.fetcher.Sample(ctx, placeholders, n)
	batch := &Batch{
		Containers:       res.Containers,
		FailedContainers: res.FailedContainers,
	}

	if sampleErr == nil && res.Partial() {
		zlog.Warn().Msgf("recommendations partially loaded: source=%s failed=%d containers=%d",
			p.source.Name(), res.FailedContainers, res.Containers)
	}

	tracks := res.Tracks
	if p.enricher != nil && len(tracks) > 0 {
		tracks = p.enricher.Enrich(ctx, tracks)
	}
	batch.Tracks, batch.Rejected = p.chain.Apply(ctx, tracks)

	if len(batch.Rejected) > 0 {
		zlog.Debug().Msgf("filtered tracks: kept=%d rejected=%v", len(batch.Tracks), batch.Rejected)
	}
	if sampleErr != nil {
		return batch, sampleErr
	}
	return batch, nil
}

// Reset forgets the tracks seen by the filter chain.
func (p *Pipeline) Reset() {
	p.chain.Reset()
}

// SourceName returns the name of the underlying source.
func (p *Pipeline) SourceName() string {
	return p.source.Name()
}
