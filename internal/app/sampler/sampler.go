// Package sampler draws a random sample of track placeholders and resolves
// it against the provider with batched, rate-limited container fetches.
package sampler

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/domain/catalog"
	"github.com/osa030/musicshuffler/internal/domain/track"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

const (
	DefaultBatchSize  = 4
	DefaultBatchDelay = 50 * time.Millisecond
)

// ContainerFetcher resolves a container to its tracks in container order.
// limit is the number of leading tracks the caller needs; implementations
// may stop paging once it is covered. limit <= 0 asks for every track.
type ContainerFetcher interface {
	ContainerTracks(ctx context.Context, c catalog.Container, limit int) ([]track.Track, error)
}

// ErrorHandler is notified of provider errors that may mean the session expired.
type ErrorHandler interface {
	HandleAPIError(ctx context.Context, err error) bool
}

// Config controls batching and pacing.
type Config struct {
	BatchSize  int           // Containers fetched concurrently per batch
	BatchDelay time.Duration // Pause between batches
	RateLimit  float64       // Container fetches per second, 0 disables
}

// Result is the outcome of one Sample call.
type Result struct {
	Tracks           []track.Track
	Requested        int
	Containers       int
	FailedContainers int
}

// Partial reports whether some container fetches failed.
func (r *Result) Partial() bool {
	return r.FailedContainers > 0
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithErrorHandler sets the handler notified of authorization failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(f *Fetcher) { f.errHandler = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(f *Fetcher) { f.rng = r }
}

// Fetcher samples placeholders and resolves them to tracks.
type Fetcher struct {
	source     ContainerFetcher
	errHandler ErrorHandler
	metrics    *metrics.Metrics
	cfg        Config
	limiter    *rate.Limiter

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a new Fetcher.
func New(source ContainerFetcher, cfg Config, opts ...Option) *Fetcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}

	f := &Fetcher{
		source: source,
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type group struct {
	container catalog.Container
	indices   []int
}

// limit is the number of leading tracks covering every sampled index.
func (g group) limit() int {
	if len(g.indices) == 0 {
		return 0
	}
	return slices.Max(g.indices) + 1
}

// Sample draws n placeholders uniformly at random without replacement and
// returns at most n tracks for them.
//
// Every distinct container among the sampled placeholders is fetched at most
// once. A failed fetch contributes no tracks. When a fetch fails with an
// authorization error no further batch is dispatched, the error handler is
// notified once and the tracks gathered so far are returned together with an
// error marked apperr.ErrAuthExpired.
func (f *Fetcher) Sample(ctx context.Context, placeholders []catalog.Placeholder, n int) (*Result, error) {
	started := time.Now()
	res := &Result{Requested: n, Tracks: []track.Track{}}
	if n <= 0 || len(placeholders) == 0 {
		return res, nil
	}

	pool := slices.Clone(placeholders)
	f.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}

	groups := groupByContainer(pool)
	res.Containers = len(groups)

	var collected []track.Track
	var authErr error

	for start := 0; start < len(groups); start += f.cfg.BatchSize {
		if len(collected) >= n || authErr != nil {
			break
		}
		if start > 0 && f.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				res.Tracks = f.finish(collected, n)
				return res, errors.Wrap(ctx.Err(), "sample interrupted")
			case <-time.After(f.cfg.BatchDelay):
			}
		}

		end := min(start+f.cfg.BatchSize, len(groups))
		tracks, failed, err := f.fetchBatch(ctx, groups[start:end])
		collected = append(collected, tracks...)
		res.FailedContainers += failed
		if err != nil {
			authErr = err
		}
	}

	res.Tracks = f.finish(collected, n)
	f.metrics.Sampled(len(res.Tracks), time.Since(started))
	zlog.Debug().Msgf("sampler: sampled tracks=%d requested=%d containers=%d failed=%d",
		len(res.Tracks), n, res.Containers, res.FailedContainers)

	if authErr != nil {
		if f.errHandler != nil {
			f.errHandler.HandleAPIError(ctx, authErr)
		}
		return res, apperr.Wrap(authErr, apperr.ErrAuthExpired, "")
	}
	if res.Containers > 0 && res.FailedContainers == res.Containers {
		return res, apperr.New(apperr.ErrPartialFetchFailure, "",
			"all %d container fetches failed", res.Containers)
	}
	return res, nil
}

// fetchBatch resolves one batch concurrently. It returns the extracted tracks
// in group order, the number of failed containers and the first auth error.
func (f *Fetcher) fetchBatch(ctx context.Context, batch []group) ([]track.Track, int, error) {
	results := make([][]track.Track, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	g.SetLimit(f.cfg.BatchSize)
	for i, grp := range batch {
		g.Go(func() error {
			tracks, err := f.fetch(ctx, grp.container, grp.limit())
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = extract(tracks, grp.indices)
			return nil
		})
	}
	_ = g.Wait()

	var out []track.Track
	var failed int
	var authErr error
	for i, grp := range batch {
		if err := errs[i]; err != nil {
			failed++
			f.metrics.ContainerFetch(false)
			zlog.Warn().Err(err).Msgf("sampler: container fetch failed: kind=%s id=%s",
				grp.container.Kind, grp.container.ID)
			if authErr == nil && apperr.IsAuthError(err) {
				authErr = err
			}
			continue
		}
		f.metrics.ContainerFetch(true)
		out = append(out, results[i]...)
	}
	return out, failed, authErr
}

func (f *Fetcher) fetch(ctx context.Context, c catalog.Container, limit int) ([]track.Track, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}
	return f.source.ContainerTracks(ctx, c, limit)
}

func (f *Fetcher) finish(collected []track.Track, n int) []track.Track {
	f.shuffle(len(collected), func(i, j int) { collected[i], collected[j] = collected[j], collected[i] })
	if len(collected) > n {
		collected = collected[:n]
	}
	if collected == nil {
		return []track.Track{}
	}
	return collected
}

func (f *Fetcher) shuffle(n int, swap func(i, j int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rng.Shuffle(n, swap)
}

// groupByContainer groups placeholders by container identity, keeping the
// order in which containers first appear.
func groupByContainer(placeholders []catalog.Placeholder) []group {
	index := make(map[catalog.Key]int)
	var groups []group
	for _, p := range placeholders {
		key := p.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{container: p.Container})
		}
		groups[i].indices = append(groups[i].indices, p.TrackIndex)
	}
	return groups
}

// extract picks the tracks at the given indices. Indices past the end of
// tracks are skipped.
func extract(tracks []track.Track, indices []int) []track.Track {
	out := make([]track.Track, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(tracks) {
			continue
		}
		out = append(out, tracks[i])
	}
	return out
}
