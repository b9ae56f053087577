package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// BuildChain creates a chain holding every enabled filter, in registration
// name order, configured with its settings.
func BuildChain(enabled map[string]map[string]any) (*Chain, error) {
	chain := NewChain()
	for _, name := range RegisteredNames() {
		settings, ok := enabled[name]
		if !ok {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(settings); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter enabled: name=%s", name)
	}
	for name := range enabled {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply filters a batch, keeping order. Accepted tracks are recorded by every
// Recorder in the chain, so later tracks of the same batch are checked
// against earlier ones. Returns the accepted tracks and rejection counts by code.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) ([]track.Track, map[string]int) {
	accepted := make([]track.Track, 0, len(tracks))
	rejected := make(map[string]int)
	for _, t := range tracks {
		result := c.Execute(ctx, t)
		if !result.Accepted {
			rejected[result.Code]++
			continue
		}
		c.record(t)
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Reset clears the memory of every Recorder in the chain.
func (c *Chain) Reset() {
	for _, f := range c.filters {
		if r, ok := f.(Recorder); ok {
			r.Reset()
		}
	}
}

func (c *Chain) record(t track.Track) {
	for _, f := range c.filters {
		if r, ok := f.(Recorder); ok {
			r.Record(t)
		}
	}
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
