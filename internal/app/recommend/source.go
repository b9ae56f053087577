// Package recommend provides the recommendation pipeline: recommended
// containers are expanded, sampled, enriched and filtered into a batch of
// tracks ready to be swiped.
package recommend

import (
	"context"

	"github.com/osa030/musicshuffler/internal/domain/catalog"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Source is the interface for recommendation providers.
type Source interface {
	// Recommendations returns the containers currently recommended to the user.
	Recommendations(ctx context.Context) ([]catalog.Container, error)
	// ContainerTracks returns the tracks of a container in container order.
	// Only the first limit tracks are needed; limit <= 0 means all.
	ContainerTracks(ctx context.Context, c catalog.Container, limit int) ([]track.Track, error)
	// Name returns the provider name (used in config).
	Name() string
}

// Enricher fills in track metadata the provider did not report.
type Enricher interface {
	Enrich(ctx context.Context, tracks []track.Track) []track.Track
}
