package filter

import (
	"context"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// ExplicitContentFilter skips tracks the provider rates as explicit.
type ExplicitContentFilter struct{}

func (f *ExplicitContentFilter) Name() string {
	return "explicit_content_filter"
}

func (f *ExplicitContentFilter) Description() string {
	return "Skips tracks rated explicit"
}

func (f *ExplicitContentFilter) ReturnCodes() []string {
	return []string{CodeExplicitContent}
}

func (f *ExplicitContentFilter) ValidateConfig(map[string]any) error {
	return nil
}

func (f *ExplicitContentFilter) Check(_ context.Context, t track.Track) Result {
	if t.IsExplicit() {
		return Reject(CodeExplicitContent)
	}
	return Accept()
}

func init() {
	Register("explicit_content_filter", func() Filter {
		return &ExplicitContentFilter{}
	})
}
