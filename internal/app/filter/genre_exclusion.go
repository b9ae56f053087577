package filter

import (
	"context"
	"strings"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// GenreExclusionConfig represents the configuration for GenreExclusionFilter.
type GenreExclusionConfig struct {
	Genres []string `yaml:"genres" mapstructure:"genres" validate:"required,min=1,dive,required"`
}

// GenreExclusionFilter skips tracks whose genre is in the configured list.
// Tracks without a genre are kept.
type GenreExclusionFilter struct {
	excluded map[string]struct{}
}

func (f *GenreExclusionFilter) Name() string {
	return "genre_exclusion_filter"
}

func (f *GenreExclusionFilter) Description() string {
	return "Skips tracks of excluded genres (case-insensitive)"
}

func (f *GenreExclusionFilter) ReturnCodes() []string {
	return []string{CodeExcludedGenre}
}

func (f *GenreExclusionFilter) ValidateConfig(settings map[string]any) error {
	var config GenreExclusionConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.excluded = make(map[string]struct{}, len(config.Genres))
	for _, g := range config.Genres {
		f.excluded[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}
	return nil
}

func (f *GenreExclusionFilter) Check(_ context.Context, t track.Track) Result {
	if t.Genre == "" || len(f.excluded) == 0 {
		return Accept()
	}
	if _, ok := f.excluded[strings.ToLower(t.Genre)]; ok {
		return Reject(CodeExcludedGenre)
	}
	return Accept()
}

func init() {
	Register("genre_exclusion_filter", func() Filter {
		return &GenreExclusionFilter{}
	})
}
