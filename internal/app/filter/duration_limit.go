package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinMinutes float64 `yaml:"min_minutes" mapstructure:"min_minutes" default:"1" validate:"gte=0"`
	MaxMinutes float64 `yaml:"max_minutes" mapstructure:"max_minutes" validate:"gte=0"`
}

// DurationLimitFilter rejects tracks whose length falls outside [min, max].
// A zero max means no upper bound.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Skips tracks shorter or longer than the configured limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeDurationLimitExceeded}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	if config.MaxMinutes > 0 && config.MinMinutes > config.MaxMinutes {
		return errors.New("min_minutes cannot be greater than max_minutes")
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: %+v", config)
	return nil
}

func (f *DurationLimitFilter) Check(_ context.Context, t track.Track) Result {
	if f.config == nil {
		return Accept()
	}

	d := t.Duration()
	tooLong := f.config.MaxMinutes > 0 && d > minutes(f.config.MaxMinutes)
	if d < minutes(f.config.MinMinutes) || tooLong {
		return Reject(CodeDurationLimitExceeded)
	}
	return Accept()
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
