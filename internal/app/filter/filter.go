// Package filter provides the filter chain applied to sampled tracks before
// they are presented for swiping.
package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Rejection codes. Each matches a message key in the configuration.
const (
	CodeDuplicateTrack        = "duplicate_track"
	CodeDurationLimitExceeded = "duration_limit_exceeded"
	CodeExplicitContent       = "explicit_content"
	CodeExcludedGenre         = "excluded_genre"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for track filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, t track.Track) Result
}

// Recorder is implemented by filters that remember accepted tracks.
type Recorder interface {
	Record(t track.Track)
	Reset()
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// RegisteredNames returns the registered filter names in sorted order.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeSettings decodes a settings map into out, applies defaults and
// validates the result.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
