package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	Capacity          int     `yaml:"capacity" mapstructure:"capacity" default:"2000" validate:"gte=1"`
	FalsePositiveRate float64 `yaml:"false_positive_rate" mapstructure:"false_positive_rate" default:"0.01" validate:"gt=0,lt=1"`
}

// DuplicateTrackFilter skips tracks already presented in the current session.
// Detects:
// - Exact track ID matches
// - Remasters and alternate versions (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateTrackFilter struct {
	seen *SeenStore
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(seen *SeenStore) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{seen: seen}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Skips tracks already shown in this session, including remasters. Covers by other artists are kept"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{CodeDuplicateTrack}
}

// ValidateConfig validates the filter configuration and sizes the store.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.seen = NewSeenStore(config.Capacity, config.FalsePositiveRate)
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(_ context.Context, t track.Track) Result {
	if f.seen == nil {
		return Accept()
	}
	if f.seen.Has(idKey(t)) || f.seen.Has(fingerprint(t)) {
		return Reject(CodeDuplicateTrack)
	}
	return Accept()
}

// Record remembers an accepted track.
func (f *DuplicateTrackFilter) Record(t track.Track) {
	if f.seen == nil {
		return
	}
	f.seen.Add(idKey(t))
	f.seen.Add(fingerprint(t))
}

// Reset forgets every remembered track.
func (f *DuplicateTrackFilter) Reset() {
	if f.seen != nil {
		f.seen.Clear()
	}
}

func idKey(t track.Track) string {
	if t.ID == "" {
		return ""
	}
	return "id:" + t.ID
}

// fingerprint identifies a song across remasters by normalized title and
// main artist.
func fingerprint(t track.Track) string {
	title := normalizeTrackName(t.Title)
	artist := strings.ToLower(strings.TrimSpace(t.ArtistName))
	if title == "" || artist == "" {
		return ""
	}
	return "song:" + title + "|" + artist
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`), // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),    // "(Radio Edit)"
		regexp.MustCompile(`\s*-\s*live$`),      // "- Live"
		regexp.MustCompile(`\s*\(live\)`),
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),
		regexp.MustCompile(`\s*-?\s*single\s+version`),
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)
	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter(NewSeenStore(2000, 0.01))
	})
}
