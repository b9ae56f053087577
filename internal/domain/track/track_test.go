package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected int
	}{
		{name: "regular track", duration: 245 * time.Second, expected: 245},
		{name: "sub-second truncated", duration: 200*time.Second + 900*time.Millisecond, expected: 200},
		{name: "missing duration", duration: 0, expected: DefaultDurationSeconds},
		{name: "negative duration", duration: -time.Second, expected: DefaultDurationSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DurationSeconds(tt.duration))
		})
	}
}

func TestNew(t *testing.T) {
	tr := New("1", "Song", "Artist", 0)

	assert.Equal(t, Kind, tr.Kind)
	assert.Equal(t, DefaultDurationSeconds, tr.DurationSeconds)
	assert.Equal(t, 180*time.Second, tr.Duration())
}

func TestTrack_ArtworkURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		size     int
		expected string
	}{
		{
			name:     "both placeholders",
			template: "https://example.com/art/{w}x{h}bb.jpg",
			size:     300,
			expected: "https://example.com/art/300x300bb.jpg",
		},
		{
			name:     "no placeholders",
			template: "https://example.com/art.jpg",
			size:     300,
			expected: "https://example.com/art.jpg",
		},
		{
			name:     "no artwork",
			template: "",
			size:     300,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Track{ArtworkURLTemplate: tt.template}
			assert.Equal(t, tt.expected, tr.ArtworkURL(tt.size))
		})
	}
}

func TestTrack_IsExplicit(t *testing.T) {
	assert.True(t, (&Track{ContentRating: "explicit"}).IsExplicit())
	assert.True(t, (&Track{ContentRating: "Explicit"}).IsExplicit())
	assert.False(t, (&Track{ContentRating: "clean"}).IsExplicit())
	assert.False(t, (&Track{}).IsExplicit())
}
