package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		minMinutes    float64
		maxMinutes    float64
		trackDuration time.Duration
		shouldReject  bool
	}{
		{name: "within limits", minMinutes: 2, maxMinutes: 5, trackDuration: 3 * time.Minute},
		{name: "too short", minMinutes: 3, trackDuration: 2 * time.Minute, shouldReject: true},
		{name: "too long", minMinutes: 1, maxMinutes: 5, trackDuration: 6 * time.Minute, shouldReject: true},
		{name: "exact min", minMinutes: 3, trackDuration: 3 * time.Minute},
		{name: "exact max", minMinutes: 1, maxMinutes: 5, trackDuration: 5 * time.Minute},
		{name: "no max limit", minMinutes: 1, trackDuration: 20 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := &DurationLimitFilter{
				config: &DurationLimitConfig{MinMinutes: tt.minMinutes, MaxMinutes: tt.maxMinutes},
			}
			tr := track.Track{ID: "t", DurationSeconds: int(tt.trackDuration / time.Second)}

			result := filter.Check(context.Background(), tr)
			assert.Equal(t, !tt.shouldReject, result.Accepted)
			if tt.shouldReject {
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			}
		})
	}
}

func TestDurationLimitFilter_NoConfig(t *testing.T) {
	filter := NewDurationLimitFilter()
	result := filter.Check(context.Background(), track.Track{DurationSeconds: 1})
	assert.True(t, result.Accepted)
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		wantMin  float64
	}{
		{name: "defaults", settings: map[string]any{}, wantMin: 1},
		{name: "valid range", settings: map[string]any{"min_minutes": 2, "max_minutes": 8}, wantMin: 2},
		{name: "min above max", settings: map[string]any{"min_minutes": 9, "max_minutes": 8}, wantErr: true},
		{name: "negative max", settings: map[string]any{"max_minutes": -1}, wantErr: true},
		{name: "wrong type", settings: map[string]any{"min_minutes": "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewDurationLimitFilter()
			err := filter.ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantMin, filter.config.MinMinutes)
		})
	}
}
