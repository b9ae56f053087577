package shuffle

import (
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

// State is the phase of a shuffle session.
type State int

const (
	StateCollectingDuration State = iota // Waiting for a target duration
	StateSwiping                         // Presenting tracks
	StateComplete                        // Target reached
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCollectingDuration:
		return "collecting_duration"
	case StateSwiping:
		return "swiping"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Direction is a swipe decision.
type Direction string

const (
	DirectionLeft  Direction = "left"  // Reject
	DirectionRight Direction = "right" // Accept
)

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionLeft, DirectionRight:
		return Direction(s), true
	default:
		return "", false
	}
}

// Selection is the accumulated swipe outcome.
// CumulativeSeconds always equals the summed duration of Accepted.
type Selection struct {
	Accepted          []track.Track
	CumulativeSeconds int
	SwipedCount       int
}

// Result is the completed selection ready to publish.
type Result struct {
	Tracks       []track.Track
	PlaylistName string
	TotalSeconds int
}

// Progress is a point-in-time view of the controller.
type Progress struct {
	State             string             `json:"state"`
	TargetMinutes     int                `json:"target_minutes"`
	CumulativeSeconds int                `json:"cumulative_seconds"`
	SwipedCount       int                `json:"swiped_count"`
	AcceptedCount     int                `json:"accepted_count"`
	TotalTracks       int                `json:"total_tracks"`
	Remaining         int                `json:"remaining"`
	Fetching          bool               `json:"fetching"`
	Exhausted         bool               `json:"exhausted"`
	Generation        uint64             `json:"generation"`
	LastError         string             `json:"last_error,omitempty"`
	PlaylistName      string             `json:"playlist_name"`
	Current           *track.Track       `json:"current,omitempty"`
	Published         *playlist.Playlist `json:"published,omitempty"`
}

// replenishKey identifies a replenishment trigger point.
type replenishKey struct {
	generation uint64
	swiped     int
}
