// Package playback mirrors swipe decisions onto the user's active player.
package playback

// EventType represents a playback event type.
type EventType int

const (
	EventSkipped    EventType = iota // Player moved past a swiped track
	EventSkipFailed                  // Player rejected the skip
	EventStopped                     // Playback stopped on reset
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSkipped:
		return "skipped"
	case EventSkipFailed:
		return "skip_failed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	TrackID string
	Err     error
}
