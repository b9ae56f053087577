// Package playlist provides the Playlist domain entity.
package playlist

import (
	"fmt"
	"strings"

	"github.com/osa030/musicshuffler/internal/domain/track"
)

// DefaultName is used when the user does not name the playlist.
const DefaultName = "Your Shuffled Playlist"

// Summary is an existing playlist in the user's library.
type Summary struct {
	ID   string // Provider playlist ID
	Name string // Playlist name
}

// Submission is a request to create a new playlist from an accepted selection.
type Submission struct {
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in accepted order
}

// Playlist represents a playlist created in the user's library.
type Playlist struct {
	ID          string        // Provider playlist ID
	Name        string        // Playlist name
	Description string        // Playlist description
	URL         string        // Provider URL (may be empty)
	Tracks      []track.Track // Tracks in the playlist
}

// TrackIDs returns all track IDs in submission order.
func (s *Submission) TrackIDs() []string {
	return trackIDs(s.Tracks)
}

// TotalDuration returns the total duration of all tracks in seconds.
func (s *Submission) TotalDuration() int64 {
	return totalDuration(s.Tracks)
}

// TrimmedName returns the playlist name without surrounding whitespace.
func (s *Submission) TrimmedName() string {
	return strings.TrimSpace(s.Name)
}

// Description builds the playlist description shown in the user's library.
func (s *Submission) Description(appName string) string {
	minutes := (s.TotalDuration() + 30) / 60
	return fmt.Sprintf("Created by %s - %d tracks (%d min)", appName, len(s.Tracks), minutes)
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	return trackIDs(p.Tracks)
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() int64 {
	return totalDuration(p.Tracks)
}

func trackIDs(tracks []track.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

func totalDuration(tracks []track.Track) int64 {
	var total int64
	for _, t := range tracks {
		total += int64(t.DurationSeconds)
	}
	return total
}
