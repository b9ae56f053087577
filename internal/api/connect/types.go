package connect

import (
	"github.com/osa030/musicshuffler/internal/app/session/state"
	"github.com/osa030/musicshuffler/internal/app/shuffle"
	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

// Service and procedure names.
const (
	AuthServiceName     = "musicshuffler.v1.AuthService"
	ShufflerServiceName = "musicshuffler.v1.ShufflerService"

	AuthGetSessionProcedure  = "/" + AuthServiceName + "/GetSession"
	AuthAuthorizeProcedure   = "/" + AuthServiceName + "/Authorize"
	AuthUnauthorizeProcedure = "/" + AuthServiceName + "/Unauthorize"

	ShufflerSetTargetProcedure   = "/" + ShufflerServiceName + "/SetTarget"
	ShufflerStartProcedure       = "/" + ShufflerServiceName + "/Start"
	ShufflerCurrentProcedure     = "/" + ShufflerServiceName + "/Current"
	ShufflerSwipeProcedure       = "/" + ShufflerServiceName + "/Swipe"
	ShufflerStatusProcedure      = "/" + ShufflerServiceName + "/Status"
	ShufflerPublishProcedure     = "/" + ShufflerServiceName + "/Publish"
	ShufflerResetProcedure       = "/" + ShufflerServiceName + "/Reset"
	ShufflerWatchEventsProcedure = "/" + ShufflerServiceName + "/WatchEvents"
)

// Empty is the request of parameterless procedures.
type Empty struct{}

// SessionResponse describes the authorization state.
type SessionResponse struct {
	State           string `json:"state"`
	Authorized      bool   `json:"authorized"`
	UserDisplayName string `json:"user_display_name,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

func newSessionResponse(s state.Snapshot) *SessionResponse {
	return &SessionResponse{
		State:           s.StateName,
		Authorized:      s.IsAuthorized(),
		UserDisplayName: s.UserDisplayName,
		LastError:       s.LastError,
	}
}

// SetTargetRequest sets the target playlist duration.
type SetTargetRequest struct {
	Minutes int `json:"minutes"`
}

// StartRequest starts swiping. A non-zero Minutes sets the target first.
type StartRequest struct {
	Minutes int `json:"minutes,omitempty"`
}

// SwipeRequest records a decision for the current track.
type SwipeRequest struct {
	TrackID   string `json:"track_id"`
	Direction string `json:"direction"`
}

// PublishRequest submits the selection. An empty name uses the current
// playlist name.
type PublishRequest struct {
	Name string `json:"name,omitempty"`
}

// TrackView is a track as presented to clients.
type TrackView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	Genre           string `json:"genre,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	ArtworkURL      string `json:"artwork_url,omitempty"`
	Explicit        bool   `json:"explicit,omitempty"`
	URL             string `json:"url,omitempty"`
}

func newTrackView(t track.Track, artworkSize int) *TrackView {
	return &TrackView{
		ID:              t.ID,
		Title:           t.Title,
		Artist:          t.ArtistName,
		Album:           t.AlbumName,
		Genre:           t.Genre,
		DurationSeconds: t.DurationSeconds,
		ArtworkURL:      t.ArtworkURL(artworkSize),
		Explicit:        t.IsExplicit(),
		URL:             t.URL,
	}
}

// CurrentResponse holds the track awaiting a decision, if any.
type CurrentResponse struct {
	Track    *TrackView       `json:"track,omitempty"`
	Progress shuffle.Progress `json:"progress"`
}

// PublishResponse describes the created playlist.
type PublishResponse struct {
	PlaylistID   string `json:"playlist_id"`
	Name         string `json:"name"`
	TrackCount   int    `json:"track_count"`
	TotalSeconds int64  `json:"total_seconds"`
	URL          string `json:"url,omitempty"`
}

func newPublishResponse(pl *playlist.Playlist) *PublishResponse {
	return &PublishResponse{
		PlaylistID:   pl.ID,
		Name:         pl.Name,
		TrackCount:   len(pl.Tracks),
		TotalSeconds: pl.TotalDuration(),
		URL:          pl.URL,
	}
}
