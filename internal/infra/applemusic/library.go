package applemusic

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/osa030/musicshuffler/internal/domain/playlist"
	"github.com/osa030/musicshuffler/internal/domain/track"
)

const (
	libraryPlaylistsPath = "/v1/me/library/playlists"
	// maxPlaylistPages bounds pagination of the user's library.
	maxPlaylistPages = 50
)

// Library manages playlists in the user's Apple Music library.
type Library struct {
	client *Client
}

// NewLibrary creates a new library.
func NewLibrary(client *Client) *Library {
	return &Library{client: client}
}

// ListPlaylists returns every playlist in the user's library.
func (l *Library) ListPlaylists(ctx context.Context) ([]playlist.Summary, error) {
	var out []playlist.Summary
	next := libraryPlaylistsPath + "?limit=100"
	for page := 0; next != "" && page < maxPlaylistPages; page++ {
		body, err := l.client.get(ctx, next)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list library playlists")
		}
		gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
			out = append(out, playlist.Summary{
				ID:   item.Get("id").String(),
				Name: item.Get("attributes.name").String(),
			})
			return true
		})
		next = gjson.GetBytes(body, "next").String()
	}
	return out, nil
}

type createRequest struct {
	Attributes    createAttributes    `json:"attributes"`
	Relationships createRelationships `json:"relationships"`
}

type createAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

type createRelationships struct {
	Tracks resourceList `json:"tracks"`
}

type resourceList struct {
	Data []resourceRef `json:"data"`
}

type resourceRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CreatePlaylist creates a private library playlist holding the submission's
// tracks in order and returns its ID. The request is not retried.
func (l *Library) CreatePlaylist(ctx context.Context, sub playlist.Submission, description string) (string, error) {
	refs := make([]resourceRef, 0, len(sub.Tracks))
	for _, id := range sub.TrackIDs() {
		refs = append(refs, resourceRef{ID: id, Type: track.Kind})
	}
	req := createRequest{
		Attributes: createAttributes{
			Name:        sub.TrimmedName(),
			Description: description,
			IsPublic:    false,
		},
		Relationships: createRelationships{Tracks: resourceList{Data: refs}},
	}

	body, err := l.client.do(ctx, http.MethodPost, libraryPlaylistsPath, req)
	if err != nil {
		return "", errors.Wrap(err, "failed to create playlist")
	}

	id := gjson.GetBytes(body, "data.0.id").String()
	if id == "" {
		id = gjson.GetBytes(body, "data.data.0.id").String()
	}
	if id == "" {
		return "", errors.New("create playlist response carried no id")
	}
	return id, nil
}
