// Package catalog provides recommendation container and track placeholder entities.
package catalog

import "fmt"

// Kind is the kind of a recommendation container.
type Kind int

const (
	KindUnknown Kind = iota
	KindAlbum
	KindPlaylist
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAlbum:
		return "album"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// KindFromResourceType maps a provider resource type to a container kind.
// Unrecognized types map to KindUnknown.
func KindFromResourceType(typ string) Kind {
	switch typ {
	case "albums", "library-albums", "album":
		return KindAlbum
	case "playlists", "library-playlists", "playlist":
		return KindPlaylist
	default:
		return KindUnknown
	}
}

// Container is a recommended album or playlist holding a known number of tracks.
type Container struct {
	ID         string // Provider container ID
	Kind       Kind   // Album or Playlist
	Ref        string // Resource path used to fetch the container with its tracks
	Name       string // Display name (may be empty)
	ArtworkURL string // Artwork template (may be empty)
	TrackCount int    // Number of tracks in the container
}

// Key identifies a container by kind and ID.
type Key struct {
	Kind Kind
	ID   string
}

// String returns "kind:id".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// Key returns the identity of the container.
func (c *Container) Key() Key {
	return Key{Kind: c.Kind, ID: c.ID}
}

// Placeholder addresses one track slot inside a container.
type Placeholder struct {
	Container  Container // Owning container
	TrackIndex int       // Position within the container, in [0, TrackCount)
}

// Key returns the identity of the owning container.
func (p *Placeholder) Key() Key {
	return p.Container.Key()
}
