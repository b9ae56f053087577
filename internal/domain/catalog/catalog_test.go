package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFromResourceType(t *testing.T) {
	tests := []struct {
		typ      string
		expected Kind
	}{
		{typ: "albums", expected: KindAlbum},
		{typ: "library-albums", expected: KindAlbum},
		{typ: "playlists", expected: KindPlaylist},
		{typ: "library-playlists", expected: KindPlaylist},
		{typ: "stations", expected: KindUnknown},
		{typ: "", expected: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindFromResourceType(tt.typ))
		})
	}
}

func TestPlaceholder_Key(t *testing.T) {
	album := Container{ID: "1", Kind: KindAlbum}
	playlist := Container{ID: "1", Kind: KindPlaylist}

	a := Placeholder{Container: album, TrackIndex: 0}
	b := Placeholder{Container: album, TrackIndex: 5}
	c := Placeholder{Container: playlist, TrackIndex: 0}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "album:1", a.Key().String())
}
