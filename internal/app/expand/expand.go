// Package expand turns recommendation pages into addressable track placeholders.
package expand

import (
	"github.com/tidwall/gjson"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/domain/catalog"
)

// ParseRecommendations extracts the album and playlist containers referenced by
// a recommendations response.
//
// The page may be the raw REST shape ({"data":[...]}) or the SDK-wrapped shape
// ({"data":{"data":[...]}}). Each recommendation's contents may be a list of
// resources, a list of wrappers holding a "data" list, or a single relationship
// object holding a "data" list. Containers without tracks, without a resource
// path or of an unknown kind are dropped. Containers are deduplicated by kind
// and ID, keeping the first occurrence.
func ParseRecommendations(body []byte) ([]catalog.Container, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperr.New(apperr.ErrInvalidInput, "", "recommendations: response is not valid JSON")
	}

	entries := gjson.GetBytes(body, "data")
	if entries.IsObject() {
		entries = entries.Get("data")
	}
	if !entries.IsArray() {
		return []catalog.Container{}, nil
	}

	containers := make([]catalog.Container, 0)
	seen := make(map[catalog.Key]struct{})
	entries.ForEach(func(_, entry gjson.Result) bool {
		for _, res := range contentResources(entry) {
			c, ok := parseContainer(res)
			if !ok {
				continue
			}
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			containers = append(containers, c)
		}
		return true
	})

	return containers, nil
}

// contentResources normalizes every supported contents shape to a flat list.
func contentResources(entry gjson.Result) []gjson.Result {
	contents := entry.Get("relationships.contents")
	switch {
	case contents.IsArray():
		var out []gjson.Result
		for _, item := range contents.Array() {
			if inner := item.Get("data"); inner.IsArray() {
				out = append(out, inner.Array()...)
				continue
			}
			out = append(out, item)
		}
		return out
	case contents.IsObject():
		if inner := contents.Get("data"); inner.IsArray() {
			return inner.Array()
		}
	}
	return nil
}

func parseContainer(res gjson.Result) (catalog.Container, bool) {
	kind := catalog.KindFromResourceType(res.Get("type").String())
	if kind == catalog.KindUnknown {
		return catalog.Container{}, false
	}

	c := catalog.Container{
		ID:         res.Get("id").String(),
		Kind:       kind,
		Ref:        res.Get("href").String(),
		Name:       displayName(res),
		ArtworkURL: res.Get("attributes.artwork.url").String(),
		TrackCount: trackCount(res),
	}
	if c.ID == "" || c.Ref == "" || c.TrackCount <= 0 {
		return catalog.Container{}, false
	}
	return c, true
}

func trackCount(res gjson.Result) int {
	if v := res.Get("attributes.trackCount"); v.Exists() {
		return int(v.Int())
	}
	if v := res.Get("relationships.tracks.meta.total"); v.Exists() {
		return int(v.Int())
	}
	if v := res.Get("relationships.tracks.data"); v.IsArray() {
		return len(v.Array())
	}
	return 0
}

func displayName(res gjson.Result) string {
	for _, path := range []string{"attributes.name", "attributes.title.stringForDisplay", "type"} {
		if v := res.Get(path).String(); v != "" {
			return v
		}
	}
	return "Unknown"
}

// Placeholders generates one placeholder per track slot of every container,
// in container order. No network calls are made.
func Placeholders(containers []catalog.Container) []catalog.Placeholder {
	total := 0
	for _, c := range containers {
		if c.TrackCount > 0 {
			total += c.TrackCount
		}
	}

	out := make([]catalog.Placeholder, 0, total)
	for _, c := range containers {
		for i := 0; i < c.TrackCount; i++ {
			out = append(out, catalog.Placeholder{Container: c, TrackIndex: i})
		}
	}
	return out
}
