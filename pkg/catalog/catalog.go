// Package catalog provides track sources backing tree growth.
//
// A catalog answers the three fetch tiers the orchestrator relies on:
// tracks sharing an exact tag, tracks sharing a tag category, and
// uniformly random tracks. [Memory] serves a library loaded into memory
// (typically from a JSON export); [Mongo] queries a MongoDB collection
// for libraries too large to hold resident.
package catalog

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/tracktree/pkg/grow"
	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/track"
)

// Memory is an in-memory catalog with tag and category indexes.
// Results are shuffled with a seeded generator so growth is varied
// between seeds but reproducible for a given one.
//
// Memory is safe for concurrent readers once built.
type Memory struct {
	tracks     []track.Track
	byTag      map[string][]int
	byCategory map[string][]int
	seed       uint64
}

// NewMemory builds an indexed catalog over the given tracks.
// The seed controls result shuffling; the same seed yields the same
// growth for the same library.
func NewMemory(tracks []track.Track, seed uint64) *Memory {
	m := &Memory{
		tracks:     slices.Clone(tracks),
		byTag:      make(map[string][]int),
		byCategory: make(map[string][]int),
		seed:       seed,
	}
	for i, t := range m.tracks {
		for _, tag := range t.Tags {
			m.byTag[tag] = append(m.byTag[tag], i)
			if cat := tags.Category(tag); cat != "" {
				if !slices.Contains(m.byCategory[cat], i) {
					m.byCategory[cat] = append(m.byCategory[cat], i)
				}
			}
		}
	}
	return m
}

// Len returns the number of tracks in the catalog.
func (m *Memory) Len() int { return len(m.tracks) }

// FetchRelatedTracks returns tracks carrying the exact tag, excluding
// the given track. An empty result is valid and triggers the caller's
// fallback chain.
func (m *Memory) FetchRelatedTracks(_ context.Context, tag string, exclude track.Track) ([]track.Track, error) {
	return m.collect(m.byTag[tag], tag, exclude), nil
}

// FetchByCategory returns tracks carrying any tag of the category,
// excluding the given track.
func (m *Memory) FetchByCategory(_ context.Context, category string, exclude track.Track) ([]track.Track, error) {
	return m.collect(m.byCategory[category], category, exclude), nil
}

// FetchRandom returns up to n uniformly random tracks, excluding the
// given track.
func (m *Memory) FetchRandom(_ context.Context, n int, exclude track.Track) ([]track.Track, error) {
	indices := make([]int, len(m.tracks))
	for i := range indices {
		indices[i] = i
	}
	out := m.collect(indices, "", exclude)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// collect copies, filters, and shuffles the tracks at the given indices.
// The salt folds the query into the shuffle so different tags of the
// same library fan out differently under one seed.
func (m *Memory) collect(indices []int, salt string, exclude track.Track) []track.Track {
	var out []track.Track
	for _, i := range indices {
		if m.tracks[i].Equal(exclude) {
			continue
		}
		out = append(out, m.tracks[i].Clone())
	}
	rng := rand.New(rand.NewPCG(m.seed, hashSalt(salt)))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func hashSalt(s string) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Ensure Memory implements the orchestrator's source interface.
var _ grow.TrackSource = (*Memory)(nil)
