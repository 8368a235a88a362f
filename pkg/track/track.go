// Package track defines the music track model shared by the catalog,
// tree registry, and growth orchestrator.
package track

import (
	"slices"
	"strings"

	"github.com/matzehuels/tracktree/pkg/errors"
)

// Track is a single entry in a music library. Tags carry the
// "category:value" strings that drive tree expansion and connector
// labeling (e.g. "mood:happy", "energy:high").
type Track struct {
	Title  string   `json:"title" bson:"title"`
	Artist string   `json:"artist" bson:"artist"`
	Album  string   `json:"album,omitempty" bson:"album,omitempty"`
	Tags   []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// Key returns the identity key for de-duplication.
// Two tracks are the same iff title, artist, and album all match.
// Comparison is case-insensitive to survive inconsistent library tagging.
func (t Track) Key() string {
	return strings.ToLower(t.Title) + "\x00" + strings.ToLower(t.Artist) + "\x00" + strings.ToLower(t.Album)
}

// Equal reports whether two tracks share the same identity (title, artist, album).
// Tags are intentionally excluded from identity.
func (t Track) Equal(other Track) bool {
	return t.Key() == other.Key()
}

// HasTag reports whether the track carries the exact tag.
func (t Track) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// String returns "Artist - Title" for logging and labels.
func (t Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// Validate checks that the track carries the minimum data required to
// become a tree node. Returns an error with code ErrCodeInvalidTrack
// when title or artist is missing.
func (t Track) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New(errors.ErrCodeInvalidTrack, "track has no title")
	}
	if strings.TrimSpace(t.Artist) == "" {
		return errors.New(errors.ErrCodeInvalidTrack, "track %q has no artist", t.Title)
	}
	return nil
}

// Clone returns a deep copy of the track. The tag slice is copied so
// callers can mutate the result without affecting the original.
func (t Track) Clone() Track {
	out := t
	out.Tags = slices.Clone(t.Tags)
	return out
}
