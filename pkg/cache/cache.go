// Package cache provides pluggable byte caches for pipeline stages.
//
// Grown trees and rendered artifacts are cached by content hash so
// repeated runs over an unchanged library are instant. Backends:
//   - file: directory-based cache for CLI usage
//   - redis: shared cache for server deployments
//   - null: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache TTLs per content type. Trees depend only on the library and
// growth options, so they can live longer than rendered artifacts.
const (
	// TTLTree is the lifetime of cached grown trees.
	TTLTree = 24 * time.Hour

	// TTLArtifact is the lifetime of cached rendered outputs.
	TTLArtifact = 12 * time.Hour
)

// Cache stores opaque byte values under string keys with a TTL.
// Implementations must treat a missing key as a miss, not an error.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// GrowKeyOpts are the options that affect a grown tree's identity.
type GrowKeyOpts struct {
	RootKey        string // Identity key of the root track
	MaxLevels      int
	TagsPerLevel   []int
	BranchesPerTag int
	Seed           uint64
}

// ArtifactKeyOpts are the options that affect a rendered artifact's identity.
type ArtifactKeyOpts struct {
	Format string
	Legend bool
	Labels bool
}

// Keyer generates cache keys for the pipeline stages.
type Keyer interface {
	// TreeKey generates a key for a grown tree from the library content
	// hash and growth options.
	TreeKey(libraryHash string, opts GrowKeyOpts) string

	// ArtifactKey generates a key for a rendered artifact from the tree
	// content hash and render options.
	ArtifactKey(treeHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the inputs into namespaced keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

// TreeKey generates a key for a grown tree.
func (k *DefaultKeyer) TreeKey(libraryHash string, opts GrowKeyOpts) string {
	return hashKey("tree", libraryHash, opts)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(treeHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", treeHash, opts)
}
