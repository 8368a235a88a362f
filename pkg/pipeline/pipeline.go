// Package pipeline provides the core visualization pipeline for Tracktree.
//
// This package implements the complete grow → layout → render pipeline that
// can be used by CLI and server components. By centralizing this logic, we
// ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Grow: Expand a tag-connected tree from a root track using a catalog
//  2. Layout: Compute radial positions for the grown tree
//  3. Render: Generate output in various formats (SVG, PNG, DOT, JSON)
//
// Grown trees and rendered artifacts are cached by content hash; layout is
// recomputed on every run so a cached tree always reflects the current
// layout configuration.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Root:    track.Track{Title: "Nightcall", Artist: "Kavinsky"},
//	    Source:  catalog,
//	    Formats: []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tracktree/pkg/cache"
	"github.com/matzehuels/tracktree/pkg/grow"
	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/track"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultSeed is the default random seed for reproducible growth.
	DefaultSeed = uint64(42)
)

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatDOT:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the visualization pipeline.
// This struct supports JSON serialization for server requests.
type Options struct {
	// Grow options
	Root           track.Track    `json:"root"`
	DropPos        *tree.Position `json:"drop_pos,omitempty"`
	MaxLevels      int            `json:"max_levels,omitempty"`
	TagsPerLevel   []int          `json:"tags_per_level,omitempty"`
	BranchesPerTag int            `json:"branches_per_tag,omitempty"`
	Seed           uint64         `json:"seed,omitempty"`
	Refresh        bool           `json:"refresh,omitempty"`

	// Render options
	Formats []string `json:"formats,omitempty"`
	Legend  bool     `json:"legend,omitempty"`
	Labels  *bool    `json:"labels,omitempty"` // nil means labels on

	// Runtime options (not serialized)
	Source      grow.TrackSource `json:"-"`
	LibraryHash string           `json:"-"`
	Layout      layout.Config    `json:"-"`
	Logger      *log.Logger      `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Tree is the grown tree with positions computed.
	Tree *tree.Tree

	// TreeHash is the content hash of the serialized tree.
	TreeHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount       int
	ConnectionCount int
	GrowTime        time.Duration
	LayoutTime      time.Duration
	RenderTime      time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	TreeHit   bool // Whether the grown tree came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: svg, png, dot, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForGrow(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForGrow checks required fields for growing.
func (o *Options) ValidateForGrow() error {
	if err := o.Root.Validate(); err != nil {
		return fmt.Errorf("root track: %w", err)
	}
	if o.Source == nil {
		return fmt.Errorf("source is required")
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ShowLabels reports whether connector tag labels should be drawn.
func (o *Options) ShowLabels() bool {
	return o.Labels == nil || *o.Labels
}

// GrowOptions returns the growth bounds for the orchestrator.
func (o *Options) GrowOptions() grow.Options {
	return grow.Options{
		MaxLevels:      o.MaxLevels,
		TagsPerLevel:   o.TagsPerLevel,
		BranchesPerTag: o.BranchesPerTag,
	}
}

// TreeKeyOpts returns cache key options for the grown tree.
func (o *Options) TreeKeyOpts() cache.GrowKeyOpts {
	return cache.GrowKeyOpts{
		RootKey:        o.Root.Key(),
		MaxLevels:      o.MaxLevels,
		TagsPerLevel:   o.TagsPerLevel,
		BranchesPerTag: o.BranchesPerTag,
		Seed:           o.Seed,
	}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format: format,
		Legend: o.Legend,
		Labels: o.ShowLabels(),
	}
}
