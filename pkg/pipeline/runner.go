package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tracktree/pkg/cache"
	"github.com/matzehuels/tracktree/pkg/grow"
	treeio "github.com/matzehuels/tracktree/pkg/io"
	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/render"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete grow → layout → render pipeline with caching.
//
// The tree cache key includes opts.Seed but the source itself is supplied
// by the caller; for reproducible runs the source must be seeded with the
// same value.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Grow
	growStart := time.Now()
	t, treeHit, err := r.GrowWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("grow: %w", err)
	}
	result.Tree = t
	result.Stats.GrowTime = time.Since(growStart)
	result.Stats.NodeCount = t.NodeCount()
	result.Stats.ConnectionCount = t.ConnectionCount()
	result.CacheInfo.TreeHit = treeHit

	r.Logger.Info("grew tree",
		"nodes", t.NodeCount(),
		"connections", t.ConnectionCount(),
		"duration", result.Stats.GrowTime)

	// Stage 2: Layout. Always recomputed so cached trees pick up the
	// current layout configuration.
	layoutStart := time.Now()
	layout.New(opts.Layout).Refresh(t)
	result.Stats.LayoutTime = time.Since(layoutStart)

	// Compute tree hash for cache keys and server responses after layout,
	// so artifact keys cover positions too.
	treeData, err := treeio.MarshalTree(t)
	if err != nil {
		return nil, fmt.Errorf("serialize tree: %w", err)
	}
	result.TreeHash = cache.Hash(treeData)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, t, result.TreeHash, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// GrowWithCacheInfo grows a tree with caching and returns cache hit info.
func (r *Runner) GrowWithCacheInfo(ctx context.Context, opts Options) (*tree.Tree, bool, error) {
	if err := opts.ValidateForGrow(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	cacheKey := r.Keyer.TreeKey(opts.LibraryHash, opts.TreeKeyOpts())

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			t, err := treeio.ReadJSON(bytes.NewReader(data))
			if err == nil {
				return t, true, nil // Cache hit
			}
			// If deserialization fails, fall through to regrow
		}
	}

	// Grow
	t, err := r.growTree(ctx, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache the result
	if data, err := treeio.MarshalTree(t); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLTree)
	}

	return t, false, nil // Cache miss
}

// Grow is a convenience wrapper that calls GrowWithCacheInfo and discards
// the cache hit info.
func (r *Runner) Grow(ctx context.Context, opts Options) (*tree.Tree, error) {
	t, _, err := r.GrowWithCacheInfo(ctx, opts)
	return t, err
}

func (r *Runner) growTree(ctx context.Context, opts Options) (*tree.Tree, error) {
	t := tree.New()
	engine := layout.New(opts.Layout)
	orch := grow.New(t, engine, opts.Source, opts.GrowOptions(), grow.WithLogger(opts.Logger))
	defer orch.Close()

	if _, err := orch.GenerateAutoTree(ctx, opts.Root, opts.DropPos); err != nil {
		return nil, err
	}
	if err := orch.Wait(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// RenderWithCacheInfo generates artifacts with caching and returns cache
// hit info. treeHash must be the content hash of the serialized tree.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, t *tree.Tree, treeHash string, opts Options) (map[string][]byte, bool, error) {
	opts.SetRenderDefaults()
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(treeHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		return artifacts, true, nil // All artifacts from cache
	}

	// Render all formats
	rendered, err := renderFormats(t, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(treeHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
	}

	return rendered, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Render(ctx context.Context, t *tree.Tree, treeHash string, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, t, treeHash, opts)
	return artifacts, err
}

func renderFormats(t *tree.Tree, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		switch format {
		case FormatSVG:
			artifacts[format] = renderSVG(t, opts)
		case FormatDOT:
			artifacts[format] = []byte(render.ToDOT(t, render.DotOptions{}))
		case FormatPNG:
			data, err := render.RenderDOTPNG(render.ToDOT(t, render.DotOptions{}))
			if err != nil {
				return nil, fmt.Errorf("render png: %w", err)
			}
			artifacts[format] = data
		case FormatJSON:
			data, err := treeio.MarshalTree(t)
			if err != nil {
				return nil, fmt.Errorf("render json: %w", err)
			}
			artifacts[format] = data
		default:
			return nil, fmt.Errorf("invalid format: %q", format)
		}
	}
	return artifacts, nil
}

func renderSVG(t *tree.Tree, opts Options) []byte {
	svgOpts := []render.SVGOption{
		render.WithNodeRadius(opts.Layout.NodeRadius),
	}
	if opts.Layout.NodeRadius == 0 {
		svgOpts = svgOpts[:0]
	}
	if opts.Legend {
		svgOpts = append(svgOpts, render.WithLegend())
	}
	if !opts.ShowLabels() {
		svgOpts = append(svgOpts, render.WithoutLabels())
	}
	return render.RenderSVG(t, svgOpts...)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
