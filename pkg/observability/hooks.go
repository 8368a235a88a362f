// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register
// hooks at startup to receive events about tree growth, layout passes,
// and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetGrowthHooks(&myGrowthHooks{})
//	    // ... run application
//	}
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Growth Hooks
// =============================================================================

// GrowthHooks receives events from the tree growth orchestrator.
type GrowthHooks interface {
	// OnGrowthStart records the beginning of an auto-growth cycle.
	OnGrowthStart(ctx context.Context, rootTrack string, maxLevels int)

	// OnBranchSkipped records a branch abandoned by validation, exclusion,
	// or exhausted fetch fallbacks. reason is a short machine-readable word.
	OnBranchSkipped(ctx context.Context, tag, reason string)

	// OnGrowthComplete records the end of a growth cycle with final totals.
	OnGrowthComplete(ctx context.Context, nodes, connections int, duration time.Duration)
}

// =============================================================================
// Layout Hooks
// =============================================================================

// LayoutHooks receives events from layout computation.
type LayoutHooks interface {
	// OnLayoutComplete records a completed positioning pass.
	OnLayoutComplete(nodeCount int, duration time.Duration)

	// OnOverlapResidue records violations remaining after the bounded
	// overlap-repair pass gave up.
	OnOverlapResidue(pairs int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGrowthHooks is a no-op implementation of GrowthHooks.
type NoopGrowthHooks struct{}

func (NoopGrowthHooks) OnGrowthStart(context.Context, string, int)                {}
func (NoopGrowthHooks) OnBranchSkipped(context.Context, string, string)           {}
func (NoopGrowthHooks) OnGrowthComplete(context.Context, int, int, time.Duration) {}

// NoopLayoutHooks is a no-op implementation of LayoutHooks.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutComplete(int, time.Duration) {}
func (NoopLayoutHooks) OnOverlapResidue(int)                {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	growthHooks GrowthHooks = NoopGrowthHooks{}
	layoutHooks LayoutHooks = NoopLayoutHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetGrowthHooks registers custom growth hooks.
// This should be called once at application startup before any growth runs.
func SetGrowthHooks(h GrowthHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		growthHooks = h
	}
}

// SetLayoutHooks registers custom layout hooks.
// This should be called once at application startup before any layout passes.
func SetLayoutHooks(h LayoutHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		layoutHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Growth returns the registered growth hooks.
func Growth() GrowthHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return growthHooks
}

// Layout returns the registered layout hooks.
func Layout() LayoutHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return layoutHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	growthHooks = NoopGrowthHooks{}
	layoutHooks = NoopLayoutHooks{}
	cacheHooks = NoopCacheHooks{}
}
