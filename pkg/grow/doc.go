// Package grow drives recursive, time-staggered construction of a track
// tree.
//
// The [Orchestrator] expands a root track level by level: it selects
// representative tags for each node (excluding the tag that created the
// node), fetches related tracks per tag from a [TrackSource] with a
// three-tier fallback, validates candidates against the registry rules
// and an external [ExclusionPolicy], and places accepted tracks through
// the layout engine. Delays between tags and branches are presentational
// pacing handled by a cancellable [Scheduler]; correctness never depends
// on timing, and callbacks firing after a clear detect their stale
// parent and no-op.
package grow
