package layout

import (
	"math"

	"github.com/matzehuels/tracktree/pkg/observability"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// Search bounds for collision-free position lookup. The search always
// terminates: after the bounded attempts the preferred angle is accepted
// at an overflow distance, tolerating residual overlap as a last resort.
const (
	distanceSteps    = 5    // Attempts at increasing distance on the preferred angle
	distanceStep     = 18.0 // Distance increment per attempt
	angleStep        = 0.15 // Radians between alternating angle candidates
	maxAngleAttempts = 20   // Bound on the alternating angle search
	overflowOffset   = 80.0 // Added to base distance when the search is exhausted
	repairIterations = 5    // Bound on global overlap-repair passes
	repairBuffer     = 2.0  // Extra clearance applied when separating a pair
)

// Resolver provides pure-geometry collision tests and position repair for
// a tree laid out by [Engine]. All methods are deterministic.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver using the given geometry, filling unset
// config fields with defaults.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.withDefaults()}
}

// HasCollision reports whether any registered node other than excludeID
// sits closer to pos than the minimum allowed center distance.
func (r *Resolver) HasCollision(t *tree.Tree, pos tree.Position, excludeID tree.NodeID) bool {
	min := r.cfg.MinDistance()
	for _, n := range t.Nodes() {
		if n.ID == excludeID {
			continue
		}
		if dist(n.Pos, pos) < min {
			return true
		}
	}
	return false
}

// FindCollisionFreePosition searches for a free position near the
// preferred angle and base distance from parentPos.
//
// The search tries the preferred angle at increasing distances first,
// then alternates probing angles above and below the preferred angle.
// If every attempt collides, the preferred angle is returned at the base
// distance plus a fixed overflow offset unconditionally, so the search
// always terminates even in pathologically dense regions.
func (r *Resolver) FindCollisionFreePosition(t *tree.Tree, parentPos tree.Position, preferredAngle, baseDistance float64, excludeID tree.NodeID) (tree.Position, float64) {
	for i := 0; i < distanceSteps; i++ {
		pos := offset(parentPos, preferredAngle, baseDistance+float64(i)*distanceStep)
		if !r.HasCollision(t, pos, excludeID) {
			return pos, preferredAngle
		}
	}

	attempts := 0
	for k := 1; attempts < maxAngleAttempts; k++ {
		for _, sign := range []float64{1, -1} {
			if attempts >= maxAngleAttempts {
				break
			}
			attempts++
			angle := preferredAngle + sign*float64(k)*angleStep
			pos := offset(parentPos, angle, baseDistance)
			if !r.HasCollision(t, pos, excludeID) {
				return pos, angle
			}
		}
	}

	// Accept residual overlap rather than failing.
	return offset(parentPos, preferredAngle, baseDistance+overflowOffset), preferredAngle
}

// ValidateAndFixOverlaps runs a bounded global repair pass over every
// node pair. For each violating pair the deeper node is pushed away from
// the shallower one along their separation vector to exactly the minimum
// safe distance plus a small buffer, and its angle relative to its parent
// is recomputed so connectors stay geometrically consistent.
//
// This is best-effort relaxation, not a guaranteed zero-overlap solver:
// after the iteration bound is reached, remaining violations are accepted
// and their count returned. A return of zero means the final pass found
// no violating pairs.
func (r *Resolver) ValidateAndFixOverlaps(t *tree.Tree) int {
	min := r.cfg.MinDistance()
	nodes := t.Nodes()

	for iter := 0; iter < repairIterations; iter++ {
		violations := 0
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				a, b := nodes[i], nodes[j]
				if dist(a.Pos, b.Pos) >= min {
					continue
				}
				violations++
				r.separate(t, a, b, min)
			}
		}
		if violations == 0 {
			return 0
		}
	}

	remaining := r.countViolations(nodes, min)
	if remaining > 0 {
		observability.Layout().OnOverlapResidue(remaining)
	}
	return remaining
}

// separate pushes the deeper of the two nodes away from the shallower one.
// Depth ties are broken by node ID so repair is deterministic.
func (r *Resolver) separate(t *tree.Tree, a, b *tree.Node, min float64) {
	mover, anchor := a, b
	if a.Depth < b.Depth || (a.Depth == b.Depth && a.ID < b.ID) {
		mover, anchor = b, a
	}

	dx := mover.Pos.X - anchor.Pos.X
	dy := mover.Pos.Y - anchor.Pos.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		// Coincident centers: push along the mover's own outward angle.
		dx, dy = math.Cos(mover.Angle), math.Sin(mover.Angle)
		d = 1
	}
	scale := (min + repairBuffer) / d
	mover.Pos = tree.Position{
		X: anchor.Pos.X + dx*scale,
		Y: anchor.Pos.Y + dy*scale,
	}

	if parent, ok := t.Node(mover.ParentID); ok {
		mover.Angle = math.Atan2(mover.Pos.Y-parent.Pos.Y, mover.Pos.X-parent.Pos.X)
	}
}

func (r *Resolver) countViolations(nodes []*tree.Node, min float64) int {
	count := 0
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if dist(nodes[i].Pos, nodes[j].Pos) < min {
				count++
			}
		}
	}
	return count
}

// dist returns the Euclidean distance between two positions.
func dist(a, b tree.Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
