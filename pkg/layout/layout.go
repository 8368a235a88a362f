// Package layout computes radial positions for every node in a track tree.
//
// The root sits at the canvas center (or the drop point of the first
// track). Direct children of the root are distributed on a full circle at
// a fixed radius; deeper children fan out in shrinking semicircles
// oriented along the vector from grandparent through parent. Candidate
// positions below level one pass through a collision resolver because
// fans from independent parents share the same canvas space.
//
// Angles are radians everywhere inside the package; degrees appear only
// at the configuration boundary.
package layout

import (
	"math"

	"github.com/matzehuels/tracktree/pkg/tree"
)

// Default configuration values.
const (
	// DefaultLevelOneRadius is the distance from the root to its direct
	// children.
	DefaultLevelOneRadius = 160.0

	// DefaultChildRadius is the parent-to-child distance below level one.
	// Kept smaller than the level-one radius so outer rings stay compact.
	DefaultChildRadius = 110.0

	// DefaultAngleSpreadDeg is the fan width for level-two children.
	DefaultAngleSpreadDeg = 180.0

	// DefaultSpreadShrink scales the fan width per additional level to
	// reduce clutter at depth.
	DefaultSpreadShrink = 0.6

	// DefaultNodeRadius is the visual radius of a node circle.
	DefaultNodeRadius = 28.0

	// DefaultCollisionPadding is the extra clearance required between
	// node centers beyond their combined radii.
	DefaultCollisionPadding = 8.0
)

// startAngle places the first level-one child at 12 o'clock.
const startAngle = -math.Pi / 2

// Config holds the layout geometry constants. Distances are configuration
// values, never computed from content. The zero value is usable: New
// fills unset fields with defaults.
type Config struct {
	LevelOneRadius   float64 // Root to level-one children (R1)
	ChildRadius      float64 // Parent to child below level one (R2 < R1)
	AngleSpreadDeg   float64 // Fan width at level two, in degrees
	SpreadShrink     float64 // Fan width multiplier per extra level
	NodeRadius       float64 // Node circle radius
	CollisionPadding float64 // Extra clearance between node centers
	Center           tree.Position
}

func (c Config) withDefaults() Config {
	if c.LevelOneRadius == 0 {
		c.LevelOneRadius = DefaultLevelOneRadius
	}
	if c.ChildRadius == 0 {
		c.ChildRadius = DefaultChildRadius
	}
	if c.AngleSpreadDeg == 0 {
		c.AngleSpreadDeg = DefaultAngleSpreadDeg
	}
	if c.SpreadShrink == 0 {
		c.SpreadShrink = DefaultSpreadShrink
	}
	if c.NodeRadius == 0 {
		c.NodeRadius = DefaultNodeRadius
	}
	if c.CollisionPadding == 0 {
		c.CollisionPadding = DefaultCollisionPadding
	}
	return c
}

// MinDistance returns the minimum allowed distance between node centers.
func (c Config) MinDistance() float64 {
	return 2*c.NodeRadius + c.CollisionPadding
}

// Engine computes node positions for a tree. Engine is stateless apart
// from its configuration; the same engine can lay out many trees.
type Engine struct {
	cfg      Config
	resolver *Resolver
}

// New creates a layout engine, filling unset config fields with defaults.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{cfg: cfg, resolver: NewResolver(cfg)}
}

// Config returns the effective configuration after defaulting.
func (e *Engine) Config() Config { return e.cfg }

// Resolver returns the collision resolver sharing this engine's geometry.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Refresh recomputes positions only when the registry is stale, then
// clears the staleness flag. This is the pull-based entry point for
// render ticks.
func (e *Engine) Refresh(t *tree.Tree) {
	if !t.Stale() {
		return
	}
	e.ComputePositions(t)
}

// ComputePositions assigns an angle and canvas position to every node,
// mutating nodes in place. The root keeps its existing position when one
// was set (the drop point); otherwise it is placed at the configured
// center. A global overlap-repair pass runs after placement.
func (e *Engine) ComputePositions(t *tree.Tree) {
	root := t.Root()
	if root == nil {
		t.ClearStale()
		return
	}
	if root.Pos == (tree.Position{}) {
		root.Pos = e.cfg.Center
	}

	e.placeLevelOne(t, root)
	e.resolver.ValidateAndFixOverlaps(t)
	t.ClearStale()
}

// placeLevelOne distributes the root's direct children on a full circle.
// Positions at this level are exact: the angle step divides 360° evenly
// and no collision search is applied.
func (e *Engine) placeLevelOne(t *tree.Tree, root *tree.Node) {
	childIDs := root.ChildIDs()
	if len(childIDs) == 0 {
		return
	}
	step := 2 * math.Pi / float64(len(childIDs))
	for i, id := range childIDs {
		child, ok := t.Node(id)
		if !ok {
			continue
		}
		angle := startAngle + float64(i)*step
		child.Angle = angle
		child.Pos = offset(root.Pos, angle, e.cfg.LevelOneRadius)
		e.placeFan(t, child, angle, 2)
	}
}

// placeFan distributes a node's children across a semicircle centered on
// the node's own outward angle. The fan narrows at deeper levels. Every
// candidate position passes through the collision resolver.
func (e *Engine) placeFan(t *tree.Tree, parent *tree.Node, axis float64, level int) {
	childIDs := parent.ChildIDs()
	if len(childIDs) == 0 {
		return
	}

	spread := radians(e.cfg.AngleSpreadDeg) * math.Pow(e.cfg.SpreadShrink, float64(level-2))
	var start, step float64
	if len(childIDs) == 1 {
		start, step = axis, 0
	} else {
		step = spread / float64(len(childIDs)-1)
		start = axis - spread/2
	}

	for i, id := range childIDs {
		child, ok := t.Node(id)
		if !ok {
			continue
		}
		preferred := start + float64(i)*step
		pos, angle := e.resolver.FindCollisionFreePosition(t, parent.Pos, preferred, e.cfg.ChildRadius, child.ID)
		child.Pos = pos
		child.Angle = angle
		e.placeFan(t, child, angle, level+1)
	}
}

// offset returns the point at the given angle and distance from origin.
func offset(origin tree.Position, angle, distance float64) tree.Position {
	return tree.Position{
		X: origin.X + distance*math.Cos(angle),
		Y: origin.Y + distance*math.Sin(angle),
	}
}

// radians converts degrees to radians.
func radians(deg float64) float64 { return deg * math.Pi / 180 }
