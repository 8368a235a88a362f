package tree

import (
	stderrors "errors"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/matzehuels/tracktree/pkg/errors"
	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/track"
)

var (
	// ErrUnknownParent is returned by [Tree.AddNode] when the parent ID
	// does not exist in the registry.
	ErrUnknownParent = stderrors.New("unknown parent node")

	// ErrNodeNotFound is returned by operations that reference a node ID
	// not present in the registry.
	ErrNodeNotFound = stderrors.New("node not found")

	// ErrDepthMismatch is returned by [Tree.Validate] when a node's depth
	// is not exactly its parent's depth plus one.
	ErrDepthMismatch = stderrors.New("node depth must be parent depth + 1")

	// ErrNotConnected is returned by [Tree.Validate] when a node is not
	// reachable from the root. The registry must hold a single tree, not
	// a forest or a general graph.
	ErrNotConnected = stderrors.New("node not reachable from root")

	// ErrDanglingConnection is returned by [Tree.Validate] when a
	// connection references a node that doesn't exist. This indicates
	// registry corruption.
	ErrDanglingConnection = stderrors.New("connection references missing node")
)

// NodeID identifies a node in the registry. IDs are globally unique and
// monotonically generated; they are never reused, even after removal.
type NodeID int64

// None is the zero NodeID. It marks the root's missing parent.
const None NodeID = 0

// Position is a point on the layout canvas in user units.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Node is a single track placed in the tree. Position and Angle are
// written by the layout engine; everything else is fixed at creation.
//
// RenderHandle is an opaque identifier resolved by the rendering layer.
// The registry never holds renderer objects directly.
type Node struct {
	ID            NodeID      // Unique, monotonically assigned
	Track         track.Track // The music track this node represents
	ParentID      NodeID      // None for the root
	Depth         int         // 0 for the root, parent depth + 1 otherwise
	Angle         float64     // Radians, outward angle from parent (layout-owned)
	Pos           Position    // Canvas position (layout-owned)
	ConnectionTag string      // Tag that created this node, "" for root/manual adds
	RenderHandle  string      // Opaque handle owned by the rendering layer

	children map[NodeID]struct{}
}

// IsRoot reports whether the node is the tree root.
func (n *Node) IsRoot() bool { return n.ParentID == None }

// ChildIDs returns the node's children in ascending ID order.
// The returned slice is a copy and safe to modify.
func (n *Node) ChildIDs() []NodeID {
	ids := slices.Collect(maps.Keys(n.children))
	slices.Sort(ids)
	return ids
}

// Connection is the parent→child edge labeled with the tag that produced
// the child. Exactly one connection exists per non-root node, created
// atomically with it.
type Connection struct {
	ID       string // UUID, stable across layout recomputes
	ParentID NodeID
	ChildID  NodeID
	Tag      string
	Color    string // Hex color derived from the tag category
}

// Tree is the in-memory node/connection registry. It owns identity,
// parent/child links, and depth; positions are mutated in place by the
// layout engine.
//
// The zero value is not usable - use New. Tree is not safe for concurrent
// use; the growth scheduler guarantees all mutation happens on a single
// execution context.
type Tree struct {
	nodes       map[NodeID]*Node
	connections []*Connection
	byChild     map[NodeID]*Connection
	root        NodeID
	nextID      NodeID
	stale       bool
	onStale     func()
}

// New creates an empty tree registry.
func New() *Tree {
	return &Tree{
		nodes:   make(map[NodeID]*Node),
		byChild: make(map[NodeID]*Connection),
	}
}

// SetStaleFunc registers a callback invoked whenever the registry is
// mutated. The layout engine uses this to mark its output stale; layout
// is recomputed on the next render tick, not pushed eagerly.
func (t *Tree) SetStaleFunc(fn func()) { t.onStale = fn }

// Stale reports whether the registry changed since the last ClearStale.
func (t *Tree) Stale() bool { return t.stale }

// ClearStale resets the staleness flag. Called by the layout engine after
// recomputing positions.
func (t *Tree) ClearStale() { t.stale = false }

func (t *Tree) markStale() {
	t.stale = true
	if t.onStale != nil {
		t.onStale()
	}
}

// AddNode validates the track and registers it under the given parent.
// The first node added becomes the root regardless of parentID. A
// connection labeled with connectionTag is created atomically for every
// non-root node.
//
// Returns an error with code ErrCodeInvalidTrack when the track is
// missing title or artist, ErrCodeDuplicateTrack when the track equals
// the parent's track (same title, artist, album), or ErrUnknownParent
// when the parent ID is not registered.
func (t *Tree) AddNode(tr track.Track, parentID NodeID, connectionTag string) (*Node, *Connection, error) {
	if err := tr.Validate(); err != nil {
		return nil, nil, err
	}

	var parent *Node
	if len(t.nodes) > 0 {
		var ok bool
		parent, ok = t.nodes[parentID]
		if !ok {
			return nil, nil, ErrUnknownParent
		}
		if tr.Equal(parent.Track) {
			return nil, nil, errors.New(errors.ErrCodeDuplicateTrack,
				"track %q duplicates its parent", tr.String())
		}
	}

	t.nextID++
	n := &Node{
		ID:       t.nextID,
		Track:    tr.Clone(),
		children: make(map[NodeID]struct{}),
	}

	var conn *Connection
	if parent == nil {
		t.root = n.ID
	} else {
		n.ParentID = parent.ID
		n.Depth = parent.Depth + 1
		n.ConnectionTag = connectionTag
		parent.children[n.ID] = struct{}{}

		conn = &Connection{
			ID:       uuid.NewString(),
			ParentID: parent.ID,
			ChildID:  n.ID,
			Tag:      connectionTag,
		}
		t.connections = append(t.connections, conn)
		t.byChild[n.ID] = conn
	}

	t.nodes[n.ID] = n
	t.markStale()
	return n, conn, nil
}

// RemoveSubtree removes the node and all its descendants along with their
// incident connections. Returns the removed IDs in removal order (parent
// before children). Removing the root empties the registry.
func (t *Tree) RemoveSubtree(id NodeID) ([]NodeID, error) {
	start, ok := t.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}

	var removed []NodeID
	var collect func(n *Node)
	collect = func(n *Node) {
		removed = append(removed, n.ID)
		for _, childID := range n.ChildIDs() {
			if child, ok := t.nodes[childID]; ok {
				collect(child)
			}
		}
	}
	collect(start)

	doomed := make(map[NodeID]struct{}, len(removed))
	for _, rid := range removed {
		doomed[rid] = struct{}{}
	}

	if parent, ok := t.nodes[start.ParentID]; ok {
		delete(parent.children, start.ID)
	}
	for _, rid := range removed {
		delete(t.nodes, rid)
		delete(t.byChild, rid)
	}
	t.connections = slices.DeleteFunc(t.connections, func(c *Connection) bool {
		_, dead := doomed[c.ChildID]
		if !dead {
			_, dead = doomed[c.ParentID]
		}
		return dead
	})

	if start.ID == t.root {
		t.root = None
	}
	t.markStale()
	return removed, nil
}

// Clear empties the registry and resets the root. Node IDs keep
// incrementing so stale scheduled callbacks can never collide with
// nodes created after the clear.
func (t *Tree) Clear() {
	t.nodes = make(map[NodeID]*Node)
	t.connections = nil
	t.byChild = make(map[NodeID]*Connection)
	t.root = None
	t.markStale()
}

// Node returns the node with the given ID and true, or nil and false.
// The pointer refers to the live node; layout mutates it in place.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Root returns the root node, or nil for an empty registry.
func (t *Tree) Root() *Node {
	if t.root == None {
		return nil
	}
	return t.nodes[t.root]
}

// Nodes returns all nodes sorted by ascending ID (creation order).
func (t *Tree) Nodes() []*Node {
	nodes := slices.Collect(maps.Values(t.nodes))
	slices.SortFunc(nodes, func(a, b *Node) int { return int(a.ID - b.ID) })
	return nodes
}

// Connections returns all connections in creation order. The returned
// slice is a copy; the connection pointers are live.
func (t *Tree) Connections() []*Connection { return slices.Clone(t.connections) }

// ConnectionTo returns the connection whose child is the given node,
// or nil for the root and unknown IDs.
func (t *Tree) ConnectionTo(id NodeID) *Connection { return t.byChild[id] }

// NodeCount returns the number of registered nodes.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// ConnectionCount returns the number of registered connections.
func (t *Tree) ConnectionCount() int { return len(t.connections) }

// Contains reports whether any registered node holds the same track
// (title, artist, album identity).
func (t *Tree) Contains(tr track.Track) bool {
	for _, n := range t.nodes {
		if n.Track.Equal(tr) {
			return true
		}
	}
	return false
}

// MaxDepth returns the deepest level present, or -1 for an empty tree.
func (t *Tree) MaxDepth() int {
	max := -1
	for _, n := range t.nodes {
		if n.Depth > max {
			max = n.Depth
		}
	}
	return max
}

// NodesAtDepth returns the nodes at the given level sorted by ID.
func (t *Tree) NodesAtDepth(depth int) []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.Depth == depth {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int { return int(a.ID - b.ID) })
	return out
}

// SuggestedTags returns the tags on the node's track that are not already
// used by its outgoing connections. The node's own ConnectionTag is also
// excluded, matching the anti-redundancy rule used during growth.
func (t *Tree) SuggestedTags(id NodeID) ([]string, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	used := make(map[string]struct{})
	if n.ConnectionTag != "" {
		used[n.ConnectionTag] = struct{}{}
	}
	for childID := range n.children {
		if c := t.byChild[childID]; c != nil && c.Tag != "" {
			used[c.Tag] = struct{}{}
		}
	}
	var out []string
	for _, tag := range n.Track.Tags {
		if _, taken := used[tag]; !taken {
			out = append(out, tag)
		}
	}
	return out, nil
}

// ExpansionTags returns the representative tags to expand the node by,
// excluding the tag the node itself was created through.
func (t *Tree) ExpansionTags(id NodeID, maxCategories int) ([]string, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return tags.SelectRepresentativeTags(n.Track.Tags, n.ConnectionTag, maxCategories), nil
}

// Validate checks registry integrity and returns nil if valid.
// It verifies three constraints:
//
//  1. Every node's depth is its parent's depth plus one (root depth 0)
//  2. Every node is reachable from the root (single connected tree)
//  3. Every connection joins two registered nodes
//
// Use this in tests and before rendering imported trees.
func (t *Tree) Validate() error {
	if len(t.nodes) == 0 {
		return nil
	}
	root := t.Root()
	if root == nil {
		return ErrNotConnected
	}
	if root.Depth != 0 {
		return ErrDepthMismatch
	}

	visited := make(map[NodeID]struct{}, len(t.nodes))
	var walk func(n *Node) error
	walk = func(n *Node) error {
		visited[n.ID] = struct{}{}
		for childID := range n.children {
			child, ok := t.nodes[childID]
			if !ok {
				return ErrNotConnected
			}
			if child.Depth != n.Depth+1 {
				return ErrDepthMismatch
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return err
	}
	if len(visited) != len(t.nodes) {
		return ErrNotConnected
	}

	for _, c := range t.connections {
		if _, ok := t.nodes[c.ParentID]; !ok {
			return ErrDanglingConnection
		}
		if _, ok := t.nodes[c.ChildID]; !ok {
			return ErrDanglingConnection
		}
	}
	return nil
}
