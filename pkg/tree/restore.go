package tree

import "slices"

// Restore rebuilds a registry from previously exported nodes and
// connections, preserving node IDs so render handles and cached
// artifacts stay valid across export/import round trips.
//
// Parent/child links are derived from each node's ParentID. The restored
// tree is validated; structural violations (unknown parents, depth
// mismatches, dangling connections) are returned as errors.
func Restore(nodes []*Node, conns []*Connection) (*Tree, error) {
	t := New()

	for _, n := range nodes {
		copied := *n
		copied.children = make(map[NodeID]struct{})
		t.nodes[copied.ID] = &copied
		if copied.ID > t.nextID {
			t.nextID = copied.ID
		}
		if copied.ParentID == None {
			t.root = copied.ID
		}
	}

	for _, n := range t.nodes {
		if n.ParentID == None {
			continue
		}
		parent, ok := t.nodes[n.ParentID]
		if !ok {
			return nil, ErrUnknownParent
		}
		parent.children[n.ID] = struct{}{}
	}

	t.connections = make([]*Connection, 0, len(conns))
	for _, c := range conns {
		copied := *c
		t.connections = append(t.connections, &copied)
		t.byChild[copied.ChildID] = &copied
	}
	slices.SortFunc(t.connections, func(a, b *Connection) int { return int(a.ChildID - b.ChildID) })

	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.markStale()
	return t, nil
}
