package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/tracktree/pkg/tree"
)

// ReadJSON decodes a JSON tree from r and rebuilds the registry.
// Returns validation errors for structurally invalid trees.
func ReadJSON(r io.Reader) (*tree.Tree, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return toTree(doc)
}

// ReadFile reads a JSON tree file and returns the rebuilt registry.
func ReadFile(path string) (*tree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

func toTree(doc document) (*tree.Tree, error) {
	nodes := make([]*tree.Node, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodes = append(nodes, &tree.Node{
			ID:            n.ID,
			Track:         n.Track,
			ParentID:      n.ParentID,
			Depth:         n.Depth,
			Angle:         n.Angle,
			Pos:           n.Pos,
			ConnectionTag: n.ConnectionTag,
		})
	}
	conns := make([]*tree.Connection, 0, len(doc.Connections))
	for _, c := range doc.Connections {
		conns = append(conns, &tree.Connection{
			ID:       c.ID,
			ParentID: c.ParentID,
			ChildID:  c.ChildID,
			Tag:      c.Tag,
			Color:    c.Color,
		})
	}

	t, err := tree.Restore(nodes, conns)
	if err != nil {
		return nil, fmt.Errorf("restore tree: %w", err)
	}
	return t, nil
}
