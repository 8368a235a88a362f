package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/tracktree/pkg/track"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// document is the canonical serialization format for track trees.
// The format is human-readable and designed for round-trip fidelity:
// grow → export → re-import → render produces identical results.
type document struct {
	Nodes       []node       `json:"nodes" bson:"nodes"`
	Connections []connection `json:"connections" bson:"connections"`
}

type node struct {
	ID            tree.NodeID   `json:"id" bson:"id"`
	Track         track.Track   `json:"track" bson:"track"`
	ParentID      tree.NodeID   `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Depth         int           `json:"depth" bson:"depth"`
	Angle         float64       `json:"angle,omitempty" bson:"angle,omitempty"`
	Pos           tree.Position `json:"pos" bson:"pos"`
	ConnectionTag string        `json:"connection_tag,omitempty" bson:"connection_tag,omitempty"`
}

type connection struct {
	ID       string      `json:"id" bson:"id"`
	ParentID tree.NodeID `json:"parent_id" bson:"parent_id"`
	ChildID  tree.NodeID `json:"child_id" bson:"child_id"`
	Tag      string      `json:"tag,omitempty" bson:"tag,omitempty"`
	Color    string      `json:"color,omitempty" bson:"color,omitempty"`
}

// MarshalTree converts a tree to JSON bytes.
// Nodes are emitted in ID order for deterministic output.
func MarshalTree(t *tree.Tree) ([]byte, error) {
	data, err := json.MarshalIndent(fromTree(t), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return data, nil
}

// WriteJSON encodes a tree as JSON and writes it to w.
func WriteJSON(t *tree.Tree, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fromTree(t)); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	return nil
}

// WriteFile writes a tree to a JSON file.
// The file is created with 0644 permissions.
func WriteFile(t *tree.Tree, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(t, f)
}

func fromTree(t *tree.Tree) document {
	doc := document{
		Nodes:       make([]node, 0, t.NodeCount()),
		Connections: make([]connection, 0, t.ConnectionCount()),
	}
	for _, n := range t.Nodes() {
		doc.Nodes = append(doc.Nodes, node{
			ID:            n.ID,
			Track:         n.Track,
			ParentID:      n.ParentID,
			Depth:         n.Depth,
			Angle:         n.Angle,
			Pos:           n.Pos,
			ConnectionTag: n.ConnectionTag,
		})
	}
	for _, c := range t.Connections() {
		doc.Connections = append(doc.Connections, connection{
			ID:       c.ID,
			ParentID: c.ParentID,
			ChildID:  c.ChildID,
			Tag:      c.Tag,
			Color:    c.Color,
		})
	}
	return doc
}
