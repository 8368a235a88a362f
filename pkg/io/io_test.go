package io

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/tracktree/pkg/track"
	"github.com/matzehuels/tracktree/pkg/tree"
)

func buildTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New()
	root, _, err := tr.AddNode(track.Track{Title: "Midnight City", Artist: "M83", Tags: []string{"mood:dark"}}, tree.None, "")
	if err != nil {
		t.Fatal(err)
	}
	root.Pos = tree.Position{X: 400, Y: 300}
	child, _, err := tr.AddNode(track.Track{Title: "Nightcall", Artist: "Kavinsky"}, root.ID, "mood:dark")
	if err != nil {
		t.Fatal(err)
	}
	child.Pos = tree.Position{X: 400, Y: 140}
	child.Angle = -1.5707963267948966
	if conn := tr.ConnectionTo(child.ID); conn != nil {
		conn.Color = "#e3589a"
	}
	return tr
}

func TestJSONRoundTrip(t *testing.T) {
	orig := buildTree(t)

	var buf bytes.Buffer
	if err := WriteJSON(orig, &buf); err != nil {
		t.Fatal(err)
	}
	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if back.NodeCount() != orig.NodeCount() || back.ConnectionCount() != orig.ConnectionCount() {
		t.Fatalf("counts changed: %d/%d vs %d/%d",
			back.NodeCount(), back.ConnectionCount(), orig.NodeCount(), orig.ConnectionCount())
	}

	for _, on := range orig.Nodes() {
		bn, ok := back.Node(on.ID)
		if !ok {
			t.Fatalf("node %d lost", on.ID)
		}
		if !bn.Track.Equal(on.Track) {
			t.Errorf("node %d track changed", on.ID)
		}
		if bn.Pos != on.Pos || bn.Angle != on.Angle || bn.Depth != on.Depth {
			t.Errorf("node %d geometry changed", on.ID)
		}
		if bn.ConnectionTag != on.ConnectionTag {
			t.Errorf("node %d connection tag changed", on.ID)
		}
	}

	for _, oc := range orig.Connections() {
		bc := back.ConnectionTo(oc.ChildID)
		if bc == nil {
			t.Fatalf("connection to %d lost", oc.ChildID)
		}
		if bc.ID != oc.ID || bc.Tag != oc.Tag || bc.Color != oc.Color {
			t.Errorf("connection to %d changed: %+v vs %+v", oc.ChildID, bc, oc)
		}
	}
}

func TestMarshalTreeDeterministic(t *testing.T) {
	tr := buildTree(t)
	first, err := MarshalTree(tr)
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalTree(tr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("serialization must be byte-stable for cache hashing")
	}
	if !strings.Contains(string(first), `"mood:dark"`) {
		t.Error("tags missing from output")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	orig := buildTree(t)

	if err := WriteFile(orig, path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.NodeCount() != orig.NodeCount() {
		t.Errorf("NodeCount = %d, want %d", back.NodeCount(), orig.NodeCount())
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file must fail")
	}
}

func TestReadJSONMalformed(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader("{broken")); err == nil {
		t.Error("malformed JSON must fail")
	}
}

func TestReadJSONInvalidStructure(t *testing.T) {
	// Structurally invalid: a child referencing a parent that is absent.
	in := `{"nodes": [
		{"id": 2, "track": {"title": "Orphan", "artist": "A"}, "parent_id": 1, "depth": 1}
	], "connections": []}`
	if _, err := ReadJSON(strings.NewReader(in)); err == nil {
		t.Error("orphan node must fail restore validation")
	}
}

func TestImportedTreeIsStale(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(buildTree(t), &buf); err != nil {
		t.Fatal(err)
	}
	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Stale() {
		t.Error("imported tree must be stale so the layout pass runs")
	}
}
