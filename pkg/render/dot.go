package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// DotOptions configures DOT export.
type DotOptions struct {
	// Detailed includes depth and the full tag in edge labels.
	// When false, edges show only the tag value.
	Detailed bool
}

// ToDOT converts a tree to Graphviz DOT format for an alternative
// node-link view. Edges are colored with the same deterministic tag
// colors as the radial SVG, so the two views agree.
// The resulting DOT string can be rendered with [RenderDOTSVG] or
// [RenderDOTPNG].
func ToDOT(t *tree.Tree, opts DotOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph tracktree {\n")
	buf.WriteString("  layout=twopi;\n")
	buf.WriteString("  ranksep=2;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=ellipse, style=filled, fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range t.Nodes() {
		label := n.Track.String()
		if opts.Detailed {
			label = fmt.Sprintf("%s\ndepth: %d", label, n.Depth)
		}
		fmt.Fprintf(&buf, "  %d [label=%q];\n", n.ID, label)
	}

	buf.WriteString("\n")
	for _, c := range t.Connections() {
		label := tags.Value(c.Tag)
		if opts.Detailed {
			label = c.Tag
		}
		color := c.Color
		if color == "" {
			color = ColorForTag(c.Tag)
		}
		fmt.Fprintf(&buf, "  %d -> %d [label=%q, color=%q, fontcolor=%q];\n",
			c.ParentID, c.ChildID, label, color, color)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderDOTSVG renders a DOT graph to SVG using Graphviz.
func RenderDOTSVG(dot string) ([]byte, error) {
	return renderDOT(dot, graphviz.SVG)
}

// RenderDOTPNG renders a DOT graph to PNG using Graphviz.
func RenderDOTPNG(dot string) ([]byte, error) {
	return renderDOT(dot, graphviz.PNG)
}

func renderDOT(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
