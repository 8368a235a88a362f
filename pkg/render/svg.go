package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// CurveFactor controls how far a connector bows away from the straight
// chord between two nodes, as a fraction of their distance. Small values
// give a gentle organic curve instead of a straight line.
const CurveFactor = 0.15

const (
	canvasMargin    = 60.0
	labelFontSize   = 11.0
	titleFontSize   = 12.0
	artistFontSize  = 10.0
	connectionWidth = 2.0
	backgroundColor = "#fdfcf8"
	nodeFill        = "#ffffff"
	nodeStroke      = "#3a3a3a"
)

// SVGOption configures RenderSVG.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	nodeRadius float64
	labels     bool
	legend     bool
	background string
}

// WithNodeRadius overrides the node circle radius. It should match the
// layout config so rendered circles reflect collision geometry.
func WithNodeRadius(r float64) SVGOption {
	return func(s *svgRenderer) { s.nodeRadius = r }
}

// WithoutLabels suppresses connector tag labels.
func WithoutLabels() SVGOption { return func(s *svgRenderer) { s.labels = false } }

// WithLegend appends a legend listing each tag category present in the
// tree with its connector color.
func WithLegend() SVGOption { return func(s *svgRenderer) { s.legend = true } }

// WithBackground sets the canvas background color.
func WithBackground(hex string) SVGOption { return func(s *svgRenderer) { s.background = hex } }

// RenderSVG draws the whole tree: curved color-coded connectors first,
// then node circles with title/artist labels. The viewBox is fitted to
// the node positions plus a margin, so drop points far from the origin
// still render centered.
func RenderSVG(t *tree.Tree, opts ...SVGOption) []byte {
	r := svgRenderer{
		nodeRadius: layout.DefaultNodeRadius,
		labels:     true,
		background: backgroundColor,
	}
	for _, opt := range opts {
		opt(&r)
	}

	nodes := t.Nodes()
	minX, minY, maxX, maxY := bounds(nodes, r.nodeRadius)
	width := maxX - minX + 2*canvasMargin
	height := maxY - minY + 2*canvasMargin

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.1f %.1f %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		minX-canvasMargin, minY-canvasMargin, width, height, width, height)
	fmt.Fprintf(&buf, `  <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`+"\n",
		minX-canvasMargin, minY-canvasMargin, width, height, r.background)

	for _, c := range t.Connections() {
		parent, okP := t.Node(c.ParentID)
		child, okC := t.Node(c.ChildID)
		if !okP || !okC {
			continue
		}
		r.renderConnection(&buf, parent, child, c)
	}
	for _, n := range nodes {
		r.renderNode(&buf, n)
	}
	if r.legend {
		r.renderLegend(&buf, t, minX-canvasMargin+12, minY-canvasMargin+12)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// RenderConnection draws a single connector as an SVG fragment: the
// curved path plus a text label at the path midpoint, both styled with
// the tag's color. The label text is the tag value without its category
// prefix.
func RenderConnection(parent, child *tree.Node, tag string) string {
	var buf bytes.Buffer
	r := svgRenderer{labels: true}
	color := ColorForTag(tag)
	r.renderConnection(&buf, parent, child, &tree.Connection{Tag: tag, Color: color})
	return buf.String()
}

func (r *svgRenderer) renderConnection(buf *bytes.Buffer, parent, child *tree.Node, c *tree.Connection) {
	color := c.Color
	if color == "" {
		color = ColorForTag(c.Tag)
	}
	fmt.Fprintf(buf, `  <path d="%s" fill="none" stroke="%s" stroke-width="%.1f" opacity="0.85"/>`+"\n",
		CurvedPath(parent.Pos, child.Pos), color, connectionWidth)

	if r.labels && c.Tag != "" {
		mid := curveMidpoint(parent.Pos, child.Pos)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="%.0f" fill="%s" text-anchor="middle">%s</text>`+"\n",
			mid.X, mid.Y-3, labelFontSize, color, escape(tags.Value(c.Tag)))
	}
}

func (r *svgRenderer) renderNode(buf *bytes.Buffer, n *tree.Node) {
	radius := r.nodeRadius
	if n.IsRoot() {
		radius *= 1.2
	}
	fmt.Fprintf(buf, `  <circle id="node-%d" cx="%.1f" cy="%.1f" r="%.1f" fill="%s" stroke="%s" stroke-width="1.5"/>`+"\n",
		n.ID, n.Pos.X, n.Pos.Y, radius, nodeFill, nodeStroke)
	fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="%.0f" text-anchor="middle">%s</text>`+"\n",
		n.Pos.X, n.Pos.Y-2, titleFontSize, escape(truncate(n.Track.Title, 18)))
	fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="%.0f" fill="#777777" text-anchor="middle">%s</text>`+"\n",
		n.Pos.X, n.Pos.Y+12, artistFontSize, escape(truncate(n.Track.Artist, 20)))
}

func (r *svgRenderer) renderLegend(buf *bytes.Buffer, t *tree.Tree, x, y float64) {
	seen := make(map[string]bool)
	var categories []string
	for _, c := range t.Connections() {
		cat := tags.Category(c.Tag)
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		categories = append(categories, cat)
	}

	for i, cat := range categories {
		rowY := y + float64(i)*18
		fmt.Fprintf(buf, `  <rect x="%.1f" y="%.1f" width="12" height="12" fill="%s"/>`+"\n",
			x, rowY, ColorForTag(cat+tags.Separator))
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="%.0f">%s</text>`+"\n",
			x+18, rowY+10, labelFontSize, escape(cat))
	}
}

// CurvedPath returns an SVG quadratic path from a to b. The single
// control point sits at the chord midpoint, offset perpendicular to the
// chord by distance × CurveFactor.
func CurvedPath(a, b tree.Position) string {
	ctrl := controlPoint(a, b)
	return fmt.Sprintf("M %.1f %.1f Q %.1f %.1f %.1f %.1f", a.X, a.Y, ctrl.X, ctrl.Y, b.X, b.Y)
}

func controlPoint(a, b tree.Position) tree.Position {
	mx, my := (a.X+b.X)/2, (a.Y+b.Y)/2
	dx, dy := b.X-a.X, b.Y-a.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return tree.Position{X: mx, Y: my}
	}
	// Unit perpendicular to the chord.
	px, py := -dy/d, dx/d
	off := d * CurveFactor
	return tree.Position{X: mx + px*off, Y: my + py*off}
}

// curveMidpoint evaluates the quadratic curve at t = 0.5, which is where
// the connector label is anchored.
func curveMidpoint(a, b tree.Position) tree.Position {
	ctrl := controlPoint(a, b)
	return tree.Position{
		X: 0.25*a.X + 0.5*ctrl.X + 0.25*b.X,
		Y: 0.25*a.Y + 0.5*ctrl.Y + 0.25*b.Y,
	}
}

func bounds(nodes []*tree.Node, radius float64) (minX, minY, maxX, maxY float64) {
	if len(nodes) == 0 {
		return -radius, -radius, radius, radius
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.Pos.X-radius)
		minY = math.Min(minY, n.Pos.Y-radius)
		maxX = math.Max(maxX, n.Pos.X+radius)
		maxY = math.Max(maxY, n.Pos.Y+radius)
	}
	return minX, minY, maxX, maxY
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }

// truncate shortens s to at most max runes, ellipsis included. Counting
// runes rather than bytes keeps multi-byte titles valid UTF-8.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
