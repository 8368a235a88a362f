// Package render draws track trees as SVG and Graphviz DOT.
//
// The radial SVG view renders curved, color-coded connectors between
// nodes with tag labels at the curve midpoints. Colors are deterministic:
// known tag categories use a fixed palette and unknown categories derive
// a stable color from a string hash, so the same category always renders
// identically across runs.
package render
