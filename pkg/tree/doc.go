// Package tree implements the node/connection registry for the radial
// track tree.
//
// A [Tree] owns identity, parent/child links, and depth. Nodes are
// created by the growth orchestrator, positioned by the layout engine,
// and removed only through [Tree.RemoveSubtree] or [Tree.Clear]. Each
// non-root node carries exactly one incoming [Connection] labeled with
// the tag that produced it.
//
// The registry is deliberately free of rendering concerns: nodes hold an
// opaque RenderHandle string that a rendering layer resolves to whatever
// on-screen object it manages.
package tree
