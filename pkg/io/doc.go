// Package io serializes track trees to and from JSON.
//
// The export format preserves node IDs, positions, and connection
// colors, so a tree grown once can be re-imported and re-rendered in
// other formats without re-running growth.
package io
