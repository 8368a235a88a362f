package render

import (
	"hash/fnv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/tracktree/pkg/tags"
)

// Fixed palette for known tag categories. Connector colors must be stable
// across runs, so these are constants rather than generated values.
var categoryPalette = map[string]string{
	"mood":     "#e3589a",
	"energy":   "#f0803c",
	"style":    "#4f86e0",
	"genre":    "#7a4fd0",
	"tempo":    "#2aa876",
	"decade":   "#b8963c",
	"origin":   "#4fb8c9",
	"language": "#8c6b4f",
	"setting":  "#6b8c3c",
	"rating":   "#9a9a9a",
}

// HSL bands for hash-derived colors. Saturation and lightness are fixed so
// generated colors stay readable on a light canvas; only the hue varies.
const (
	hashSaturation = 0.62
	hashLightness  = 0.48
)

// ColorForTag returns the hex color for a tag's category.
//
// Known categories map to the fixed palette. Unrecognized categories get
// a deterministic color derived from a string hash of the category (hue =
// hash mod 360 within fixed saturation/lightness bands), so the same
// category always renders identically across runs without a persisted
// color table.
func ColorForTag(tag string) string {
	category := tags.Category(tag)
	if hex, ok := categoryPalette[category]; ok {
		return hex
	}
	return hashColor(category)
}

func hashColor(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsl(hue, hashSaturation, hashLightness).Hex()
}
