// Package tags implements tag parsing and representative-tag selection.
//
// Tags follow the "category:value" convention (e.g. "mood:happy"). The
// selector groups a track's tags by category, scores categories against a
// fixed priority table, and picks the first tag of each of the top
// categories. The tag that created a node is excluded so a branch never
// re-expands through the connection it arrived by.
package tags

import (
	"slices"
	"strings"
)

// Separator splits a tag into category and value.
const Separator = ":"

// Category priorities. Higher scores expand first; categories not listed
// score zero and only expand when nothing better is available.
const (
	scoreMood    = 100
	scoreEnergy  = 90
	scoreStyle   = 80
	scoreGenre   = 70
	scoreTempo   = 60
	scoreDecade  = 50
	scoreOrigin  = 40
	scoreLang    = 30
	scoreSetting = 20
	scoreRating  = 10
)

// categoryScores is the fixed priority table for known categories.
var categoryScores = map[string]int{
	"mood":     scoreMood,
	"energy":   scoreEnergy,
	"style":    scoreStyle,
	"genre":    scoreGenre,
	"tempo":    scoreTempo,
	"decade":   scoreDecade,
	"origin":   scoreOrigin,
	"language": scoreLang,
	"setting":  scoreSetting,
	"rating":   scoreRating,
}

// Category returns the category prefix of a tag, or "" when the tag has
// no separator. "mood:happy" → "mood".
func Category(tag string) string {
	if i := strings.Index(tag, Separator); i >= 0 {
		return tag[:i]
	}
	return ""
}

// Value returns the portion of the tag after the category prefix.
// Tags without a separator are returned unchanged, so bare tags still
// produce a usable connector label.
func Value(tag string) string {
	if i := strings.Index(tag, Separator); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// Score returns the priority score for a category. Unknown categories
// score zero.
func Score(category string) int {
	return categoryScores[category]
}

// SelectRepresentativeTags picks up to maxCategories tags from the given
// tag set, one per category, ordered by descending category priority.
//
// Tags are grouped by category prefix; from each category the first tag in
// insertion order is taken. Ties between equally scored categories are
// broken by first appearance in the input, keeping selection deterministic.
// excludeTag (the tag that created the node being expanded) is removed
// from the result. An empty result is a valid terminal condition: the
// branch simply does not grow further.
func SelectRepresentativeTags(tagList []string, excludeTag string, maxCategories int) []string {
	if maxCategories <= 0 || len(tagList) == 0 {
		return nil
	}

	type group struct {
		category string
		first    string // first tag seen for this category
		order    int    // input position, tie-breaker
	}

	byCategory := make(map[string]*group)
	var groups []*group
	for i, tag := range tagList {
		cat := Category(tag)
		if _, seen := byCategory[cat]; !seen {
			g := &group{category: cat, first: tag, order: i}
			byCategory[cat] = g
			groups = append(groups, g)
		}
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		if d := Score(b.category) - Score(a.category); d != 0 {
			return d
		}
		return a.order - b.order
	})

	if len(groups) > maxCategories {
		groups = groups[:maxCategories]
	}

	// The exclusion applies after the top categories are chosen: a branch
	// reached via "mood:happy" loses its mood pick rather than promoting
	// the next-best category in its place.
	selected := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.first == excludeTag {
			continue
		}
		selected = append(selected, g.first)
	}
	return selected
}
