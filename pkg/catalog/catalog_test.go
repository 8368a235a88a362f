package catalog

import (
	"context"
	"testing"

	"github.com/matzehuels/tracktree/pkg/track"
)

func testLibrary() []track.Track {
	return []track.Track{
		{Title: "Midnight City", Artist: "M83", Tags: []string{"mood:dark", "energy:high"}},
		{Title: "Nightcall", Artist: "Kavinsky", Tags: []string{"mood:dark", "style:synthwave"}},
		{Title: "Runaway", Artist: "Kanye West", Tags: []string{"energy:high"}},
		{Title: "Tears", Artist: "HEALTH", Tags: []string{"style:synthwave"}},
		{Title: "Untagged", Artist: "Nobody"},
	}
}

func titles(tracks []track.Track) map[string]bool {
	out := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		out[t.Title] = true
	}
	return out
}

func TestFetchRelatedTracks(t *testing.T) {
	m := NewMemory(testLibrary(), 1)
	ctx := context.Background()

	got, err := m.FetchRelatedTracks(ctx, "mood:dark", track.Track{Title: "Midnight City", Artist: "M83"})
	if err != nil {
		t.Fatal(err)
	}

	// Both dark tracks exist but the excluded one is filtered out.
	set := titles(got)
	if len(got) != 1 || !set["Nightcall"] {
		t.Errorf("got %v, want only Nightcall", set)
	}
}

func TestFetchRelatedTracksUnknownTag(t *testing.T) {
	m := NewMemory(testLibrary(), 1)
	got, err := m.FetchRelatedTracks(context.Background(), "tempo:fast", track.Track{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unknown tag returned %d tracks, want 0", len(got))
	}
}

func TestFetchByCategory(t *testing.T) {
	m := NewMemory(testLibrary(), 1)

	got, err := m.FetchByCategory(context.Background(), "mood", track.Track{Title: "Nightcall", Artist: "Kavinsky"})
	if err != nil {
		t.Fatal(err)
	}
	set := titles(got)
	if len(got) != 1 || !set["Midnight City"] {
		t.Errorf("got %v, want only Midnight City", set)
	}
}

func TestFetchByCategoryNoDuplicateIndex(t *testing.T) {
	// A track with two tags of one category must be indexed once.
	lib := []track.Track{
		{Title: "Double", Artist: "D", Tags: []string{"mood:dark", "mood:melancholic"}},
	}
	m := NewMemory(lib, 1)
	got, err := m.FetchByCategory(context.Background(), "mood", track.Track{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d results, want 1", len(got))
	}
}

func TestFetchRandom(t *testing.T) {
	m := NewMemory(testLibrary(), 1)

	got, err := m.FetchRandom(context.Background(), 3, track.Track{Title: "Untagged", Artist: "Nobody"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d tracks, want capped at 3", len(got))
	}
	if titles(got)["Untagged"] {
		t.Error("excluded track returned")
	}

	// Asking for more than the catalog holds returns what exists.
	all, err := m.FetchRandom(context.Background(), 100, track.Track{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != m.Len() {
		t.Errorf("got %d tracks, want %d", len(all), m.Len())
	}
}

func TestSeededDeterminism(t *testing.T) {
	a := NewMemory(testLibrary(), 42)
	b := NewMemory(testLibrary(), 42)
	c := NewMemory(testLibrary(), 7)

	ctx := context.Background()
	first, _ := a.FetchRandom(ctx, 5, track.Track{})
	second, _ := b.FetchRandom(ctx, 5, track.Track{})
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatal("same seed must yield the same order")
		}
	}

	// A different seed usually reorders; verify at least the mechanism
	// is seed-dependent by comparing full orderings.
	third, _ := c.FetchRandom(ctx, 5, track.Track{})
	same := true
	for i := range first {
		if !first[i].Equal(third[i]) {
			same = false
			break
		}
	}
	if same {
		t.Log("seeds 42 and 7 produced the same order; acceptable but unusual")
	}
}

func TestResultsAreClones(t *testing.T) {
	m := NewMemory(testLibrary(), 1)
	got, err := m.FetchRelatedTracks(context.Background(), "mood:dark", track.Track{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("no results")
	}

	// Mutating a result must not leak into the catalog.
	got[0].Tags[0] = "corrupted"
	again, _ := m.FetchRelatedTracks(context.Background(), "mood:dark", track.Track{})
	for _, tr := range again {
		for _, tag := range tr.Tags {
			if tag == "corrupted" {
				t.Fatal("catalog data mutated through a result")
			}
		}
	}
}
