package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tracktree/pkg/cache"
	"github.com/matzehuels/tracktree/pkg/catalog"
	"github.com/matzehuels/tracktree/pkg/track"
)

func testCatalog() *catalog.Memory {
	return catalog.NewMemory([]track.Track{
		{Title: "Nightcall", Artist: "Kavinsky", Tags: []string{"mood:dark", "style:synthwave"}},
		{Title: "Tears", Artist: "HEALTH", Tags: []string{"style:synthwave"}},
		{Title: "Runaway", Artist: "Kanye West", Tags: []string{"energy:high"}},
	}, DefaultSeed)
}

func testOptions(formats ...string) Options {
	return Options{
		Root: track.Track{
			Title:  "Midnight City",
			Artist: "M83",
			Tags:   []string{"mood:dark", "energy:high"},
		},
		MaxLevels:      1,
		TagsPerLevel:   []int{2},
		BranchesPerTag: 1,
		Formats:        formats,
		Source:         testCatalog(),
		LibraryHash:    "testlib",
		Logger:         log.NewWithOptions(io.Discard, log.Options{}),
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{FormatSVG, FormatPNG, FormatDOT, FormatJSON} {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) = %v", f, err)
		}
	}
	if err := ValidateFormat("pdf"); err == nil {
		t.Error("unknown format must fail")
	}
	if err := ValidateFormats([]string{"svg", "gif"}); err == nil {
		t.Error("one bad format must fail the batch")
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := testOptions()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Seed != DefaultSeed {
		t.Errorf("Seed = %d, want default %d", opts.Seed, DefaultSeed)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want default svg", opts.Formats)
	}

	// Idempotent: a second call leaves everything untouched.
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	missing := Options{Source: testCatalog()}
	if err := missing.ValidateAndSetDefaults(); err == nil {
		t.Error("empty root track must fail")
	}

	noSource := Options{Root: track.Track{Title: "A", Artist: "B"}}
	if err := noSource.ValidateAndSetDefaults(); err == nil {
		t.Error("missing source must fail")
	}

	badFormat := testOptions("bmp")
	if err := badFormat.ValidateAndSetDefaults(); err == nil {
		t.Error("invalid format must fail")
	}
}

func TestShowLabels(t *testing.T) {
	opts := Options{}
	if !opts.ShowLabels() {
		t.Error("nil Labels means labels on")
	}
	off := false
	opts.Labels = &off
	if opts.ShowLabels() {
		t.Error("explicit false must turn labels off")
	}
	on := true
	opts.Labels = &on
	if !opts.ShowLabels() {
		t.Error("explicit true must turn labels on")
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(cache.NewNullCache(), nil, log.NewWithOptions(io.Discard, log.Options{}))
	defer r.Close()

	result, err := r.Execute(context.Background(), testOptions(FormatSVG, FormatJSON))
	if err != nil {
		t.Fatal(err)
	}

	// Two root tags with one branch each.
	if got := result.Stats.NodeCount; got != 3 {
		t.Errorf("NodeCount = %d, want 3", got)
	}
	if got := result.Stats.ConnectionCount; got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}
	if result.TreeHash == "" {
		t.Error("missing tree hash")
	}
	if result.CacheInfo.TreeHit || result.CacheInfo.RenderHit {
		t.Error("null cache must never hit")
	}

	svg := string(result.Artifacts[FormatSVG])
	if !strings.Contains(svg, "Midnight City") {
		t.Error("SVG artifact missing root track")
	}
	if !strings.Contains(string(result.Artifacts[FormatJSON]), `"nodes"`) {
		t.Error("JSON artifact missing nodes")
	}
}

func TestExecuteCaching(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, log.NewWithOptions(io.Discard, log.Options{}))
	defer r.Close()
	ctx := context.Background()

	first, err := r.Execute(ctx, testOptions(FormatSVG))
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.TreeHit || first.CacheInfo.RenderHit {
		t.Error("first run must miss")
	}

	second, err := r.Execute(ctx, testOptions(FormatSVG))
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.TreeHit {
		t.Error("second run must hit the tree cache")
	}
	if !second.CacheInfo.RenderHit {
		t.Error("second run must hit the artifact cache")
	}
	if second.TreeHash != first.TreeHash {
		t.Error("cached tree must hash identically")
	}
	if string(second.Artifacts[FormatSVG]) != string(first.Artifacts[FormatSVG]) {
		t.Error("cached artifact differs from the original")
	}

	// Refresh bypasses the tree cache.
	refreshOpts := testOptions(FormatSVG)
	refreshOpts.Refresh = true
	third, err := r.Execute(ctx, refreshOpts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.TreeHit {
		t.Error("refresh must regrow")
	}
}

func TestExecuteSeedChangesKey(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, log.NewWithOptions(io.Discard, log.Options{}))
	defer r.Close()
	ctx := context.Background()

	if _, err := r.Execute(ctx, testOptions(FormatSVG)); err != nil {
		t.Fatal(err)
	}

	other := testOptions(FormatSVG)
	other.Seed = 7
	result, err := r.Execute(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheInfo.TreeHit {
		t.Error("different seed must not reuse the cached tree")
	}
}

func TestGrowWithoutRender(t *testing.T) {
	r := NewRunner(nil, nil, log.NewWithOptions(io.Discard, log.Options{}))
	defer r.Close()

	tr, err := r.Grow(context.Background(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if tr.NodeCount() != 3 {
		t.Errorf("NodeCount = %d, want 3", tr.NodeCount())
	}
}

func TestRenderDOTFormat(t *testing.T) {
	r := NewRunner(cache.NewNullCache(), nil, log.NewWithOptions(io.Discard, log.Options{}))
	defer r.Close()
	ctx := context.Background()

	tr, err := r.Grow(ctx, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	opts := testOptions(FormatDOT)
	artifacts, err := r.Render(ctx, tr, "hash", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(artifacts[FormatDOT]), "digraph tracktree") {
		t.Error("DOT artifact malformed")
	}
}

func TestTreeKeyOptsCoverIdentity(t *testing.T) {
	opts := testOptions()
	opts.Seed = 9
	key := opts.TreeKeyOpts()
	if key.RootKey != opts.Root.Key() {
		t.Error("RootKey must use track identity")
	}
	if key.Seed != 9 || key.MaxLevels != 1 || key.BranchesPerTag != 1 {
		t.Errorf("key opts = %+v", key)
	}
}
