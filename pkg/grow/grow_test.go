package grow

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/track"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// fakeSource serves canned results per fetch tier and records the tiers
// that were consulted.
type fakeSource struct {
	mu         sync.Mutex
	byTag      map[string][]track.Track
	byCategory map[string][]track.Track
	random     []track.Track
	tiers      []string
}

func (f *fakeSource) record(tier string) {
	f.mu.Lock()
	f.tiers = append(f.tiers, tier)
	f.mu.Unlock()
}

func (f *fakeSource) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.tiers))
	copy(out, f.tiers)
	return out
}

func (f *fakeSource) FetchRelatedTracks(_ context.Context, tag string, _ track.Track) ([]track.Track, error) {
	f.record("related")
	return f.byTag[tag], nil
}

func (f *fakeSource) FetchByCategory(_ context.Context, category string, _ track.Track) ([]track.Track, error) {
	f.record("category")
	return f.byCategory[category], nil
}

func (f *fakeSource) FetchRandom(_ context.Context, n int, _ track.Track) ([]track.Track, error) {
	f.record("random")
	if len(f.random) > n {
		return f.random[:n], nil
	}
	return f.random, nil
}

var _ TrackSource = (*fakeSource)(nil)

// recordingListener counts mutation callbacks. Callbacks arrive from the
// scheduler goroutine, so counts are mutex-guarded.
type recordingListener struct {
	mu          sync.Mutex
	nodes       int
	connections int
	layouts     int
	completes   int
}

func (r *recordingListener) NodeAdded(*tree.Node, int) {
	r.mu.Lock()
	r.nodes++
	r.mu.Unlock()
}

func (r *recordingListener) ConnectionCreated(*tree.Connection, int) {
	r.mu.Lock()
	r.connections++
	r.mu.Unlock()
}

func (r *recordingListener) LayoutUpdated(int) {
	r.mu.Lock()
	r.layouts++
	r.mu.Unlock()
}

func (r *recordingListener) GenerationComplete(int, int) {
	r.mu.Lock()
	r.completes++
	r.mu.Unlock()
}

func (r *recordingListener) snapshot() (nodes, connections, layouts, completes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes, r.connections, r.layouts, r.completes
}

func newOrchestrator(t *testing.T, source TrackSource, opts Options, options ...Option) *Orchestrator {
	t.Helper()
	o := New(tree.New(), layout.New(layout.Config{}), source, opts, options...)
	t.Cleanup(o.Close)
	return o
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Wait(ctx); err != nil {
		t.Fatalf("growth did not complete: %v", err)
	}
}

func TestGenerateAutoTree(t *testing.T) {
	source := &fakeSource{
		byTag: map[string][]track.Track{
			"mood:dark":       {{Title: "Nightcall", Artist: "Kavinsky", Tags: []string{"style:synthwave"}}},
			"energy:high":     {{Title: "Runaway", Artist: "Kanye West"}},
			"style:synthwave": {{Title: "Tears", Artist: "HEALTH"}},
		},
	}
	lis := &recordingListener{}
	o := newOrchestrator(t, source, Options{
		MaxLevels:      2,
		TagsPerLevel:   []int{2, 1},
		BranchesPerTag: 1,
	}, WithListener(lis))

	root := track.Track{
		Title:  "Midnight City",
		Artist: "M83",
		Tags:   []string{"mood:dark", "energy:high"},
	}
	rootID, err := o.GenerateAutoTree(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)

	tr := o.Tree()

	// Level 1 expands both root tags, one branch each. Only the synthwave
	// child carries a tag to expand at level 2.
	if got := tr.NodeCount(); got != 4 {
		t.Errorf("NodeCount = %d, want 4", got)
	}
	if got := tr.ConnectionCount(); got != 3 {
		t.Errorf("ConnectionCount = %d, want 3", got)
	}
	if got := tr.MaxDepth(); got != 2 {
		t.Errorf("MaxDepth = %d, want 2", got)
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("State = %v, want idle", got)
	}

	// The root kept the layout center since no drop position was given.
	rootNode, _ := tr.Node(rootID)
	if !rootNode.IsRoot() {
		t.Error("generated root is not the tree root")
	}

	// Every connection carries a color for rendering.
	for _, c := range tr.Connections() {
		if c.Color == "" {
			t.Errorf("connection %s has no color", c.ID)
		}
	}

	nodes, conns, layouts, completes := lis.snapshot()
	if nodes != 4 || conns != 3 {
		t.Errorf("listener saw %d nodes, %d connections, want 4, 3", nodes, conns)
	}
	if layouts == 0 {
		t.Error("listener never saw a layout pass")
	}
	if completes != 1 {
		t.Errorf("GenerationComplete fired %d times, want 1", completes)
	}
}

func TestGenerateAutoTreeDropPosition(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, Options{MaxLevels: 1})
	drop := tree.Position{X: 320, Y: 240}
	rootID, err := o.GenerateAutoTree(context.Background(), track.Track{Title: "A", Artist: "B"}, &drop)
	if err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)

	rootNode, _ := o.Tree().Node(rootID)
	if rootNode.Pos != drop {
		t.Errorf("root at %+v, want drop position %+v", rootNode.Pos, drop)
	}
}

func TestFetchFallbackTiers(t *testing.T) {
	tests := []struct {
		name      string
		source    *fakeSource
		wantNodes int
		wantTiers []string
	}{
		{
			name: "exact tag hit stops the chain",
			source: &fakeSource{byTag: map[string][]track.Track{
				"mood:dark": {{Title: "X", Artist: "Y"}},
			}},
			wantNodes: 2,
			wantTiers: []string{"related"},
		},
		{
			name: "category tier",
			source: &fakeSource{byCategory: map[string][]track.Track{
				"mood": {{Title: "X", Artist: "Y"}},
			}},
			wantNodes: 2,
			wantTiers: []string{"related", "category"},
		},
		{
			name:      "random tier",
			source:    &fakeSource{random: []track.Track{{Title: "X", Artist: "Y"}}},
			wantNodes: 2,
			wantTiers: []string{"related", "category", "random"},
		},
		{
			name:      "empty everywhere is a valid terminal",
			source:    &fakeSource{},
			wantNodes: 1,
			wantTiers: []string{"related", "category", "random"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t, tt.source, Options{MaxLevels: 1, TagsPerLevel: []int{1}, BranchesPerTag: 1})
			root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark"}}
			if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
				t.Fatal(err)
			}
			waitIdle(t, o)

			if got := o.Tree().NodeCount(); got != tt.wantNodes {
				t.Errorf("NodeCount = %d, want %d", got, tt.wantNodes)
			}
			if got := tt.source.calls(); !equalStrings(got, tt.wantTiers) {
				t.Errorf("tiers = %v, want %v", got, tt.wantTiers)
			}
		})
	}
}

func TestExclusionPolicy(t *testing.T) {
	source := &fakeSource{byTag: map[string][]track.Track{
		"mood:dark": {
			{Title: "Banned", Artist: "B"},
			{Title: "Allowed", Artist: "A"},
		},
	}}
	policy := ExclusionFunc(func(tr track.Track) bool { return tr.Title == "Banned" })
	o := newOrchestrator(t, source,
		Options{MaxLevels: 1, TagsPerLevel: []int{1}, BranchesPerTag: 1},
		WithExclusionPolicy(policy))

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark"}}
	if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)

	tr := o.Tree()
	if got := tr.NodeCount(); got != 2 {
		t.Fatalf("NodeCount = %d, want 2", got)
	}
	for _, n := range tr.Nodes() {
		if n.Track.Title == "Banned" {
			t.Error("excluded candidate joined the tree")
		}
	}
}

func TestExclusionPolicySeesEarlierBranches(t *testing.T) {
	// Both root tags fetch the same track. All tag expansions of a level
	// run before any of their scheduled branch additions, so a policy
	// based on tree membership passes both at scheduling time; it must be
	// consulted again when the branch actually adds its node.
	shared := track.Track{Title: "Shared", Artist: "S"}
	source := &fakeSource{byTag: map[string][]track.Track{
		"mood:dark":   {shared},
		"energy:high": {shared},
	}}

	var o *Orchestrator
	policy := ExclusionFunc(func(tr track.Track) bool { return o.Tree().Contains(tr) })
	o = newOrchestrator(t, source,
		Options{MaxLevels: 1, TagsPerLevel: []int{2}, BranchesPerTag: 1},
		WithExclusionPolicy(policy))

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark", "energy:high"}}
	if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)

	count := 0
	for _, n := range o.Tree().Nodes() {
		if n.Track.Equal(shared) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("shared track joined the tree %d times, want 1", count)
	}
	if got := o.Tree().NodeCount(); got != 2 {
		t.Errorf("NodeCount = %d, want 2", got)
	}
}

func TestGenerationInProgress(t *testing.T) {
	// Two tags with a huge stagger: the second expansion stays queued,
	// holding the cycle in Expanding for the duration of the test.
	o := newOrchestrator(t, &fakeSource{}, Options{MaxLevels: 1, TagsPerLevel: []int{2}, TagDelay: time.Hour})

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark", "energy:high"}}
	if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}
	if got := o.State(); got != StateExpanding {
		t.Fatalf("State = %v, want expanding", got)
	}

	_, err := o.GenerateAutoTree(context.Background(), track.Track{Title: "Other", Artist: "O"}, nil)
	if !stderrors.Is(err, ErrGenerationInProgress) {
		t.Errorf("got %v, want ErrGenerationInProgress", err)
	}

	// Clearing cancels the held task and terminates the cycle.
	o.ClearTree()
	waitIdle(t, o)
	if got := o.State(); got != StateIdle {
		t.Errorf("State after clear = %v, want idle", got)
	}
	if got := o.Tree().NodeCount(); got != 0 {
		t.Errorf("NodeCount after clear = %d, want 0", got)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, Options{MaxLevels: 1, TagsPerLevel: []int{2}, TagDelay: time.Hour})

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark", "energy:high"}}
	if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := o.Wait(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
	o.ClearTree()
}

func TestRemoveSubtreeCancelsPendingTasks(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, Options{MaxLevels: 1, TagsPerLevel: []int{2}, TagDelay: time.Hour})

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark", "energy:high"}}
	rootID, err := o.GenerateAutoTree(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Removing the root cancels its scoped expansion task; the cycle
	// settles to Idle instead of waiting an hour.
	if err := o.RemoveSubtree(rootID); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)
	if got := o.State(); got != StateIdle {
		t.Errorf("State = %v, want idle", got)
	}
	if got := o.Tree().NodeCount(); got != 0 {
		t.Errorf("NodeCount = %d, want 0", got)
	}
}

func TestManualAddNode(t *testing.T) {
	o := newOrchestrator(t, &fakeSource{}, Options{})

	pos := tree.Position{X: 100, Y: 100}
	rootID, err := o.AddNode(track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark"}}, &pos, tree.None, "")
	if err != nil {
		t.Fatal(err)
	}
	childID, err := o.AddNode(track.Track{Title: "Child", Artist: "C"}, nil, rootID, "mood:dark")
	if err != nil {
		t.Fatal(err)
	}

	tr := o.Tree()
	conn := tr.ConnectionTo(childID)
	if conn == nil {
		t.Fatal("no connection for manual child")
	}
	if conn.Color == "" {
		t.Error("manual connection has no color")
	}

	// The arrival tag is consumed, so the root has nothing left to suggest.
	suggested, err := o.GetSuggestedTags(rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggested) != 0 {
		t.Errorf("suggested = %v, want none", suggested)
	}
}

func TestBranchesPerTagCap(t *testing.T) {
	source := &fakeSource{byTag: map[string][]track.Track{
		"mood:dark": {
			{Title: "A", Artist: "X"},
			{Title: "B", Artist: "X"},
			{Title: "C", Artist: "X"},
		},
	}}
	o := newOrchestrator(t, source, Options{MaxLevels: 1, TagsPerLevel: []int{1}, BranchesPerTag: 2})

	root := track.Track{Title: "Root", Artist: "R", Tags: []string{"mood:dark"}}
	if _, err := o.GenerateAutoTree(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, o)

	if got := o.Tree().NodeCount(); got != 3 {
		t.Errorf("NodeCount = %d, want root plus two branches", got)
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateExpanding.String() != "expanding" {
		t.Error("state names wrong")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
