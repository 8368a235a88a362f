package grow

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/tracktree/pkg/errors"
	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/observability"
	"github.com/matzehuels/tracktree/pkg/render"
	"github.com/matzehuels/tracktree/pkg/tags"
	"github.com/matzehuels/tracktree/pkg/track"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// ErrGenerationInProgress is returned by [Orchestrator.GenerateAutoTree]
// when a growth cycle is already expanding.
var ErrGenerationInProgress = stderrors.New("generation already in progress")

// State is the orchestrator's growth state.
type State int

const (
	// StateIdle means no growth cycle is running.
	StateIdle State = iota
	// StateExpanding means scheduled growth tasks are still pending.
	StateExpanding
)

// String returns the state name for logging.
func (s State) String() string {
	if s == StateExpanding {
		return "expanding"
	}
	return "idle"
}

// TrackSource supplies candidate tracks for expansion. The three methods
// correspond to the fetch fallback tiers: tag match, same-category match
// from the full catalog, then uniformly random tracks. An empty result is
// valid at every tier and never an error.
type TrackSource interface {
	// FetchRelatedTracks returns tracks sharing the exact tag, excluding
	// the given track.
	FetchRelatedTracks(ctx context.Context, tag string, exclude track.Track) ([]track.Track, error)

	// FetchByCategory returns tracks carrying any tag of the given
	// category, excluding the given track.
	FetchByCategory(ctx context.Context, category string, exclude track.Track) ([]track.Track, error)

	// FetchRandom returns up to n uniformly random tracks from the whole
	// catalog, excluding the given track.
	FetchRandom(ctx context.Context, n int, exclude track.Track) ([]track.Track, error)
}

// ExclusionPolicy is the external rule deciding whether a candidate may
// not join the tree (e.g. "already present in the tree or the active
// playlist").
type ExclusionPolicy interface {
	ShouldExclude(t track.Track) bool
}

// ExclusionFunc adapts a function to the ExclusionPolicy interface.
type ExclusionFunc func(track.Track) bool

// ShouldExclude implements ExclusionPolicy.
func (f ExclusionFunc) ShouldExclude(t track.Track) bool { return f(t) }

// NoExclusion accepts every candidate.
var NoExclusion = ExclusionFunc(func(track.Track) bool { return false })

// Listener receives typed notifications as the tree mutates. This
// replaces bus-style publish/subscribe wiring with an explicit interface;
// the rendering layer implements it to mirror the registry on screen.
// All callbacks fire on the scheduler goroutine while the orchestrator's
// lock is held: implementations must return quickly and must not call
// back into the orchestrator (State, AddNode, GetSuggestedTags, ...) or
// they deadlock. Snapshot the arguments and hand heavy work to another
// goroutine.
type Listener interface {
	// NodeAdded fires after a node is registered. total is the node count
	// after the addition.
	NodeAdded(n *tree.Node, total int)

	// ConnectionCreated fires after a connection is created, always
	// directly after the NodeAdded of its child.
	ConnectionCreated(c *tree.Connection, total int)

	// LayoutUpdated fires after a positioning pass.
	LayoutUpdated(nodeCount int)

	// GenerationComplete fires when a growth cycle reaches Idle.
	GenerationComplete(nodes, connections int)
}

// NoopListener is a no-op Listener.
type NoopListener struct{}

func (NoopListener) NodeAdded(*tree.Node, int)               {}
func (NoopListener) ConnectionCreated(*tree.Connection, int) {}
func (NoopListener) LayoutUpdated(int)                       {}
func (NoopListener) GenerationComplete(int, int)             {}

// Default growth bounds. Together with BranchesPerTag these are the
// structural backpressure: total node count is bounded, so no dynamic
// throttling is needed.
const (
	DefaultMaxLevels      = 2
	DefaultTagsPerLevel   = 2
	DefaultBranchesPerTag = 1
)

// Options bounds and paces a growth cycle.
type Options struct {
	// MaxLevels is the deepest generation level (root is level 0).
	MaxLevels int

	// TagsPerLevel caps the representative-tag count per level; index 0
	// applies to level 1. Levels beyond the slice use DefaultTagsPerLevel.
	TagsPerLevel []int

	// BranchesPerTag caps how many fetched tracks become children per tag.
	BranchesPerTag int

	// TagDelay staggers sibling tag expansions; BranchDelay staggers
	// branches within one tag. Zero runs as fast as the queue drains.
	TagDelay    time.Duration
	BranchDelay time.Duration

	// FetchTimeout bounds a single TrackSource call. Zero means no
	// per-call timeout beyond the session context.
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxLevels == 0 {
		o.MaxLevels = DefaultMaxLevels
	}
	if o.BranchesPerTag == 0 {
		o.BranchesPerTag = DefaultBranchesPerTag
	}
	return o
}

// tagsAt returns the representative-tag cap for a level (1-based).
func (o Options) tagsAt(level int) int {
	if level >= 1 && level <= len(o.TagsPerLevel) {
		return o.TagsPerLevel[level-1]
	}
	return DefaultTagsPerLevel
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithListener registers the mutation listener.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.listener = l
		}
	}
}

// WithExclusionPolicy sets the external candidate-exclusion rule.
func WithExclusionPolicy(p ExclusionPolicy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator drives recursive, time-staggered tree construction.
//
// A cycle moves Idle → Expanding → Idle. During Expanding every tag and
// branch step is a scheduled task; all tasks run on one goroutine, and a
// mutex protects the registry against the external API methods. Tasks
// that fire after their parent vanished (cleared or pruned mid-flight)
// detect the stale parent and no-op.
type Orchestrator struct {
	mu       sync.Mutex
	tree     *tree.Tree
	engine   *layout.Engine
	source   TrackSource
	policy   ExclusionPolicy
	listener Listener
	logger   *log.Logger
	sched    *Scheduler
	opts     Options

	state     State
	pending   int // scheduled-but-unfinished tasks in the current cycle
	sessionID string
	started   time.Time
	ctx       context.Context
	done      chan struct{}
}

// New creates an orchestrator owning a scheduler. Call Close to release it.
func New(t *tree.Tree, engine *layout.Engine, source TrackSource, opts Options, options ...Option) *Orchestrator {
	o := &Orchestrator{
		tree:     t,
		engine:   engine,
		source:   source,
		policy:   NoExclusion,
		listener: NoopListener{},
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
		sched:    NewScheduler(),
		opts:     opts.withDefaults(),
		done:     closedChan(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Close stops the scheduler. Pending growth is abandoned.
func (o *Orchestrator) Close() { o.sched.Stop() }

// State returns the current growth state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Tree returns the registry the orchestrator mutates.
func (o *Orchestrator) Tree() *tree.Tree { return o.tree }

// GenerateAutoTree creates the root node at dropPos (or the layout
// center when nil) and starts the staggered recursive build. It returns
// once the cycle is scheduled; use Wait to block until it finishes.
func (o *Orchestrator) GenerateAutoTree(ctx context.Context, rootTrack track.Track, dropPos *tree.Position) (tree.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateExpanding {
		return tree.None, ErrGenerationInProgress
	}
	if ctx == nil {
		ctx = context.Background()
	}

	root, _, err := o.tree.AddNode(rootTrack, tree.None, "")
	if err != nil {
		return tree.None, err
	}
	if dropPos != nil {
		root.Pos = *dropPos
	} else {
		root.Pos = o.engine.Config().Center
	}

	o.state = StateExpanding
	o.pending = 0
	o.sessionID = uuid.NewString()
	o.started = time.Now()
	o.ctx = ctx
	o.done = make(chan struct{})

	observability.Growth().OnGrowthStart(ctx, rootTrack.String(), o.opts.MaxLevels)
	o.logger.Info("growth started",
		"session", o.sessionID,
		"root", rootTrack.String(),
		"max_levels", o.opts.MaxLevels)

	o.refreshLayoutLocked()
	o.listener.NodeAdded(root, o.tree.NodeCount())

	o.scheduleExpansionLocked(root.ID, 1)
	o.maybeCompleteLocked()
	return root.ID, nil
}

// Wait blocks until the current growth cycle completes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddNode inserts a single node manually (the drag-and-drop entry
// point). pos positions a root drop; children are positioned by the
// layout pass. Returns the new node's ID.
func (o *Orchestrator) AddNode(tr track.Track, pos *tree.Position, parentID tree.NodeID, connectionTag string) (tree.NodeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, conn, err := o.tree.AddNode(tr, parentID, connectionTag)
	if err != nil {
		return tree.None, err
	}
	if pos != nil {
		n.Pos = *pos
	}
	if conn != nil {
		conn.Color = render.ColorForTag(conn.Tag)
	}

	o.refreshLayoutLocked()
	o.listener.NodeAdded(n, o.tree.NodeCount())
	if conn != nil {
		o.listener.ConnectionCreated(conn, o.tree.ConnectionCount())
	}
	return n.ID, nil
}

// RemoveSubtree removes a node and all its descendants, cancelling any
// still-pending growth tasks scoped to the removed nodes.
func (o *Orchestrator) RemoveSubtree(id tree.NodeID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed, err := o.tree.RemoveSubtree(id)
	if err != nil {
		return err
	}
	cancelled := o.sched.CancelScope(removed...)
	o.settleCancelledLocked(cancelled)

	o.logger.Debug("subtree removed", "node", id, "removed", len(removed), "cancelled_tasks", cancelled)
	o.refreshLayoutLocked()
	return nil
}

// ClearTree empties the registry and invalidates every pending growth
// task. An expanding cycle terminates immediately in Idle.
func (o *Orchestrator) ClearTree() {
	o.mu.Lock()
	defer o.mu.Unlock()

	cancelled := o.sched.CancelAll()
	o.tree.Clear()
	o.settleCancelledLocked(cancelled)
	o.logger.Debug("tree cleared", "cancelled_tasks", cancelled)
}

// GetSuggestedTags returns the tags on the node's track not already used
// by its outgoing connections.
func (o *Orchestrator) GetSuggestedTags(id tree.NodeID) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tree.SuggestedTags(id)
}

// =============================================================================
// Scheduled growth steps
// =============================================================================

// scheduleExpansionLocked queues one expansion task per representative
// tag of the parent, staggered by TagDelay. Caller must hold mu.
func (o *Orchestrator) scheduleExpansionLocked(parentID tree.NodeID, level int) {
	if level > o.opts.MaxLevels {
		return
	}
	expansionTags, err := o.tree.ExpansionTags(parentID, o.opts.tagsAt(level))
	if err != nil || len(expansionTags) == 0 {
		// No tags after exclusion: valid terminal condition for the branch.
		return
	}
	for i, tag := range expansionTags {
		o.scheduleLocked(time.Duration(i)*o.opts.TagDelay, parentID, func() {
			o.expandTag(parentID, tag, level)
		})
	}
}

// expandTag fetches candidates for one tag of a parent and schedules
// branch additions. Runs on the scheduler goroutine.
func (o *Orchestrator) expandTag(parentID tree.NodeID, tag string, level int) {
	o.mu.Lock()
	parent, ok := o.tree.Node(parentID)
	if !ok {
		// Parent vanished between scheduling and execution.
		o.skipLocked(tag, "stale-parent")
		o.finishTaskLocked()
		o.mu.Unlock()
		return
	}
	parentTrack := parent.Track
	ctx := o.ctx
	o.mu.Unlock()

	candidates := o.fetchWithFallback(ctx, tag, parentTrack)

	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.finishTaskLocked()

	if _, ok := o.tree.Node(parentID); !ok {
		o.skipLocked(tag, "stale-parent")
		return
	}

	accepted := 0
	for _, candidate := range candidates {
		if accepted == o.opts.BranchesPerTag {
			break
		}
		if candidate.Equal(parentTrack) {
			continue
		}
		// Early filter only; addBranch re-checks before the node is added.
		if o.policy.ShouldExclude(candidate) {
			o.skipLocked(tag, "excluded")
			continue
		}
		delay := time.Duration(accepted) * o.opts.BranchDelay
		accepted++
		o.scheduleLocked(delay, parentID, func() {
			o.addBranch(parentID, candidate, tag, level)
		})
	}
	if accepted == 0 {
		o.skipLocked(tag, "no-candidates")
	}
}

// addBranch validates one candidate and registers it as a child node.
// Runs on the scheduler goroutine. All failures are contained here so a
// failing branch never aborts its siblings.
func (o *Orchestrator) addBranch(parentID tree.NodeID, candidate track.Track, tag string, level int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.finishTaskLocked()

	if _, ok := o.tree.Node(parentID); !ok {
		o.skipLocked(tag, "stale-parent")
		return
	}
	// The exclusion rule is re-checked at add time. Every tag expansion
	// of a level runs before its scheduled branches, so a policy based on
	// tree membership only sees tracks added by earlier branches here,
	// not at scheduling time.
	if o.policy.ShouldExclude(candidate) {
		o.skipLocked(tag, "excluded")
		return
	}

	n, conn, err := o.tree.AddNode(candidate, parentID, tag)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrCodeDuplicateTrack):
			o.skipLocked(tag, "duplicate")
		case errors.Is(err, errors.ErrCodeInvalidTrack):
			o.skipLocked(tag, "invalid")
		default:
			o.logger.Warn("branch failed", "tag", tag, "err", err)
		}
		return
	}
	conn.Color = render.ColorForTag(tag)

	o.refreshLayoutLocked()
	o.listener.NodeAdded(n, o.tree.NodeCount())
	o.listener.ConnectionCreated(conn, o.tree.ConnectionCount())
	o.logger.Debug("node added",
		"node", n.ID, "level", level, "tag", tag, "track", candidate.String())

	if level < o.opts.MaxLevels {
		o.scheduleExpansionLocked(n.ID, level+1)
	}
}

// fetchWithFallback applies the three-tier fetch strategy: exact tag,
// same category from the full catalog, then uniformly random tracks.
// No tier propagates an error; failures degrade to the next tier and an
// empty final result simply skips the branch.
func (o *Orchestrator) fetchWithFallback(ctx context.Context, tag string, exclude track.Track) []track.Track {
	if ctx == nil {
		ctx = context.Background()
	}
	fetch := func(fn func(context.Context) ([]track.Track, error)) []track.Track {
		callCtx := ctx
		if o.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.opts.FetchTimeout)
			defer cancel()
		}
		found, err := fn(callCtx)
		if err != nil {
			o.logger.Debug("fetch failed", "tag", tag, "err", err)
			return nil
		}
		return found
	}

	if found := fetch(func(c context.Context) ([]track.Track, error) {
		return o.source.FetchRelatedTracks(c, tag, exclude)
	}); len(found) > 0 {
		return found
	}
	if found := fetch(func(c context.Context) ([]track.Track, error) {
		return o.source.FetchByCategory(c, tags.Category(tag), exclude)
	}); len(found) > 0 {
		return found
	}
	return fetch(func(c context.Context) ([]track.Track, error) {
		return o.source.FetchRandom(c, o.opts.BranchesPerTag, exclude)
	})
}

// =============================================================================
// Bookkeeping
// =============================================================================

// scheduleLocked enqueues a growth task and counts it as pending.
// Caller must hold mu.
func (o *Orchestrator) scheduleLocked(delay time.Duration, scope tree.NodeID, fn func()) {
	o.pending++
	o.sched.Schedule(delay, scope, fn)
}

// finishTaskLocked marks one task finished and completes the cycle when
// none remain. Caller must hold mu.
func (o *Orchestrator) finishTaskLocked() {
	o.pending--
	o.maybeCompleteLocked()
}

// settleCancelledLocked accounts for tasks removed from the queue
// before they could run. Caller must hold mu.
func (o *Orchestrator) settleCancelledLocked(cancelled int) {
	if cancelled > 0 {
		o.pending -= cancelled
		o.maybeCompleteLocked()
	}
}

func (o *Orchestrator) maybeCompleteLocked() {
	if o.state != StateExpanding || o.pending > 0 {
		return
	}
	o.state = StateIdle
	nodes, conns := o.tree.NodeCount(), o.tree.ConnectionCount()
	elapsed := time.Since(o.started)

	observability.Growth().OnGrowthComplete(o.ctx, nodes, conns, elapsed)
	o.listener.GenerationComplete(nodes, conns)
	o.logger.Info("growth complete",
		"session", o.sessionID,
		"nodes", nodes,
		"connections", conns,
		"duration", elapsed.Round(time.Millisecond))
	close(o.done)
}

func (o *Orchestrator) skipLocked(tag, reason string) {
	observability.Growth().OnBranchSkipped(o.ctx, tag, reason)
	o.logger.Debug("branch skipped", "tag", tag, "reason", reason)
}

// refreshLayoutLocked runs the pull-based layout pass and notifies the
// listener. Caller must hold mu.
func (o *Orchestrator) refreshLayoutLocked() {
	start := time.Now()
	o.engine.Refresh(o.tree)
	observability.Layout().OnLayoutComplete(o.tree.NodeCount(), time.Since(start))
	o.listener.LayoutUpdated(o.tree.NodeCount())
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
