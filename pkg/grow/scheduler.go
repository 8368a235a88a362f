package grow

import (
	"container/heap"
	"sync"
	"time"

	"github.com/matzehuels/tracktree/pkg/tree"
)

// Scheduler is an explicit, cancellable deferred-task queue. Growth
// staggering is purely presentational pacing, so tasks are plain
// closures ordered by due time; correctness never depends on delays.
//
// All task functions execute on a single goroutine, giving the registry
// one mutating execution context. Tasks carry the node scope they will
// operate under so that clearing or removing a subtree can invalidate
// its still-pending continuations instead of letting them fire against
// stale parents.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	seq     int64
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	closed  bool
}

type task struct {
	due   time.Time
	seq   int64 // FIFO tie-breaker for equal due times
	scope tree.NodeID
	fn    func()
}

// NewScheduler creates a scheduler and starts its run loop.
// Call Stop to release the goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Schedule enqueues fn to run after delay on the scheduler goroutine.
// scope names the node the task operates under; CancelScope with that
// ID (or CancelAll) prevents the task from running.
func (s *Scheduler) Schedule(delay time.Duration, scope tree.NodeID, fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	heap.Push(&s.tasks, &task{due: time.Now().Add(delay), seq: s.seq, scope: scope, fn: fn})
	s.mu.Unlock()
	s.kick()
}

// CancelScope removes every pending task whose scope is in ids.
// Returns the number of tasks removed. Tasks already executing are not
// interrupted; they must perform their own stale-parent checks.
func (s *Scheduler) CancelScope(ids ...tree.NodeID) int {
	doomed := make(map[tree.NodeID]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeIf(func(t *task) bool {
		_, dead := doomed[t.scope]
		return dead
	})
}

// CancelAll removes every pending task and returns the number removed.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeIf(func(*task) bool { return true })
}

// Pending returns the number of queued (not yet started) tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels all pending tasks and terminates the run loop. The
// scheduler cannot be reused after Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	s.tasks = nil
	s.mu.Unlock()
	close(s.stop)
	<-s.stopped
}

// removeIf drops matching tasks and re-establishes heap order.
// Caller must hold mu.
func (s *Scheduler) removeIf(match func(*task) bool) int {
	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if match(t) {
			removed++
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	heap.Init(&s.tasks)
	return removed
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.stopped)
	for {
		// Run everything that is due.
		for {
			s.mu.Lock()
			if s.closed || len(s.tasks) == 0 || s.tasks[0].due.After(time.Now()) {
				s.mu.Unlock()
				break
			}
			t := heap.Pop(&s.tasks).(*task)
			s.mu.Unlock()
			t.fn()
		}

		s.mu.Lock()
		var timerC <-chan time.Time
		var timer *time.Timer
		if !s.closed && len(s.tasks) > 0 {
			timer = time.NewTimer(time.Until(s.tasks[0].due))
			timerC = timer.C
		}
		s.mu.Unlock()

		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// taskHeap orders tasks by due time, then insertion order.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
