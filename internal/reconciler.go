package internal

import "sync"

// Renderer is the platform collaborator: it turns committed effects into
// visible output. The engine calls it in the three commit sub-phases and
// never at any other time.
type Renderer interface {
	// BeforeMutation runs before any mutation, for pre-change snapshots.
	BeforeMutation(node *Fiber)
	// Mutate applies one node's insert/update/delete effect.
	Mutate(node *Fiber, flags Flags)
	// AfterMutation runs once the mutated tree is current.
	AfterMutation(node *Fiber)
}

// Reconciler drives incremental tree reconciliation on top of a Scheduler.
// One work loop pass may be in progress per root at a time; mu enforces
// the single-writer discipline over roots and their arenas, and is
// released around renderer hooks and update callbacks so those can
// re-enter with new updates.
type Reconciler struct {
	mu sync.Mutex

	sched    *Scheduler
	renderer Renderer

	// depth of forced-synchronous context, see RunSync
	syncDepth int

	errHandlers []func(any)
}

func NewReconciler(s *Scheduler, r Renderer) *Reconciler {
	return &Reconciler{
		sched:    s,
		renderer: r,
	}
}

func (rc *Reconciler) Scheduler() *Scheduler {
	return rc.sched
}

// OnRenderError registers a handler for panics raised while rendering a
// unit of work. The in-progress tree is already discarded when a handler
// runs. Without any handler such panics propagate.
func (rc *Reconciler) OnRenderError(fn func(any)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.errHandlers = append(rc.errHandlers, fn)
}

// NewRoot creates a tree anchor. container is an opaque renderer handle,
// stored on the root fiber's instance slot.
func (rc *Reconciler) NewRoot(container any) *Root {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	a := NewArena()
	rootFiber := a.alloc(TagRoot, "", "")
	f := a.Get(rootFiber)
	f.queue = NewUpdateQueue(nil)
	f.instance = container

	return &Root{
		rec:      rc,
		arena:    a,
		current:  rootFiber,
		cursor:   NilNode,
		wipRoot:  NilNode,
		finished: NilNode,
	}
}

// RequestUpdateLane derives the lane for a new update from the current
// execution context: forced-sync context wins, otherwise the scheduler's
// ambient priority decides.
func (rc *Reconciler) RequestUpdateLane() Lanes {
	rc.mu.Lock()
	forced := rc.syncDepth > 0
	rc.mu.Unlock()

	if forced {
		return SyncLane
	}
	return LaneForPriority(rc.sched.CurrentPriority())
}

// RunSync runs fn in a forced-synchronous context: updates created inside
// take the sync lane, and any resulting sync work on the given roots is
// flushed before RunSync returns.
func (rc *Reconciler) RunSync(fn func(), roots ...*Root) {
	rc.mu.Lock()
	rc.syncDepth++
	rc.mu.Unlock()

	defer func() {
		rc.mu.Lock()
		rc.syncDepth--
		rc.mu.Unlock()

		for _, root := range roots {
			rc.flushSyncWork(root)
		}
	}()

	fn()
}

// unlocked runs fn with mu released. The deferred re-lock keeps the mutex
// balanced when a renderer hook or callback panics.
func (rc *Reconciler) unlocked(fn func()) {
	rc.mu.Unlock()
	defer rc.mu.Lock()
	fn()
}

func (rc *Reconciler) notifyRenderError(v any) {
	rc.mu.Lock()
	handlers := rc.errHandlers
	rc.mu.Unlock()

	if len(handlers) == 0 {
		panic(v)
	}
	for _, fn := range handlers {
		fn(v)
	}
}
