package internal

import "time"

var zeroTime time.Time

// RenderState tracks a root's pass through the work loop.
type RenderState int

const (
	RenderIdle RenderState = iota
	RenderInProgress
	RenderCompleted
	RenderCommitted
)

// Root anchors one tree: its arena, the current and in-progress buffers,
// the pending lane bookkeeping, and at most one scheduled task at a time.
type Root struct {
	rec   *Reconciler
	arena *Arena

	current NodeID

	pendingLanes   Lanes
	suspendedLanes Lanes
	pingedLanes    Lanes
	expiredLanes   Lanes

	// per-lane times for starvation detection, indexed by lane bit
	eventTimes      [laneWidth]time.Time
	expirationTimes [laneWidth]time.Time

	task         *Task
	taskPriority Priority

	state    RenderState
	cursor   NodeID
	wipRoot  NodeID
	wipLanes Lanes

	finished      NodeID
	finishedLanes Lanes
}

func (r *Root) Arena() *Arena {
	return r.arena
}

// Current returns the root fiber of the committed tree.
func (r *Root) Current() *Fiber {
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	return r.arena.Get(r.current)
}

// State reports the root's render state.
func (r *Root) State() RenderState {
	r.rec.mu.Lock()
	defer r.rec.mu.Unlock()
	return r.state
}

// Render replaces the root's element, scheduling a reconciliation pass at
// the lane of the current execution context.
func (r *Root) Render(el *Element, callback func()) {
	rc := r.rec
	lane := rc.RequestUpdateLane()
	eventTime := rc.sched.Now()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	u := NewUpdate(eventTime, lane, UpdateReplace, el, callback)
	r.arena.Get(r.current).queue.Enqueue(u)
	rc.scheduleUpdateOnRoot(r, r.current, lane, eventTime)
}

// UpdateNode enqueues a state mutation on one node. payload is merged into
// the node's state (maps merge shallowly; a func(prev any) any payload is
// reduced first). callback runs after the commit that applies it.
func (r *Root) UpdateNode(node *Fiber, payload any, callback func()) {
	r.enqueue(node, UpdateMerge, payload, callback)
}

// ReplaceNodeState replaces the node's state outright.
func (r *Root) ReplaceNodeState(node *Fiber, payload any, callback func()) {
	r.enqueue(node, UpdateReplace, payload, callback)
}

// ForceUpdate re-renders the node's subtree without changing state.
func (r *Root) ForceUpdate(node *Fiber, callback func()) {
	r.enqueue(node, UpdateForce, nil, callback)
}

func (r *Root) enqueue(node *Fiber, tag UpdateTag, payload any, callback func()) {
	rc := r.rec
	lane := rc.RequestUpdateLane()
	eventTime := rc.sched.Now()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	queue := node.queue
	if queue == nil {
		queue = NewUpdateQueue(nil)
		node.queue = queue
	}
	queue.Enqueue(NewUpdate(eventTime, lane, tag, payload, callback))
	rc.scheduleUpdateOnRoot(r, node.id, lane, eventTime)
}

// scheduleUpdateOnRoot is the entry point every external mutation funnels
// through: mark the lane on the node and up the parent chain, note it on
// the root, and make sure the root has a task. mu held.
func (rc *Reconciler) scheduleUpdateOnRoot(root *Root, node NodeID, lane Lanes, eventTime time.Time) {
	a := root.arena

	f := a.Get(node)
	f.lanes = f.lanes.Merge(lane)
	if alt := a.Get(f.alternate); alt != nil {
		alt.lanes = alt.lanes.Merge(lane)
	}

	for parent := f.parent; parent != NilNode; {
		p := a.Get(parent)
		p.childLanes = p.childLanes.Merge(lane)
		if alt := a.Get(p.alternate); alt != nil {
			alt.childLanes = alt.childLanes.Merge(lane)
		}
		parent = p.parent
	}

	root.pendingLanes = root.pendingLanes.Merge(lane)
	root.eventTimes[lane.Index()] = eventTime

	// a fresh update un-suspends its lane
	root.suspendedLanes = root.suspendedLanes.Remove(lane)
	root.pingedLanes = root.pingedLanes.Remove(lane)

	rc.ensureRootIsScheduled(root, eventTime)
}

// markStarvedLanesAsExpired promotes pending lanes whose expiration has
// passed into the expired set, which forces them to render synchronously
// no matter what keeps arriving. mu held.
func (rc *Reconciler) markStarvedLanesAsExpired(root *Root, now time.Time) {
	profile := rc.sched.Profile()

	root.pendingLanes.each(func(lane Lanes) bool {
		idx := lane.Index()

		if root.expirationTimes[idx].IsZero() {
			timeout := profile.Timeout(LanePriority(lane))
			if timeout >= maxTimeout {
				return true // idle lanes never starve into sync
			}
			if timeout < 0 {
				timeout = 0
			}
			root.expirationTimes[idx] = root.eventTimes[idx].Add(timeout)
		} else if !root.expirationTimes[idx].After(now) {
			root.expiredLanes = root.expiredLanes.Merge(lane)
		}
		return true
	})
}

// ensureRootIsScheduled keeps exactly one task per root, at the priority
// of the most urgent pending lanes. A priority change cancels and replaces
// the existing task; same priority reuses it. mu held.
func (rc *Reconciler) ensureRootIsScheduled(root *Root, now time.Time) {
	rc.markStarvedLanesAsExpired(root, now)

	next := NextLanes(root.pendingLanes, root.suspendedLanes, root.pingedLanes)
	if next == NoLanes {
		if root.task != nil {
			rc.sched.Cancel(root.task)
			root.task = nil
		}
		return
	}

	priority := LanePriority(next)
	if next.Intersects(SyncLane) || root.expiredLanes.Intersects(root.pendingLanes) {
		priority = PriorityImmediate
	}

	if root.task != nil {
		if root.taskPriority == priority {
			return
		}
		rc.sched.Cancel(root.task)
		root.task = nil
	}

	root.task = rc.sched.Schedule(priority, func(didTimeout bool) TaskResult {
		return rc.performWorkOnRoot(root, didTimeout)
	}, TaskOptions{})
	root.taskPriority = priority
}

// performWorkOnRoot is the scheduled task body: render (time-sliced when
// allowed), and either yield a continuation, commit, or reschedule.
func (rc *Reconciler) performWorkOnRoot(root *Root, didTimeout bool) TaskResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	originalTask := root.task
	now := rc.sched.Now()
	rc.markStarvedLanesAsExpired(root, now)

	lanes := NextLanes(root.pendingLanes, root.suspendedLanes, root.pingedLanes)
	if lanes == NoLanes {
		root.task = nil
		return Done()
	}

	// an expired task or expired/sync lanes give up time slicing entirely
	timeSliced := !didTimeout &&
		!lanes.Intersects(SyncLane) &&
		!lanes.Intersects(root.expiredLanes)

	if timeSliced {
		rc.renderRootConcurrent(root, lanes)
	} else {
		rc.renderRootSync(root, lanes)
	}

	if root.state == RenderInProgress {
		if root.task != originalTask {
			// superseded while yielding; the newer task owns the root now
			return Done()
		}
		return Continue(func(didTimeout bool) TaskResult {
			return rc.performWorkOnRoot(root, didTimeout)
		})
	}

	if root.state == RenderCompleted {
		root.finished = root.wipRoot
		root.finishedLanes = root.wipLanes
		root.wipRoot = NilNode
		root.cursor = NilNode
		rc.commitRoot(root)
	}

	if root.task == originalTask {
		root.task = nil
	}
	rc.ensureRootIsScheduled(root, rc.sched.Now())
	return Done()
}

// flushSyncWork renders and commits any pending sync-lane work on the
// root immediately, on the calling goroutine.
func (rc *Reconciler) flushSyncWork(root *Root) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	lanes := NextLanes(root.pendingLanes, root.suspendedLanes, root.pingedLanes)
	if !lanes.Intersects(SyncLane) {
		return
	}

	if root.task != nil {
		rc.sched.Cancel(root.task)
		root.task = nil
	}

	rc.renderRootSync(root, lanes)

	if root.state == RenderCompleted {
		root.finished = root.wipRoot
		root.finishedLanes = root.wipLanes
		root.wipRoot = NilNode
		root.cursor = NilNode
		rc.commitRoot(root)
	}

	rc.ensureRootIsScheduled(root, rc.sched.Now())
}
