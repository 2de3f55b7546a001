package internal

// prepareFreshStack discards whatever pass was in progress and sets the
// cursor at a new shadow root for the given lanes.
func (rc *Reconciler) prepareFreshStack(root *Root, lanes Lanes) {
	if root.wipRoot != NilNode {
		rc.discardWorkInProgress(root)
	}

	root.wipRoot = root.arena.createWorkInProgress(root.current, nil)
	root.wipLanes = lanes
	root.cursor = root.wipRoot
	root.finished = NilNode
	root.finishedLanes = NoLanes
}

// discardWorkInProgress abandons the in-progress tree. Standing alternate
// buffers stay paired with their current fibers for reuse; fibers that
// were freshly mounted this pass (placements with no alternate) go back to
// the arena.
func (rc *Reconciler) discardWorkInProgress(root *Root) {
	rc.releaseAbandoned(root.arena, root.wipRoot)
	root.wipRoot = NilNode
	root.cursor = NilNode
	root.wipLanes = NoLanes
	root.state = RenderIdle
}

func (rc *Reconciler) releaseAbandoned(a *Arena, id NodeID) {
	if id == NilNode {
		return
	}

	for child := a.Get(id).child; child != NilNode; {
		c := a.Get(child)
		next := c.sibling

		if c.alternate == NilNode && c.flags&FlagPlacement != 0 {
			// never committed; its whole subtree was built this pass
			a.releaseTree(child)
		} else {
			rc.releaseAbandoned(a, child)
		}

		child = next
	}
}

// renderRootConcurrent runs the yield-aware work loop, reusing an
// in-progress tree when its lanes match and restarting otherwise. A panic
// while rendering discards the tree and marks the root for a synchronous
// retry before being handed to the error handlers.
func (rc *Reconciler) renderRootConcurrent(root *Root, lanes Lanes) {
	if root.wipRoot == NilNode || root.wipLanes != lanes {
		rc.prepareFreshStack(root, lanes)
	}
	root.state = RenderInProgress

	rc.sched.log.Trace().
		Uint64("lanes", uint64(lanes)).
		Log("render pass (concurrent)")

	if !rc.runWorkLoop(root, lanes, true) {
		return
	}

	if root.cursor == NilNode {
		root.state = RenderCompleted
	}
}

// renderRootSync always restarts from a fresh stack and runs to completion
// without consulting the yield signal. Used for the sync lane and for
// expired (starved) work.
func (rc *Reconciler) renderRootSync(root *Root, lanes Lanes) {
	if root.wipRoot == NilNode || root.wipLanes != lanes {
		rc.prepareFreshStack(root, lanes)
	}
	root.state = RenderInProgress

	rc.sched.log.Trace().
		Uint64("lanes", uint64(lanes)).
		Log("render pass (sync)")

	if !rc.runWorkLoop(root, lanes, false) {
		return
	}

	root.state = RenderCompleted
}

// runWorkLoop performs units of work until the tree is complete or, in the
// concurrent variant, the host wants control back. Returns false when the
// pass panicked and was discarded.
func (rc *Reconciler) runWorkLoop(root *Root, lanes Lanes, yieldable bool) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			ok = false
			rc.discardWorkInProgress(root)

			// force the retry to render synchronously
			root.expiredLanes = root.expiredLanes.Merge(lanes)
			if !yieldable {
				// the sync retry itself failed; drop the work so the
				// root doesn't loop on a deterministic panic
				root.pendingLanes = root.pendingLanes.Remove(lanes)
				root.expiredLanes = root.expiredLanes.Remove(lanes)
			}

			rc.mu.Unlock()
			defer rc.mu.Lock()
			rc.notifyRenderError(v)
		}
	}()

	if yieldable {
		for root.cursor != NilNode && !rc.sched.ShouldYield() {
			rc.performUnitOfWork(root)
		}
	} else {
		for root.cursor != NilNode {
			rc.performUnitOfWork(root)
		}
	}

	return true
}

// performUnitOfWork advances the cursor by one node: begin the unit's work
// (descend), or complete it and move across/up. Stopping between calls
// leaves the cursor valid for exact resumption.
func (rc *Reconciler) performUnitOfWork(root *Root) {
	unit := root.cursor
	u := root.arena.Get(unit)

	next := rc.beginWork(root, u.alternate, unit, root.wipLanes)
	u.memoProps = u.pendingProps

	if next == NilNode {
		next = rc.completeUnitOfWork(root, unit)
	}
	root.cursor = next
}

// beginWork produces the unit's children. The bail-out path reuses the
// previous pass's subtree untouched when the input is unchanged and no
// descendant carries a lane in the render set.
func (rc *Reconciler) beginWork(root *Root, current, wip NodeID, renderLanes Lanes) NodeID {
	a := root.arena
	w := a.Get(wip)

	if current != NilNode {
		c := a.Get(current)

		unchanged := c.memoProps == w.pendingProps &&
			!w.lanes.Intersects(renderLanes) &&
			!w.queue.hasPending()

		if unchanged {
			return rc.bailout(a, wip, renderLanes)
		}

		if c.memoProps != w.pendingProps {
			w.flags |= FlagUpdate | FlagSnapshot
		}
	}

	var currentFirstChild NodeID = NilNode
	if current != NilNode {
		currentFirstChild = a.Get(current).child
	}

	// this unit is being worked; processUpdateQueue re-adds the lanes of
	// any update it skips
	hadLanes := w.lanes
	w.lanes = NoLanes

	switch w.tag {
	case TagRoot:
		prevEl, _ := w.memoState.(*Element)
		w.queue.processUpdateQueue(a, w, renderLanes)
		nextEl, _ := w.memoState.(*Element)

		if nextEl == prevEl && current != NilNode && !w.queue.forced {
			return rc.bailout(a, wip, renderLanes)
		}

		var children []*Element
		if nextEl != nil {
			children = []*Element{nextEl}
		}
		reconcileChildren(a, wip, currentFirstChild, children)

	case TagElement:
		if w.queue != nil && (w.queue.hasPending() || hadLanes.Intersects(renderLanes)) {
			if w.queue.processUpdateQueue(a, w, renderLanes) {
				// state moved even if props did not; the renderer still
				// needs a mutation pass over this node
				w.flags |= FlagUpdate
			}
		}

		var children []*Element
		if w.pendingProps != nil {
			children = w.pendingProps.Children
		}
		reconcileChildren(a, wip, currentFirstChild, children)
	}

	return w.child
}

// bailout skips re-rendering a unit. When nothing below it intersects the
// render lanes either, the whole previous subtree is reused by completing
// immediately; otherwise the children are cloned so traversal can descend.
func (rc *Reconciler) bailout(a *Arena, wip NodeID, renderLanes Lanes) NodeID {
	w := a.Get(wip)

	if !w.childLanes.Intersects(renderLanes) {
		return NilNode
	}

	cloneChildFibers(a, wip)
	return w.child
}

// completeUnitOfWork finalizes the unit and walks toward the next one: its
// sibling if it has one, otherwise upward completing ancestors until a
// sibling is found or the root completes. Completion threads flagged
// fibers onto the parent's effect list and bubbles child lanes.
func (rc *Reconciler) completeUnitOfWork(root *Root, unit NodeID) NodeID {
	a := root.arena
	completed := unit

	for {
		c := a.Get(completed)
		parent := c.parent

		// bubble descendant lanes so future passes can bail out on the
		// aggregate
		childLanes := NoLanes
		for child := c.child; child != NilNode; child = a.Get(child).sibling {
			cf := a.Get(child)
			childLanes = childLanes.Merge(cf.lanes).Merge(cf.childLanes)
		}
		c.childLanes = childLanes

		if parent != NilNode {
			p := a.Get(parent)

			// append the unit's accumulated effect list, then the unit
			// itself when flagged
			if p.firstEffect == NilNode {
				p.firstEffect = c.firstEffect
			}
			if c.lastEffect != NilNode {
				if p.lastEffect != NilNode {
					a.Get(p.lastEffect).nextEffect = c.firstEffect
				}
				p.lastEffect = c.lastEffect
			}

			if c.flags != FlagNone || len(c.deletions) > 0 {
				if p.lastEffect != NilNode {
					a.Get(p.lastEffect).nextEffect = completed
				} else {
					p.firstEffect = completed
				}
				p.lastEffect = completed
			}
		}

		if c.sibling != NilNode {
			return c.sibling
		}
		if parent == NilNode {
			return NilNode
		}
		completed = parent
	}
}
