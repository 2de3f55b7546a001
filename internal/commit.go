package internal

// commitEntry is one effect-list node captured for a commit sub-phase.
type commitEntry struct {
	node  *Fiber
	flags Flags
}

// commitRoot applies a finished shadow tree: snapshot, mutation, flip,
// after-mutation. The whole phase is non-interruptible; the only places
// the lock drops are the renderer hooks and update callbacks, which may
// re-enter with fresh updates.
func (rc *Reconciler) commitRoot(root *Root) {
	a := root.arena
	finished := root.finished
	fw := a.Get(finished)

	rc.sched.log.Debug().
		Uint64("lanes", uint64(root.finishedLanes)).
		Log("commit")

	// lanes that survive this commit: whatever the finished tree still
	// carries (skipped updates, lower-priority work)
	remaining := fw.lanes.Merge(fw.childLanes)
	root.pendingLanes = remaining
	root.suspendedLanes &= remaining
	root.pingedLanes &= remaining
	root.expiredLanes &= remaining
	(^remaining & (1<<laneWidth - 1)).each(func(lane Lanes) bool {
		idx := lane.Index()
		root.eventTimes[idx] = zeroTime
		root.expirationTimes[idx] = zeroTime
		return true
	})

	// the root fiber itself joins the end of its own effect list when
	// flagged
	if fw.flags != FlagNone || len(fw.deletions) > 0 {
		if fw.lastEffect != NilNode {
			a.Get(fw.lastEffect).nextEffect = finished
		} else {
			fw.firstEffect = finished
		}
		fw.lastEffect = finished
	}

	var snapshot, mutation, layout []commitEntry
	var deleted []NodeID
	var callbacks []func()

	for id := fw.firstEffect; id != NilNode; {
		f := a.Get(id)

		if f.flags&FlagChildDeletion != 0 {
			for _, del := range f.deletions {
				mutation = append(mutation, commitEntry{a.Get(del), FlagDeletion})
				deleted = append(deleted, del)
			}
		}
		if f.flags&FlagSnapshot != 0 {
			snapshot = append(snapshot, commitEntry{f, f.flags})
		}
		if f.flags&mutationFlags != 0 && f.flags&FlagDeletion == 0 {
			mutation = append(mutation, commitEntry{f, f.flags})
		}
		if f.flags&(FlagCallback|FlagUpdate|FlagPlacement) != 0 {
			layout = append(layout, commitEntry{f, f.flags})
		}
		if f.flags&FlagCallback != 0 && f.queue != nil {
			for _, u := range f.queue.drainEffects() {
				if u.callback != nil {
					callbacks = append(callbacks, u.callback)
				}
			}
		}

		next := f.nextEffect
		f.nextEffect = NilNode
		id = next
	}

	renderer := rc.renderer

	// before-mutation: the previous tree is still current
	rc.unlocked(func() {
		for _, e := range snapshot {
			renderer.BeforeMutation(e.node)
		}

		// mutation: deletions and placements/updates in effect order
		for _, e := range mutation {
			renderer.Mutate(e.node, e.flags)
		}
	})

	// flip: the finished tree becomes current before any after-mutation
	// hook can observe it
	root.current = finished
	root.state = RenderCommitted

	rc.unlocked(func() {
		for _, e := range layout {
			renderer.AfterMutation(e.node)
		}
		for _, fn := range callbacks {
			fn()
		}
	})

	// drop both buffers of every deleted subtree, then clear effect
	// bookkeeping on the committed tree
	for _, del := range deleted {
		a.releaseTree(del)
	}
	for _, e := range mutation {
		e.node.flags = FlagNone
		e.node.deletions = nil
	}
	for _, e := range layout {
		e.node.flags = FlagNone
	}
	fw.flags = FlagNone
	fw.deletions = nil
	fw.firstEffect = NilNode
	fw.lastEffect = NilNode

	root.finished = NilNode
	root.finishedLanes = NoLanes
}
