package internal

// reconcileChildren diffs the current children of a node against the new
// child elements and builds the work-in-progress child chain. Children
// match by key when they have one, by position otherwise, and only when
// the kind agrees; matched children are cloned via the double buffer,
// unmatched elements mount as placements, and leftover current children
// are queued for deletion on the parent.
func reconcileChildren(a *Arena, returnFiber, currentFirstChild NodeID, newChildren []*Element) {
	ret := a.Get(returnFiber)

	var olds []NodeID
	byKey := make(map[string]int)
	for id := currentFirstChild; id != NilNode; id = a.Get(id).sibling {
		if key := a.Get(id).key; key != "" {
			byKey[key] = len(olds)
		}
		olds = append(olds, id)
	}
	matched := make([]bool, len(olds))

	firstNew := NilNode
	prevNew := NilNode

	for i, el := range newChildren {
		oldPos := -1
		if el.Key != "" {
			// a key matches at most once; a duplicate falls through to a
			// fresh mount instead of aliasing the same fiber
			if pos, ok := byKey[el.Key]; ok && !matched[pos] && a.Get(olds[pos]).kind == el.Kind {
				oldPos = pos
			}
		} else if i < len(olds) {
			if old := a.Get(olds[i]); old.key == "" && old.kind == el.Kind {
				oldPos = i
			}
		}

		var childID NodeID
		if oldPos >= 0 {
			matched[oldPos] = true
			childID = a.createWorkInProgress(olds[oldPos], el)
			child := a.Get(childID)
			child.key = el.Key
			if int(a.Get(olds[oldPos]).index) != i {
				// moved within its siblings; the renderer must reposition
				child.flags |= FlagPlacement
			}
		} else {
			childID = a.alloc(TagElement, el.Kind, el.Key)
			child := a.Get(childID)
			child.pendingProps = el
			child.queue = NewUpdateQueue(nil)
			child.flags |= FlagPlacement
		}

		child := a.Get(childID)
		child.parent = returnFiber
		child.index = int32(i)
		child.sibling = NilNode

		if prevNew == NilNode {
			firstNew = childID
		} else {
			a.Get(prevNew).sibling = childID
		}
		prevNew = childID
	}

	for pos, id := range olds {
		if matched[pos] {
			continue
		}
		a.Get(id).flags |= FlagDeletion
		ret.deletions = append(ret.deletions, id)
		ret.flags |= FlagChildDeletion
	}

	ret.child = firstNew
}

// cloneChildFibers clones the current child chain onto a bailed-out
// work-in-progress node that still has descendant work, so traversal can
// descend without re-rendering this level.
func cloneChildFibers(a *Arena, wip NodeID) {
	w := a.Get(wip)
	if w.child == NilNode {
		return
	}

	cur := w.child
	cloned := a.createWorkInProgress(cur, a.Get(cur).pendingProps)
	w.child = cloned
	a.Get(cloned).parent = wip

	for {
		next := a.Get(cur).sibling
		if next == NilNode {
			a.Get(cloned).sibling = NilNode
			return
		}

		sib := a.createWorkInProgress(next, a.Get(next).pendingProps)
		a.Get(cloned).sibling = sib
		a.Get(sib).parent = wip

		cur = next
		cloned = sib
	}
}
