package internal

import "time"

type UpdateTag int

const (
	// UpdateMerge shallow-merges the payload (or the payload function's
	// result) into the node state.
	UpdateMerge UpdateTag = iota
	// UpdateReplace replaces the node state with the payload.
	UpdateReplace
	// UpdateForce re-renders without touching state.
	UpdateForce
)

// Update is a single state-mutation request. Updates chain through next;
// on the shared queue they form a circular list until they're spliced into
// a base list at processing time.
type Update struct {
	eventTime time.Time
	lane      Lanes
	tag       UpdateTag

	// merge/replace value, or func(prev any) any
	payload any

	// invoked after the commit that applies this update
	callback func()

	next *Update
}

func NewUpdate(eventTime time.Time, lane Lanes, tag UpdateTag, payload any, callback func()) *Update {
	return &Update{
		eventTime: eventTime,
		lane:      lane,
		tag:       tag,
		payload:   payload,
		callback:  callback,
	}
}

// sharedQueue is the landing zone for freshly enqueued updates. It is
// shared between a fiber and its alternate so an update enqueued between
// render passes is visible to both buffers.
type sharedQueue struct {
	pending *Update
}

// UpdateQueue carries a node's base state and the updates not yet folded
// into it. firstBase..lastBase is the singly-linked base list, consumed in
// FIFO order.
type UpdateQueue struct {
	baseState any

	firstBase *Update
	lastBase  *Update

	shared *sharedQueue

	// applied updates with completion callbacks, drained at commit
	effects []*Update

	forced bool
}

func NewUpdateQueue(baseState any) *UpdateQueue {
	return &UpdateQueue{
		baseState: baseState,
		shared:    &sharedQueue{},
	}
}

// cloneUpdateQueue gives a work-in-progress fiber its own queue view while
// keeping the shared pending list, mirroring the double-buffered tree.
func cloneUpdateQueue(q *UpdateQueue) *UpdateQueue {
	if q == nil {
		return nil
	}
	return &UpdateQueue{
		baseState: q.baseState,
		firstBase: q.firstBase,
		lastBase:  q.lastBase,
		shared:    q.shared,
	}
}

// Enqueue appends an update to the shared pending list. The list is
// circular while pending: shared.pending is the tail, tail.next the head.
func (q *UpdateQueue) Enqueue(u *Update) {
	if pending := q.shared.pending; pending == nil {
		u.next = u
	} else {
		u.next = pending.next
		pending.next = u
	}
	q.shared.pending = u
}

// processUpdateQueue folds pending updates into the fiber's state for this
// render pass.
//
// An update whose lane is outside renderLanes is skipped: cloned onto the
// carried-forward base list and its lane merged back into the fiber's lanes
// so a later pass revisits it. Once something has been skipped, every later
// update is also carried (with no lane, so it always re-applies) and the
// base state rewinds to the value before the first skip; replaying from
// there keeps skipped and later-applied updates in original submission
// order. Applied updates reduce in FIFO order and their callbacks queue for
// commit.
func (q *UpdateQueue) processUpdateQueue(a *Arena, f *Fiber, renderLanes Lanes) (applied bool) {
	q.forced = false

	// splice the pending circular list onto the end of the base list, and
	// onto the alternate's base list, so a restarted pass from either
	// buffer still sees these updates
	if pending := q.shared.pending; pending != nil {
		q.shared.pending = nil

		last := pending
		first := pending.next
		last.next = nil

		q.appendBase(first, last)

		if alt := a.Get(f.alternate); alt != nil && alt.queue != nil && alt.queue != q {
			if alt.queue.lastBase != last {
				alt.queue.appendBase(first, last)
			}
		}
	}

	if q.firstBase == nil {
		return
	}

	newState := q.baseState
	newLanes := NoLanes

	newBaseState := q.baseState
	var firstCarried, lastCarried *Update

	for u := q.firstBase; u != nil; u = u.next {
		if !renderLanes.IsSupersetOf(u.lane) {
			// out of lane: carry it forward instead of applying
			clone := &Update{
				eventTime: u.eventTime,
				lane:      u.lane,
				tag:       u.tag,
				payload:   u.payload,
				callback:  u.callback,
			}
			if lastCarried == nil {
				firstCarried = clone
				newBaseState = newState
			} else {
				lastCarried.next = clone
			}
			lastCarried = clone

			newLanes = newLanes.Merge(u.lane)
			continue
		}

		if lastCarried != nil {
			// already carrying: this update still applies now, but must
			// also replay after the skipped one, with no lane so no
			// future pass can skip it again
			clone := &Update{
				eventTime: u.eventTime,
				lane:      NoLanes,
				tag:       u.tag,
				payload:   u.payload,
			}
			lastCarried.next = clone
			lastCarried = clone
		}

		newState = q.apply(u, newState)
		applied = true

		if u.callback != nil {
			f.flags |= FlagCallback
			q.effects = append(q.effects, u)
		}
	}

	if lastCarried == nil {
		newBaseState = newState
	}

	q.baseState = newBaseState
	q.firstBase = firstCarried
	q.lastBase = lastCarried

	f.lanes = newLanes
	f.memoState = newState
	return applied
}

// appendBase links a terminated chain onto this queue's base list.
func (q *UpdateQueue) appendBase(first, last *Update) {
	if q.lastBase == nil {
		q.firstBase = first
	} else {
		q.lastBase.next = first
	}
	q.lastBase = last
}

func (q *UpdateQueue) apply(u *Update, prev any) any {
	switch u.tag {
	case UpdateReplace:
		return resolvePayload(u.payload, prev)
	case UpdateForce:
		q.forced = true
		return prev
	default:
		return mergeState(prev, resolvePayload(u.payload, prev))
	}
}

func resolvePayload(payload, prev any) any {
	if fn, ok := payload.(func(prev any) any); ok {
		return fn(prev)
	}
	return payload
}

// mergeState shallow-merges partial into prev when both are string-keyed
// maps; otherwise partial wins. A nil partial keeps prev untouched.
func mergeState(prev, partial any) any {
	if partial == nil {
		return prev
	}

	prevMap, ok := prev.(map[string]any)
	if !ok {
		return partial
	}
	partialMap, ok := partial.(map[string]any)
	if !ok {
		return partial
	}

	merged := make(map[string]any, len(prevMap)+len(partialMap))
	for k, v := range prevMap {
		merged[k] = v
	}
	for k, v := range partialMap {
		merged[k] = v
	}
	return merged
}

// hasPending reports whether anything could still change state on a pass
// with the given lanes.
func (q *UpdateQueue) hasPending() bool {
	return q != nil && (q.shared.pending != nil || q.firstBase != nil)
}

// drainEffects returns and clears the applied-update callbacks.
func (q *UpdateQueue) drainEffects() []*Update {
	effects := q.effects
	q.effects = nil
	return effects
}
