package internal

// NodeID is a stable handle into an arena. Tree links (parent, child,
// sibling, alternate) are NodeIDs rather than pointers, so the current and
// in-progress trees form two index graphs with no reference cycles and the
// commit-time buffer swap is a single index write at the root.
type NodeID int32

const NilNode NodeID = -1

type Tag uint8

const (
	// TagRoot anchors a tree; its rendered element lives in its update
	// queue state, like any other piece of node state.
	TagRoot Tag = iota
	TagElement
)

type Flags uint16

const (
	FlagNone          Flags = 0
	FlagPlacement     Flags = 1 << 0
	FlagUpdate        Flags = 1 << 1
	FlagDeletion      Flags = 1 << 2
	FlagChildDeletion Flags = 1 << 3
	FlagCallback      Flags = 1 << 4
	FlagSnapshot      Flags = 1 << 5
	FlagContentReset  Flags = 1 << 6

	mutationFlags = FlagPlacement | FlagUpdate | FlagDeletion | FlagContentReset
)

// Fiber is one position in a tree being reconciled: a node of either the
// current tree or its in-progress shadow counterpart (the alternate).
type Fiber struct {
	id  NodeID
	tag Tag

	kind string
	key  string

	pendingProps *Element
	memoProps    *Element
	memoState    any

	queue *UpdateQueue

	flags      Flags
	lanes      Lanes
	childLanes Lanes

	parent    NodeID
	child     NodeID
	sibling   NodeID
	alternate NodeID
	index     int32

	// children of this (pre-mutation) node to detach at commit
	deletions []NodeID

	// commit effect list, threaded through completed fibers
	firstEffect NodeID
	lastEffect  NodeID
	nextEffect  NodeID

	// renderer-owned handle (host instance, buffer slot, ...)
	instance any
}

func (f *Fiber) ID() NodeID        { return f.id }
func (f *Fiber) Kind() string      { return f.kind }
func (f *Fiber) Key() string       { return f.key }
func (f *Fiber) Index() int        { return int(f.index) }
func (f *Fiber) IsRoot() bool      { return f.tag == TagRoot }
func (f *Fiber) Props() *Element   { return f.memoProps }
func (f *Fiber) State() any        { return f.memoState }
func (f *Fiber) Lanes() Lanes      { return f.lanes }
func (f *Fiber) Instance() any     { return f.instance }
func (f *Fiber) SetInstance(v any) { f.instance = v }

func (f *Fiber) Parent() NodeID  { return f.parent }
func (f *Fiber) Child() NodeID   { return f.child }
func (f *Fiber) Sibling() NodeID { return f.sibling }

// Arena allocates fibers and resolves NodeIDs. Slots are pointers so a
// *Fiber stays valid across later allocations; the indices are what the
// tree is made of.
type Arena struct {
	nodes []*Fiber
	free  []NodeID
}

func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) Get(id NodeID) *Fiber {
	if id == NilNode {
		return nil
	}
	return a.nodes[id]
}

func (a *Arena) alloc(tag Tag, kind, key string) NodeID {
	var id NodeID
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
		*a.nodes[id] = Fiber{}
	} else {
		id = NodeID(len(a.nodes))
		a.nodes = append(a.nodes, &Fiber{})
	}

	f := a.nodes[id]
	f.id = id
	f.tag = tag
	f.kind = kind
	f.key = key
	f.parent = NilNode
	f.child = NilNode
	f.sibling = NilNode
	f.alternate = NilNode
	f.firstEffect = NilNode
	f.lastEffect = NilNode
	f.nextEffect = NilNode

	return id
}

// release returns one fiber slot to the free list. The caller is
// responsible for having detached it first.
func (a *Arena) release(id NodeID) {
	if id == NilNode {
		return
	}
	a.free = append(a.free, id)
}

// releaseTree releases a fiber, its alternate, and every descendant of
// both buffers.
//
// Buffers release pairwise: a node frees its own alternate without walking
// the alternate's children. That chain is either this node's own chain,
// shared when the node bailed out, or clones paired one-to-one with the
// children walked below, so walking one chain covers both buffers and each
// slot enters the free list exactly once.
func (a *Arena) releaseTree(id NodeID) {
	if id == NilNode {
		return
	}

	f := a.Get(id)
	if alt := f.alternate; alt != NilNode {
		a.Get(alt).alternate = NilNode
		f.alternate = NilNode
		a.release(alt)
	}

	for child := f.child; child != NilNode; {
		next := a.Get(child).sibling
		a.releaseTree(child)
		child = next
	}
	f.child = NilNode

	a.release(id)
}

// createWorkInProgress returns current's shadow counterpart for the next
// commit, reusing the alternate buffer when one exists (double buffering).
// The two buffers point at each other through alternate and never at a
// third node.
func (a *Arena) createWorkInProgress(current NodeID, pendingProps *Element) NodeID {
	cur := a.Get(current)

	wipID := cur.alternate
	if wipID == NilNode {
		wipID = a.alloc(cur.tag, cur.kind, cur.key)
		wip := a.Get(wipID)
		wip.alternate = current
		wip.instance = cur.instance
		cur.alternate = wipID
	} else {
		wip := a.Get(wipID)
		wip.flags = FlagNone
		wip.deletions = nil
		wip.firstEffect = NilNode
		wip.lastEffect = NilNode
		wip.nextEffect = NilNode
		wip.kind = cur.kind
		wip.key = cur.key
	}

	wip := a.Get(wipID)
	wip.pendingProps = pendingProps
	wip.memoProps = cur.memoProps
	wip.memoState = cur.memoState
	wip.lanes = cur.lanes
	wip.childLanes = cur.childLanes
	wip.child = cur.child
	wip.sibling = cur.sibling
	wip.parent = cur.parent
	wip.index = cur.index
	wip.instance = cur.instance
	wip.queue = cloneUpdateQueue(cur.queue)

	return wipID
}
