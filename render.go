package loom

import "github.com/AnatoleLucet/loom/internal"

// Element describes one position of the tree: its kind, reconciliation
// key, props, and children. Elements are immutable; identity is by
// pointer, so describe a change by building a new element.
type Element = internal.Element

// El builds an element.
func El(kind string, props map[string]any, children ...*Element) *Element {
	return internal.El(kind, props, children...)
}

// Node is one reconciled position in a committed or in-progress tree.
type Node = internal.Fiber

// NodeID is a stable handle into a root's arena.
type NodeID = internal.NodeID

const NilNode = internal.NilNode

// EffectFlags describe the commit work pending on a node.
type EffectFlags = internal.Flags

const (
	Placement = internal.FlagPlacement
	Update    = internal.FlagUpdate
	Deletion  = internal.FlagDeletion
)

// Renderer is the platform collaborator invoked during commit: snapshot
// before mutation, apply each node effect, observe the mutated tree.
type Renderer = internal.Renderer

// Reconciler drives incremental reconciliation of one or more roots on
// top of a scheduler.
type Reconciler = internal.Reconciler

// NewReconciler ties a scheduler to a renderer.
func NewReconciler(s *Scheduler, r Renderer) *Reconciler {
	return internal.NewReconciler(s, r)
}

// Root anchors one tree: current and in-progress buffers, pending lanes,
// and at most one scheduled task at a time.
type Root = internal.Root

// RenderState tracks a root's pass through the work loop.
type RenderState = internal.RenderState

const (
	RenderIdle       = internal.RenderIdle
	RenderInProgress = internal.RenderInProgress
	RenderCompleted  = internal.RenderCompleted
	RenderCommitted  = internal.RenderCommitted
)
