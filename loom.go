// Package loom is a cooperative, priority-aware, interruptible work
// scheduler paired with an incremental tree reconciler. Long tree-diffing
// work is split into node-sized units, prioritized by lanes, paused when
// the frame budget runs out, resumed exactly where it stopped, and
// preempted by more urgent work without losing correctness.
package loom

import (
	"io"
	"time"

	"github.com/AnatoleLucet/loom/internal"
)

// Priority is a discrete urgency level for scheduled tasks.
type Priority = internal.Priority

const (
	Immediate    = internal.PriorityImmediate
	UserBlocking = internal.PriorityUserBlocking
	Normal       = internal.PriorityNormal
	Low          = internal.PriorityLow
	Idle         = internal.PriorityIdle
)

// Lanes is a bitset of priority channels for pending tree updates.
type Lanes = internal.Lanes

const (
	NoLanes             = internal.NoLanes
	SyncLane            = internal.SyncLane
	InputContinuousLane = internal.InputContinuousLane
	DefaultLane         = internal.DefaultLane
	TransitionLane      = internal.TransitionLane
	RetryLane           = internal.RetryLane
	IdleLane            = internal.IdleLane
)

// Scheduler owns the task queues and the host-yield-aware work loop.
// Instances are independent; create one per test if needed.
type Scheduler = internal.Scheduler

// NewScheduler creates a scheduler instance.
func NewScheduler(opts ...Option) *Scheduler {
	return internal.NewScheduler(opts...)
}

// TaskResult is the outcome of a task callback: finished, or unfinished
// with a continuation to run under the same task.
type TaskResult = internal.TaskResult

// Done reports a task callback as finished.
func Done() TaskResult { return internal.Done() }

// Continue reports a task callback as unfinished; next runs under the
// same task entry, keeping its place in the queue.
func Continue(next func(didTimeout bool) TaskResult) TaskResult {
	return internal.Continue(next)
}

// TaskHandle identifies a scheduled task for cancellation.
type TaskHandle = internal.Task

// TaskOptions tweak a single Schedule call.
type TaskOptions = internal.TaskOptions

// Option configures a Scheduler.
type Option = internal.Option

var (
	WithProfile       = internal.WithProfile
	WithFrameInterval = internal.WithFrameInterval
	WithHost          = internal.WithHost
	WithLogger        = internal.WithLogger
)

// Profile is the timing policy: frame budget and per-priority timeouts.
type Profile = internal.Profile

// ErrInvalidProfile marks profile decode failures; match with errors.Is.
var ErrInvalidProfile = internal.ErrInvalidProfile

func DefaultProfile() Profile { return internal.DefaultProfile() }

// LoadProfile decodes a TOML timing profile.
func LoadProfile(r io.Reader) (Profile, error) { return internal.LoadProfile(r) }

// Host abstracts the clock, the continuation post, and the delayed-task
// timer the scheduler runs on.
type Host = internal.Host

// ManualHost is a single-goroutine host with virtual time, for tests.
type ManualHost = internal.ManualHost

func NewManualHost(start time.Time) *ManualHost { return internal.NewManualHost(start) }

// Schedule enqueues a callback on the calling goroutine's default
// scheduler.
func Schedule(priority Priority, callback func(didTimeout bool) TaskResult, opts TaskOptions) *TaskHandle {
	return internal.GetScheduler().Schedule(priority, callback, opts)
}

// Cancel cancels a task on the calling goroutine's default scheduler.
func Cancel(t *TaskHandle) {
	internal.GetScheduler().Cancel(t)
}

// ShouldYield consults the calling goroutine's default scheduler.
func ShouldYield() bool {
	return internal.GetScheduler().ShouldYield()
}
