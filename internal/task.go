package internal

import "time"

type TaskID int64

// TaskCallback is one unit of schedulable work. didTimeout reports whether
// the task's expiration had already passed when it was invoked.
type TaskCallback func(didTimeout bool) TaskResult

// TaskResult tells the work loop whether a task finished or wants to keep
// running under the same task entry with a replacement callback.
type TaskResult struct {
	next TaskCallback
}

func Done() TaskResult {
	return TaskResult{}
}

func Continue(next TaskCallback) TaskResult {
	return TaskResult{next: next}
}

// Task is one entry in the scheduler's queues.
// A task lives in exactly one of: the ready queue (sorted by expiration),
// the delayed queue (sorted by start), or the currently-executing slot.
type Task struct {
	id       TaskID
	priority Priority

	// nil callback marks a cancelled task; the work loop discards it lazily
	// instead of searching the heap.
	callback TaskCallback

	start      time.Time
	expiration time.Time
	sortIndex  time.Time
}

func (t *Task) ID() TaskID         { return t.id }
func (t *Task) Priority() Priority { return t.priority }
