package internal

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// Scheduler owns the two task queues and drives the host-yield-aware work
// loop. All state lives on the instance so independent schedulers can
// coexist (one per test, typically).
//
// Locking follows the runtime discipline: mu guards every field, and is
// released around task callbacks so they can re-enter Schedule/Cancel.
type Scheduler struct {
	mu sync.Mutex

	profile Profile
	host    Host
	log     *logiface.Logger[logiface.Event]

	nextID TaskID

	// ready is ordered by expiration, delayed by start time.
	ready   taskHeap
	delayed taskHeap

	// state machine: idle, host callback scheduled, performing
	hostCallbackScheduled bool
	hostTimeoutScheduled  bool
	performing            bool

	currentTask     *Task
	currentPriority Priority

	// start of the current flush, for the frame-interval yield check
	frameStart time.Time
}

func NewScheduler(opts ...Option) *Scheduler {
	cfg := resolveOptions(opts)

	return &Scheduler{
		profile:         cfg.profile,
		host:            cfg.host,
		log:             cfg.logger,
		nextID:          1,
		currentPriority: PriorityNormal,
	}
}

func (s *Scheduler) Profile() Profile {
	return s.profile
}

func (s *Scheduler) Now() time.Time {
	return s.host.Now()
}

// TaskOptions tweak a single Schedule call.
type TaskOptions struct {
	// Delay keeps the task in the delayed queue until start = now + Delay.
	Delay time.Duration
	// Timeout overrides the priority-derived expiration timeout.
	Timeout time.Duration
}

// Schedule enqueues a callback at the given priority and returns its task
// handle. Delayed tasks go to the delayed queue and arm the host timer if
// they are now the earliest pending work; ready tasks request a host
// callback unless one is already scheduled or the loop is performing.
func (s *Scheduler) Schedule(priority Priority, callback TaskCallback, opts TaskOptions) *Task {
	if !priority.valid() {
		priority = PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.host.Now()

	start := now
	if opts.Delay > 0 {
		start = now.Add(opts.Delay)
	}

	timeout := s.profile.Timeout(priority)
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}

	t := &Task{
		id:         s.nextID,
		priority:   priority,
		callback:   callback,
		start:      start,
		expiration: start.Add(timeout),
	}
	s.nextID++

	if start.After(now) {
		t.sortIndex = start
		s.delayed.Push(t)

		// earliest delayed task with nothing ready: (re)arm the host timer
		if s.ready.Peek() == nil && t == s.delayed.Peek() {
			s.requestHostTimeout(start.Sub(now))
		}
	} else {
		t.sortIndex = t.expiration
		s.ready.Push(t)

		if !s.hostCallbackScheduled && !s.performing {
			s.hostCallbackScheduled = true
			s.host.Post(s.flushWork)
		}
	}

	s.log.Debug().
		Int64("task", int64(t.id)).
		Stringer("priority", priority).
		Dur("delay", opts.Delay).
		Log("task scheduled")

	return t
}

// Cancel clears the task's callback; the work loop discards it lazily when
// it reaches the heap root. Idempotent, safe on finished tasks.
func (s *Scheduler) Cancel(t *Task) {
	if t == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.callback != nil {
		s.log.Debug().Int64("task", int64(t.id)).Log("task cancelled")
	}
	t.callback = nil
}

// ShouldYield reports whether the running callback should hand control back
// to the host: true once the current frame's budget is spent.
func (s *Scheduler) ShouldYield() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldYield(s.host.Now())
}

func (s *Scheduler) shouldYield(now time.Time) bool {
	return now.Sub(s.frameStart) >= s.profile.FrameInterval
}

// CurrentPriority returns the priority of the executing task, or the
// ambient priority set by RunWithPriority.
func (s *Scheduler) CurrentPriority() Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPriority
}

// RunWithPriority runs fn with the ambient priority pinned, so work
// scheduled inside derives its urgency from the surrounding event.
func (s *Scheduler) RunWithPriority(priority Priority, fn func()) {
	if !priority.valid() {
		priority = PriorityNormal
	}

	s.mu.Lock()
	prev := s.currentPriority
	s.currentPriority = priority
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.currentPriority = prev
		s.mu.Unlock()
	}()

	fn()
}

// advanceTimers promotes every delayed task whose start has been reached
// into the ready queue, re-sorted by expiration. Cancelled delayed tasks
// are dropped here. Runs at the top of every loop iteration and whenever
// the host timer fires.
func (s *Scheduler) advanceTimers(now time.Time) {
	for {
		t := s.delayed.Peek()
		if t == nil {
			return
		}

		if t.callback == nil {
			s.delayed.Pop()
			continue
		}

		if t.start.After(now) {
			return
		}

		s.delayed.Pop()
		t.sortIndex = t.expiration
		s.ready.Push(t)
	}
}

func (s *Scheduler) requestHostTimeout(d time.Duration) {
	s.hostTimeoutScheduled = true
	s.host.StartTimer(d, s.handleTimeout)
}

// handleTimeout fires when the host timer expires. If the head delayed task
// was already promoted through another path this is a no-op apart from
// re-arming for whatever is next.
func (s *Scheduler) handleTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hostTimeoutScheduled = false
	now := s.host.Now()
	s.advanceTimers(now)

	if s.performing || s.hostCallbackScheduled {
		return
	}

	if s.ready.Peek() != nil {
		s.hostCallbackScheduled = true
		s.host.Post(s.flushWork)
	} else if t := s.delayed.Peek(); t != nil {
		s.requestHostTimeout(t.start.Sub(now))
	}
}

// flushWork is the host callback: runs the work loop for one frame and
// re-posts itself while ready work remains.
func (s *Scheduler) flushWork() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hostCallbackScheduled = false

	if s.hostTimeoutScheduled {
		// we'll re-arm below if anything is still delayed
		s.hostTimeoutScheduled = false
		s.host.StopTimer()
	}

	s.performing = true
	prev := s.currentPriority

	// restore a consistent state even if a callback panics; the panicking
	// task has already been detached from its callback so the heaps survive
	defer func() {
		s.currentTask = nil
		s.currentPriority = prev
		s.performing = false
	}()

	now := s.host.Now()
	s.frameStart = now

	if s.workLoop(now) {
		s.hostCallbackScheduled = true
		s.host.Post(s.flushWork)
	}
}

// runTask invokes a callback outside the lock. The deferred re-lock keeps
// the mutex balanced when the callback panics, so the panic reaches the
// host callback's caller with the heaps intact (the task was detached from
// its callback before the call).
func (s *Scheduler) runTask(callback TaskCallback, didTimeout bool) TaskResult {
	s.mu.Unlock()
	defer s.mu.Lock()
	return callback(didTimeout)
}

// workLoop executes ready tasks until the queue drains or the frame budget
// runs out. Expired tasks run regardless of the budget: that is the
// starvation bound. Returns whether ready work remains.
//
// mu is held on entry and exit, and released around each callback; the heap
// head is re-read after every callback since a re-entrant schedule or
// cancel may have changed it.
func (s *Scheduler) workLoop(now time.Time) bool {
	s.advanceTimers(now)
	s.currentTask = s.ready.Peek()

	for s.currentTask != nil {
		t := s.currentTask

		if t.expiration.After(now) && s.shouldYield(now) {
			// not expired yet and out of budget; resume on the next frame
			break
		}

		if t.callback != nil {
			callback := t.callback
			t.callback = nil
			s.currentPriority = t.priority
			didTimeout := !t.expiration.After(now)

			s.log.Trace().
				Int64("task", int64(t.id)).
				Bool("didTimeout", didTimeout).
				Log("task run")

			result := s.runTask(callback, didTimeout)

			now = s.host.Now()

			if result.next != nil {
				// unfinished: same task keeps the heap slot with the
				// replacement callback
				t.callback = result.next
			} else if s.ready.Peek() == t {
				s.ready.Pop()
			}

			s.advanceTimers(now)
		} else {
			s.ready.Pop()
		}

		s.currentTask = s.ready.Peek()
	}

	if s.currentTask != nil {
		return true
	}

	if t := s.delayed.Peek(); t != nil {
		s.requestHostTimeout(t.start.Sub(now))
	}
	return false
}
