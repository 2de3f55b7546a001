package internal

import (
	"sync"
	"time"
)

// Host is what the scheduler runs on top of: a clock, a way to get a
// callback invoked promptly on a fresh turn of the host's loop, and a
// single re-armable one-shot timer for delayed tasks.
type Host interface {
	Now() time.Time

	// Post schedules fn to run soon, off the caller's stack. The scheduler
	// keeps at most one continuation in flight at a time.
	Post(fn func())

	// StartTimer arms the one-shot timer, replacing any previously armed one.
	StartTimer(d time.Duration, fn func())
	StopTimer()
}

// channelHost runs posted callbacks serially on a dedicated goroutine.
// Posting to a channel is the closest Go analog to a zero-latency message
// port: control returns to the caller immediately and the callback runs on
// the next turn of the host goroutine, without timer latency.
type channelHost struct {
	once sync.Once
	ch   chan func()

	mu    sync.Mutex
	timer *time.Timer
}

func NewHost() Host {
	return &channelHost{
		// the scheduler has at most one continuation and one timer callback
		// outstanding, the buffer only needs to absorb those
		ch: make(chan func(), 16),
	}
}

func (h *channelHost) start() {
	h.once.Do(func() {
		go func() {
			for fn := range h.ch {
				fn()
			}
		}()
	})
}

func (h *channelHost) Now() time.Time {
	return time.Now()
}

func (h *channelHost) Post(fn func()) {
	h.start()
	h.ch <- fn
}

func (h *channelHost) StartTimer(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(d, func() {
		h.Post(fn)
	})
}

func (h *channelHost) StopTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// ManualHost is a deterministic host with virtual time, for tests.
// Posted callbacks queue until RunNext/Flush, the timer fires from Advance.
// Not safe for concurrent use; drive it from a single goroutine.
type ManualHost struct {
	now    time.Time
	posted []func()

	timerAt  time.Time
	timerFn  func()
	hasTimer bool
}

func NewManualHost(start time.Time) *ManualHost {
	return &ManualHost{now: start}
}

func (h *ManualHost) Now() time.Time {
	return h.now
}

func (h *ManualHost) Post(fn func()) {
	h.posted = append(h.posted, fn)
}

func (h *ManualHost) StartTimer(d time.Duration, fn func()) {
	h.timerAt = h.now.Add(d)
	h.timerFn = fn
	h.hasTimer = true
}

func (h *ManualHost) StopTimer() {
	h.timerFn = nil
	h.hasTimer = false
}

// Advance moves virtual time forward, firing the timer (and anything it
// re-arms) along the way.
func (h *ManualHost) Advance(d time.Duration) {
	target := h.now.Add(d)

	for h.hasTimer && !h.timerAt.After(target) {
		h.now = h.timerAt
		fn := h.timerFn
		h.hasTimer = false
		h.timerFn = nil
		fn()
	}

	h.now = target
}

// RunNext runs the oldest posted callback, reporting whether one existed.
func (h *ManualHost) RunNext() bool {
	if len(h.posted) == 0 {
		return false
	}

	fn := h.posted[0]
	h.posted = h.posted[1:]
	fn()
	return true
}

// Flush runs posted callbacks until none remain, including ones posted
// while flushing.
func (h *ManualHost) Flush() {
	for h.RunNext() {
	}
}

// Pending reports how many posted callbacks are waiting.
func (h *ManualHost) Pending() int {
	return len(h.posted)
}
