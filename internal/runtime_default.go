//go:build !wasm

package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

var schedulers sync.Map

// GetScheduler returns the calling goroutine's default scheduler, creating
// it on first use. Explicitly constructed schedulers are independent of
// this map.
func GetScheduler() *Scheduler {
	gid := getGID()

	if s, ok := schedulers.Load(gid); ok {
		return s.(*Scheduler)
	}

	s := NewScheduler()
	schedulers.Store(gid, s)
	return s
}

func getGID() int64 {
	return goid.Get()
}
