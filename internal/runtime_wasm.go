//go:build wasm

package internal

import "sync"

var once sync.Once
var globalScheduler *Scheduler

func GetScheduler() *Scheduler {
	once.Do(func() {
		globalScheduler = NewScheduler()
	})

	return globalScheduler
}
