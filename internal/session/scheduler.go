package session

import (
	"sync/atomic"
	"time"

	"github.com/roach88/coedit/internal/presence"
)

// loopScheduler is a presence.Scheduler backed by wall-clock timers whose
// callbacks are delivered as loop events.
type loopScheduler struct {
	queue *eventQueue
}

type loopTimer struct {
	t       *time.Timer
	fn      func()
	stopped atomic.Bool
	fired   atomic.Bool
}

// AfterFunc implements presence.Scheduler.
func (s *loopScheduler) AfterFunc(d time.Duration, fn func()) presence.Timer {
	lt := &loopTimer{fn: fn}
	lt.t = time.AfterFunc(d, func() {
		s.queue.Enqueue(Event{Type: EventTypeTimer, timer: lt})
	})
	return lt
}

// Stop implements presence.Timer. A timer whose event is already queued is
// still cancelled.
func (lt *loopTimer) Stop() bool {
	lt.t.Stop()
	if lt.fired.Load() {
		return false
	}
	return lt.stopped.CompareAndSwap(false, true)
}

// fire runs the callback unless the timer was stopped. Loop goroutine only.
func (lt *loopTimer) fire() {
	if lt.stopped.Load() {
		return
	}
	lt.fired.Store(true)
	lt.fn()
}
