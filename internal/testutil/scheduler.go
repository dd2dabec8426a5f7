package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/coedit/internal/presence"
)

// ManualScheduler is a presence.Scheduler driven by a DeterministicClock.
// Callbacks run synchronously inside Advance, in due-time order, with ties
// broken by scheduling order.
type ManualScheduler struct {
	mu      sync.Mutex
	clock   *DeterministicClock
	pending []*ManualTimer
	seq     int
}

// ManualTimer is a timer created by ManualScheduler.
type ManualTimer struct {
	s       *ManualScheduler
	due     time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManualScheduler creates a scheduler. A nil clock gets a fresh one.
func NewManualScheduler(clock *DeterministicClock) *ManualScheduler {
	if clock == nil {
		clock = NewDeterministicClock()
	}
	return &ManualScheduler{clock: clock}
}

// Clock returns the scheduler's clock.
func (s *ManualScheduler) Clock() *DeterministicClock {
	return s.clock
}

// AfterFunc implements presence.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) presence.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &ManualTimer{s: s, due: s.clock.Now().Add(d), seq: s.seq, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Stop implements presence.Timer.
func (t *ManualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the number of live timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers scheduled by callbacks during the advance.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.clock.Now().Add(d)
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		if wait := t.due.Sub(s.clock.Now()); wait > 0 {
			s.clock.Advance(wait)
		}
		t.fn()
	}
	if wait := target.Sub(s.clock.Now()); wait > 0 {
		s.clock.Advance(wait)
	}
}

// nextDue pops the earliest live timer due at or before limit and marks it
// fired.
func (s *ManualScheduler) nextDue(limit time.Time) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.pending[:0]
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.pending = live

	sort.SliceStable(s.pending, func(i, j int) bool {
		if !s.pending[i].due.Equal(s.pending[j].due) {
			return s.pending[i].due.Before(s.pending[j].due)
		}
		return s.pending[i].seq < s.pending[j].seq
	})
	if len(s.pending) == 0 || s.pending[0].due.After(limit) {
		return nil
	}
	t := s.pending[0]
	t.fired = true
	s.pending = s.pending[1:]
	return t
}
