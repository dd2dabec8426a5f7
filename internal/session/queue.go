package session

import (
	"sync"
	"time"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/value"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeSnapshot carries a new local state snapshot to mirror.
	EventTypeSnapshot EventType = iota + 1
	// EventTypeRemotePresence carries an awareness update from a peer.
	EventTypeRemotePresence
	// EventTypeLocalPresence replaces the local awareness state.
	EventTypeLocalPresence
	// EventTypePeersGone reports peers the transport lost.
	EventTypePeersGone
	// EventTypeTimer fires a presence timer callback.
	EventTypeTimer
	// EventTypeShadow starts following a peer.
	EventTypeShadow
	// EventTypeStopShadow leaves shadow mode.
	EventTypeStopShadow
	// EventTypeSweep removes outdated peers.
	EventTypeSweep
	// EventTypeCall runs a function on the loop.
	EventTypeCall
	// EventTypeRemoteOps carries mirror ops recorded by another replica.
	EventTypeRemoteOps
)

var eventTypeNames = map[EventType]string{
	EventTypeSnapshot:       "snapshot",
	EventTypeRemotePresence: "remote_presence",
	EventTypeLocalPresence:  "local_presence",
	EventTypePeersGone:      "peers_gone",
	EventTypeTimer:          "timer",
	EventTypeShadow:         "shadow",
	EventTypeStopShadow:     "stop_shadow",
	EventTypeSweep:          "sweep",
	EventTypeCall:           "call",
	EventTypeRemoteOps:      "remote_ops",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is one unit of loop work. Only the fields for its Type are set.
type Event struct {
	Type EventType

	Snapshot any
	Presence awareness.Update
	Local    value.Object
	Peers    []string
	Peer     string
	Now      time.Time
	Ops      mirror.Update

	timer *loopTimer
	call  func()
	done  chan struct{}
}

// eventQueue is a thread-safe unbounded FIFO queue for events.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Release the slot so snapshots and callbacks can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
