package presence

import "time"

// View receives the visual side effects. Targets are element ids of the
// canonical graph.
type View interface {
	RenderCursor(peer string, at Point, color string)
	RemoveCursor(peer string)

	AddHighlight(peer, target, color string)
	RemoveHighlight(peer, target string)

	StartEditing(peer, target, color string)
	PulseEditing(peer, target string)
	StopEditing(peer, target string)

	RaiseChanged(peer, target, color string)
	ClearChanged(peer, target string)

	// MirrorHighlight and UnmirrorHighlight act on the local user's own
	// highlight while shadowing.
	MirrorHighlight(target string)
	UnmirrorHighlight(target string)
}

// Graph answers whether an element id exists in the canonical document.
type Graph interface {
	HasTarget(id string) bool
}

// GraphFunc adapts a function to Graph.
type GraphFunc func(id string) bool

// HasTarget calls f(id).
func (f GraphFunc) HasTarget(id string) bool {
	return f(id)
}

// AnyTarget is a Graph in which every id exists.
var AnyTarget = GraphFunc(func(string) bool { return true })

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it
	// before it ran.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}
