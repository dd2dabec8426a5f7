package presence

import "sort"

// CodeEditorEvent is emitted while shadowing a peer that opens or closes the
// code editor of its editing target.
type CodeEditorEvent struct {
	Peer   string
	Target string
}

// Signal is a synchronous multicast stream.
type Signal[T any] struct {
	subs map[int]func(T)
	next int
}

// Subscribe registers fn. The returned function unregisters it.
func (s *Signal[T]) Subscribe(fn func(T)) (cancel func()) {
	if s.subs == nil {
		s.subs = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		delete(s.subs, id)
	}
}

func (s *Signal[T]) emit(v T) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := s.subs[id]; ok {
			fn(v)
		}
	}
}

// Signals groups the streams a Protocol emits.
type Signals struct {
	CodeEditorOpened Signal[CodeEditorEvent]
	CodeEditorClosed Signal[CodeEditorEvent]
}
