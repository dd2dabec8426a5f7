// Package presence turns the awareness map of remote peers into visual side
// effects: cursors, highlights, editing markers and change pulses.
//
// A Protocol tracks every remote peer it has seen. Each incoming record is
// diffed field by field against the last tracked record for that peer, and
// only the difference produces calls on the View. Feeding an identical
// record twice does nothing. When a peer disappears, its record is diffed
// against the cleared record, so every visual effect it had active is undone
// explicitly, and its timers are cancelled.
//
// Shadow mode lets the local user follow one peer: while shadowing, that
// peer's editing target is mirrored into a local highlight and its code
// editor openings are re-emitted as Signals.
//
// Protocol is not safe for concurrent use. Callers serialize all calls,
// including timer callbacks, onto one goroutine (see package session).
package presence
