package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/coedit/internal/presence"
)

// Effect is one recorded View call or signal.
type Effect struct {
	Kind   string          `json:"kind"`
	Peer   string          `json:"peer,omitempty"`
	Target string          `json:"target,omitempty"`
	Color  string          `json:"color,omitempty"`
	At     *presence.Point `json:"at,omitempty"`
}

// String renders the effect as Kind(args...), omitting empty arguments.
func (e Effect) String() string {
	var args []string
	for _, a := range []string{e.Peer, e.Target} {
		if a != "" {
			args = append(args, a)
		}
	}
	if e.At != nil {
		args = append(args, strconv.FormatFloat(e.At.X, 'g', -1, 64)+","+strconv.FormatFloat(e.At.Y, 'g', -1, 64))
	}
	if e.Color != "" {
		args = append(args, e.Color)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, strings.Join(args, ", "))
}

// RecordingView is a presence.View that records every call in order.
//
// Thread-safety: safe for concurrent use.
type RecordingView struct {
	mu      sync.Mutex
	effects []Effect
}

var _ presence.View = (*RecordingView)(nil)

// NewRecordingView creates an empty recorder.
func NewRecordingView() *RecordingView {
	return &RecordingView{}
}

func (v *RecordingView) record(e Effect) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.effects = append(v.effects, e)
}

// Effects returns a copy of the recorded effects.
func (v *RecordingView) Effects() []Effect {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Effect, len(v.effects))
	copy(out, v.effects)
	return out
}

// Strings returns the recorded effects in String form.
func (v *RecordingView) Strings() []string {
	effects := v.Effects()
	out := make([]string, len(effects))
	for i, e := range effects {
		out[i] = e.String()
	}
	return out
}

// Take returns the recorded effects in String form and clears the log.
func (v *RecordingView) Take() []string {
	out := v.Strings()
	v.Reset()
	return out
}

// Reset clears the log.
func (v *RecordingView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.effects = nil
}

// WatchSignals records code editor signals into the same log.
func (v *RecordingView) WatchSignals(s *presence.Signals) (cancel func()) {
	stopOpened := s.CodeEditorOpened.Subscribe(func(e presence.CodeEditorEvent) {
		v.record(Effect{Kind: "CodeEditorOpened", Peer: e.Peer, Target: e.Target})
	})
	stopClosed := s.CodeEditorClosed.Subscribe(func(e presence.CodeEditorEvent) {
		v.record(Effect{Kind: "CodeEditorClosed", Peer: e.Peer, Target: e.Target})
	})
	return func() {
		stopOpened()
		stopClosed()
	}
}

func (v *RecordingView) RenderCursor(peer string, at presence.Point, color string) {
	v.record(Effect{Kind: "RenderCursor", Peer: peer, At: &at, Color: color})
}

func (v *RecordingView) RemoveCursor(peer string) {
	v.record(Effect{Kind: "RemoveCursor", Peer: peer})
}

func (v *RecordingView) AddHighlight(peer, target, color string) {
	v.record(Effect{Kind: "AddHighlight", Peer: peer, Target: target, Color: color})
}

func (v *RecordingView) RemoveHighlight(peer, target string) {
	v.record(Effect{Kind: "RemoveHighlight", Peer: peer, Target: target})
}

func (v *RecordingView) StartEditing(peer, target, color string) {
	v.record(Effect{Kind: "StartEditing", Peer: peer, Target: target, Color: color})
}

func (v *RecordingView) PulseEditing(peer, target string) {
	v.record(Effect{Kind: "PulseEditing", Peer: peer, Target: target})
}

func (v *RecordingView) StopEditing(peer, target string) {
	v.record(Effect{Kind: "StopEditing", Peer: peer, Target: target})
}

func (v *RecordingView) RaiseChanged(peer, target, color string) {
	v.record(Effect{Kind: "RaiseChanged", Peer: peer, Target: target, Color: color})
}

func (v *RecordingView) ClearChanged(peer, target string) {
	v.record(Effect{Kind: "ClearChanged", Peer: peer, Target: target})
}

func (v *RecordingView) MirrorHighlight(target string) {
	v.record(Effect{Kind: "MirrorHighlight", Target: target})
}

func (v *RecordingView) UnmirrorHighlight(target string) {
	v.record(Effect{Kind: "UnmirrorHighlight", Target: target})
}
