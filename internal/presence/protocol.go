package presence

import (
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/value"
)

const (
	// ChangedPulseDuration is how long a change pulse stays raised.
	ChangedPulseDuration = 2000 * time.Millisecond

	// EditingPulseInterval is the period of the editing marker pulse.
	EditingPulseInterval = 800 * time.Millisecond
)

// ShadowState records which peer, if any, the local user is following.
type ShadowState struct {
	Enabled bool
	Peer    string
}

// peer is the tracked state of one remote peer.
type peer struct {
	id string

	// record is the last diffed record. Changed is the exception: it holds
	// the value the pulse logic last reacted to.
	record Record

	cursorShown bool
	cursorAt    Point
	cursorColor string

	highlighted map[string]struct{}

	editTimer    Timer
	changedTimer Timer
}

// Protocol reconciles remote presence records with the View.
type Protocol struct {
	localID string
	view    View
	graph   Graph
	sched   Scheduler
	logger  *slog.Logger

	changedPulse time.Duration
	editingPulse time.Duration

	peers   map[string]*peer
	shadow  ShadowState
	signals Signals
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) {
		p.logger = l
	}
}

// WithChangedPulse overrides ChangedPulseDuration.
func WithChangedPulse(d time.Duration) Option {
	return func(p *Protocol) {
		p.changedPulse = d
	}
}

// WithEditingPulse overrides EditingPulseInterval. Zero disables pulsing.
func WithEditingPulse(d time.Duration) Option {
	return func(p *Protocol) {
		p.editingPulse = d
	}
}

// New creates a Protocol for the local peer. A nil graph accepts every
// target.
func New(localID string, view View, graph Graph, sched Scheduler, opts ...Option) *Protocol {
	if graph == nil {
		graph = AnyTarget
	}
	p := &Protocol{
		localID:      localID,
		view:         view,
		graph:        graph,
		sched:        sched,
		logger:       slog.Default(),
		changedPulse: ChangedPulseDuration,
		editingPulse: EditingPulseInterval,
		peers:        make(map[string]*peer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Signals returns the streams emitted while shadowing.
func (p *Protocol) Signals() *Signals {
	return &p.signals
}

// Shadow returns the current shadow state.
func (p *Protocol) Shadow() ShadowState {
	return p.shadow
}

// Tracked returns the ids of tracked peers, sorted.
func (p *Protocol) Tracked() []string {
	ids := make([]string, 0, len(p.peers))
	for id := range p.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Record returns the last tracked record for a peer.
func (p *Protocol) Record(peerID string) (Record, bool) {
	ps, ok := p.peers[peerID]
	if !ok {
		return Record{}, false
	}
	return ps.record, true
}

// Init reconciles against the full state map, e.g. after (re)connecting.
// Present peers are tracked or diffed; tracked peers that are gone are torn
// down.
func (p *Protocol) Init(states map[string]value.Object) {
	ids := make([]string, 0, len(states))
	for id := range states {
		if id != p.localID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		p.apply(id, states[id])
	}
	for _, id := range p.Tracked() {
		if _, ok := states[id]; !ok {
			p.teardown(id)
		}
	}
}

// HandleChange applies one awareness change batch. states is the awareness
// map after the change.
func (p *Protocol) HandleChange(ch awareness.Change, states map[string]value.Object) {
	for _, id := range ch.Added {
		if id == p.localID {
			continue
		}
		p.apply(id, states[id])
	}
	for _, id := range ch.Removed {
		if _, present := states[id]; present {
			continue
		}
		p.teardown(id)
	}
	for _, id := range ch.Updated {
		if id == p.localID {
			continue
		}
		p.apply(id, states[id])
	}
}

func (p *Protocol) apply(id string, state value.Object) {
	ps, ok := p.peers[id]
	if !ok {
		ps = &peer{id: id}
		p.peers[id] = ps
		p.logger.Debug("tracking peer", "peer_id", id)
	}
	p.diff(ps, DecodeRecord(state))
}

// teardown undoes every visual effect of a peer and forgets it.
func (p *Protocol) teardown(id string) {
	ps, ok := p.peers[id]
	if !ok {
		return
	}

	p.diff(ps, Record{})

	if ps.changedTimer != nil {
		ps.changedTimer.Stop()
		ps.changedTimer = nil
		p.view.ClearChanged(id, ps.record.Changed)
	}
	p.stopPulse(ps)

	if p.shadow.Enabled && p.shadow.Peer == id {
		p.logger.Info("shadowed peer left", "peer_id", id)
		p.StopShadowing()
	}

	delete(p.peers, id)
	p.logger.Debug("peer torn down", "peer_id", id)
}

func (p *Protocol) diff(ps *peer, next Record) {
	prev := ps.record

	p.diffCursor(ps, next)
	p.diffHighlights(ps, next)
	p.diffEditing(ps, prev, next)
	changed := p.diffChanged(ps, prev, next)
	p.diffEditingCode(ps, prev, next)

	next.Changed = changed
	ps.record = next
}

func cursorVisible(r Record) bool {
	return r.IsActive && r.Cursor != nil && r.Color() != ""
}

func (p *Protocol) diffCursor(ps *peer, next Record) {
	if !cursorVisible(next) {
		if ps.cursorShown {
			p.view.RemoveCursor(ps.id)
			ps.cursorShown = false
		}
		return
	}
	at, color := *next.Cursor, next.Color()
	if ps.cursorShown && at == ps.cursorAt && color == ps.cursorColor {
		return
	}
	p.view.RenderCursor(ps.id, at, color)
	ps.cursorShown, ps.cursorAt, ps.cursorColor = true, at, color
}

func (p *Protocol) diffHighlights(ps *peer, next Record) {
	want := make(map[string]struct{}, len(next.Highlighted))
	for _, id := range next.Highlighted {
		if id != "" {
			want[id] = struct{}{}
		}
	}

	for _, id := range sortedSet(ps.highlighted) {
		if _, keep := want[id]; !keep {
			p.view.RemoveHighlight(ps.id, id)
		}
	}
	for _, id := range sortedSet(want) {
		if _, had := ps.highlighted[id]; !had {
			p.view.AddHighlight(ps.id, id, next.Color())
		}
	}

	if len(want) == 0 {
		ps.highlighted = nil
		return
	}
	ps.highlighted = want
}

func (p *Protocol) diffEditing(ps *peer, prev, next Record) {
	if prev.CurrentlyEditing == next.CurrentlyEditing {
		return
	}
	shadowed := p.shadowing(ps.id)

	if old := prev.CurrentlyEditing; old != "" {
		p.stopPulse(ps)
		if p.graph.HasTarget(old) {
			p.view.StopEditing(ps.id, old)
			if shadowed {
				p.view.UnmirrorHighlight(old)
			}
		}
	}

	if target := next.CurrentlyEditing; target != "" && p.graph.HasTarget(target) {
		p.view.StartEditing(ps.id, target, next.Color())
		p.startPulse(ps, target)
		if shadowed {
			p.view.MirrorHighlight(target)
		}
	}
}

// diffChanged reacts to a new truthy change value and returns the value to
// track. A cleared value does not reset the tracked one.
func (p *Protocol) diffChanged(ps *peer, prev, next Record) string {
	target := next.Changed
	if target == "" || target == prev.Changed {
		return prev.Changed
	}

	if ps.changedTimer != nil {
		ps.changedTimer.Stop()
		ps.changedTimer = nil
		p.view.ClearChanged(ps.id, prev.Changed)
	}

	p.view.RaiseChanged(ps.id, target, next.Color())
	if p.sched == nil {
		return target
	}
	ps.changedTimer = p.sched.AfterFunc(p.changedPulse, func() {
		if p.peers[ps.id] != ps || ps.record.Changed != target {
			return
		}
		ps.changedTimer = nil
		p.view.ClearChanged(ps.id, target)
		ps.record.Changed = ""
	})
	return target
}

func (p *Protocol) diffEditingCode(ps *peer, prev, next Record) {
	if prev.EditingCode == next.EditingCode || !p.shadowing(ps.id) {
		return
	}
	if next.EditingCode {
		if next.CurrentlyEditing != "" {
			p.signals.CodeEditorOpened.emit(CodeEditorEvent{Peer: ps.id, Target: next.CurrentlyEditing})
		}
		return
	}
	target := next.CurrentlyEditing
	if target == "" {
		target = prev.CurrentlyEditing
	}
	if target != "" {
		p.signals.CodeEditorClosed.emit(CodeEditorEvent{Peer: ps.id, Target: target})
	}
}

func (p *Protocol) startPulse(ps *peer, target string) {
	if p.sched == nil || p.editingPulse <= 0 {
		return
	}
	var tick func()
	tick = func() {
		if p.peers[ps.id] != ps || ps.record.CurrentlyEditing != target {
			return
		}
		p.view.PulseEditing(ps.id, target)
		ps.editTimer = p.sched.AfterFunc(p.editingPulse, tick)
	}
	ps.editTimer = p.sched.AfterFunc(p.editingPulse, tick)
}

func (p *Protocol) stopPulse(ps *peer) {
	if ps.editTimer != nil {
		ps.editTimer.Stop()
		ps.editTimer = nil
	}
}

func (p *Protocol) shadowing(id string) bool {
	return p.shadow.Enabled && p.shadow.Peer == id
}

// ShadowCoeditor starts following a tracked peer. Its current editing
// target is mirrored and an open code editor is re-emitted. Following a
// different peer first stops the current shadow. It reports false for an
// unknown peer.
func (p *Protocol) ShadowCoeditor(peerID string) bool {
	ps, ok := p.peers[peerID]
	if !ok {
		p.logger.Warn("cannot shadow untracked peer", "peer_id", peerID)
		return false
	}
	if p.shadowing(peerID) {
		return true
	}
	if p.shadow.Enabled {
		p.StopShadowing()
	}

	p.shadow = ShadowState{Enabled: true, Peer: peerID}
	p.logger.Info("shadowing peer", "peer_id", peerID)

	target := ps.record.CurrentlyEditing
	if target == "" {
		return true
	}
	if p.graph.HasTarget(target) {
		p.view.MirrorHighlight(target)
	}
	if ps.record.EditingCode {
		p.signals.CodeEditorOpened.emit(CodeEditorEvent{Peer: peerID, Target: target})
	}
	return true
}

// StopShadowing leaves shadow mode. Calling it when not shadowing is a
// no-op.
func (p *Protocol) StopShadowing() {
	if !p.shadow.Enabled {
		return
	}
	p.logger.Info("stopped shadowing", "peer_id", p.shadow.Peer)
	p.shadow = ShadowState{}
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
