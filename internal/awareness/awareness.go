package awareness

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/coedit/internal/value"
)

// OutdatedTimeout is how long a remote peer's state survives without being
// renewed before SweepOutdated removes it.
const OutdatedTimeout = 30 * time.Second

// State is one peer's broadcast value.
type State = value.Object

// Change is the batch of peer ids affected by one mutation.
type Change struct {
	Added   []string
	Updated []string
	Removed []string
	// Origin tags the source: "local", "remote", "timeout".
	Origin string
}

// Empty reports whether the change lists no peer at all.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// NewPeerID returns a fresh time-sortable peer id (UUIDv7).
func NewPeerID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type meta struct {
	clock       uint64
	lastUpdated time.Time
}

// Awareness is the local replica of the presence state map.
//
// Thread-safety: none. Like the mirror doc it is owned by one goroutine.
type Awareness struct {
	local   string
	states  map[string]State
	meta    map[string]meta
	subs    map[int]func(Change)
	nextSub int
	now     func() time.Time
	timeout time.Duration
}

// Option configures an Awareness.
type Option func(*Awareness)

// WithNow overrides the wall clock used for outdated detection.
func WithNow(now func() time.Time) Option {
	return func(a *Awareness) {
		a.now = now
	}
}

// WithTimeout overrides OutdatedTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Awareness) {
		a.timeout = d
	}
}

// New creates an awareness replica for the local peer. The local entry
// starts out empty (present, with no fields).
func New(localID string, opts ...Option) *Awareness {
	a := &Awareness{
		local:   localID,
		states:  make(map[string]State),
		meta:    make(map[string]meta),
		subs:    make(map[int]func(Change)),
		now:     time.Now,
		timeout: OutdatedTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.states[localID] = State{}
	a.meta[localID] = meta{clock: 0, lastUpdated: a.now()}
	return a
}

// LocalID returns the local peer id.
func (a *Awareness) LocalID() string {
	return a.local
}

// LocalState returns the local entry, or nil when the local peer has gone
// offline via SetLocalState(nil).
func (a *Awareness) LocalState() State {
	return a.states[a.local]
}

// State returns the entry for peer.
func (a *Awareness) State(peer string) (State, bool) {
	s, ok := a.states[peer]
	return s, ok
}

// States returns a copy of the whole map, local entry included.
func (a *Awareness) States() map[string]State {
	out := make(map[string]State, len(a.states))
	for id, s := range a.states {
		out[id] = s
	}
	return out
}

// Peers returns the ids present in the map, sorted.
func (a *Awareness) Peers() []string {
	ids := make([]string, 0, len(a.states))
	for id := range a.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clock returns the last clock seen for peer.
func (a *Awareness) Clock(peer string) uint64 {
	return a.meta[peer].clock
}

// SetLocalState replaces the local entry and bumps the local clock.
// A nil state marks the local peer offline.
func (a *Awareness) SetLocalState(s State) {
	m := a.meta[a.local]
	prev, existed := a.states[a.local]

	if s == nil {
		delete(a.states, a.local)
	} else {
		a.states[a.local] = s
	}
	a.meta[a.local] = meta{clock: m.clock + 1, lastUpdated: a.now()}

	var ch Change
	ch.Origin = "local"
	switch {
	case s == nil && existed:
		ch.Removed = []string{a.local}
	case s != nil && !existed:
		ch.Added = []string{a.local}
	case s != nil && !value.Equal(prev, s):
		ch.Updated = []string{a.local}
	}
	a.emit(ch)
}

// SetLocalField sets one field of the local entry.
func (a *Awareness) SetLocalField(key string, v value.Value) {
	cur := a.states[a.local]
	next := make(State, len(cur)+1)
	for k, old := range cur {
		next[k] = old
	}
	next[key] = v
	a.SetLocalState(next)
}

// Entry is one peer's slot in an update.
type Entry struct {
	Peer  string
	Clock uint64
	// State is nil when the peer removed itself.
	State State
}

// Update carries entries for one or more peers.
type Update struct {
	Entries []Entry
}

// Snapshot builds an Update for the given peers, or for every known peer
// when none are named. Unknown ids become removal entries.
func (a *Awareness) Snapshot(peers ...string) Update {
	if len(peers) == 0 {
		peers = a.Peers()
	}
	u := Update{Entries: make([]Entry, 0, len(peers))}
	for _, id := range peers {
		u.Entries = append(u.Entries, Entry{
			Peer:  id,
			Clock: a.meta[id].clock,
			State: a.states[id],
		})
	}
	return u
}

// ApplyUpdate merges remote entries. An entry wins if its clock is newer
// than the stored one, or equal and it is a removal of a present peer. A
// removal of the local peer while it is online is answered by bumping the
// local clock instead, so the local entry wins the next round.
func (a *Awareness) ApplyUpdate(u Update, origin string) {
	now := a.now()
	ch := Change{Origin: origin}

	for _, e := range u.Entries {
		cur, known := a.meta[e.Peer]
		prev, present := a.states[e.Peer]

		if known && !(cur.clock < e.Clock || (cur.clock == e.Clock && e.State == nil && present)) {
			slog.Debug("stale awareness entry ignored",
				"peer_id", e.Peer,
				"clock", e.Clock,
				"current_clock", cur.clock,
			)
			continue
		}

		if e.State == nil {
			if e.Peer == a.local && present {
				// Someone declared us gone; reassert.
				a.meta[e.Peer] = meta{clock: e.Clock + 1, lastUpdated: now}
				ch.Updated = append(ch.Updated, e.Peer)
				continue
			}
			delete(a.states, e.Peer)
		} else {
			a.states[e.Peer] = e.State
		}
		a.meta[e.Peer] = meta{clock: e.Clock, lastUpdated: now}

		switch {
		case e.State == nil && present:
			ch.Removed = append(ch.Removed, e.Peer)
		case e.State != nil && !present:
			ch.Added = append(ch.Added, e.Peer)
		case e.State != nil && !value.Equal(prev, e.State):
			ch.Updated = append(ch.Updated, e.Peer)
		}
	}

	a.emit(ch)
}

// Remove drops remote peers, e.g. when the transport reports a disconnect.
// The local peer is never removed this way.
func (a *Awareness) Remove(peers ...string) {
	a.remove(peers, "remote")
}

func (a *Awareness) remove(peers []string, origin string) {
	ch := Change{Origin: origin}
	for _, id := range peers {
		if id == a.local {
			continue
		}
		if _, ok := a.states[id]; !ok {
			continue
		}
		delete(a.states, id)
		ch.Removed = append(ch.Removed, id)
	}
	a.emit(ch)
}

// SweepOutdated removes remote peers whose entry has not been renewed within
// the timeout and renews the local entry when half the timeout has passed.
// It returns the removed ids.
func (a *Awareness) SweepOutdated(now time.Time) []string {
	if local, ok := a.states[a.local]; ok {
		if now.Sub(a.meta[a.local].lastUpdated) >= a.timeout/2 {
			a.SetLocalState(local)
			m := a.meta[a.local]
			m.lastUpdated = now
			a.meta[a.local] = m
		}
	}

	var outdated []string
	for _, id := range a.Peers() {
		if id == a.local {
			continue
		}
		if now.Sub(a.meta[id].lastUpdated) >= a.timeout {
			outdated = append(outdated, id)
		}
	}
	if len(outdated) > 0 {
		slog.Info("removing outdated peers", "peer_count", len(outdated))
		a.remove(outdated, "timeout")
	}
	return outdated
}

// Subscribe registers fn for every non-empty Change. The returned function
// unregisters it.
func (a *Awareness) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		delete(a.subs, id)
	}
}

func (a *Awareness) emit(ch Change) {
	if ch.Empty() {
		return
	}
	ids := make([]int, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := a.subs[id]; ok {
			fn(ch)
		}
	}
}
