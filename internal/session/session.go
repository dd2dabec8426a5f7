package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/patcher"
	"github.com/roach88/coedit/internal/presence"
	"github.com/roach88/coedit/internal/value"
)

// DefaultRoot is the mirror root map that snapshots are synced into.
const DefaultRoot = "state"

// UpdateSink receives every mirror update produced by a snapshot or merged
// from another replica.
// Implemented by store.Store.
type UpdateSink interface {
	AppendUpdate(ctx context.Context, docID string, u mirror.Update) error
}

// Session is the single-writer loop around one collaborative document.
//
// Thread-safety model:
//   - Enqueue*, Call and Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Session struct {
	docID string
	root  string

	doc   *mirror.Doc
	aw    *awareness.Awareness
	proto *presence.Protocol
	queue *eventQueue

	sink      UpdateSink
	broadcast func([]byte)
	shipOps   func(mirror.Update)
	logger    *slog.Logger

	sched        presence.Scheduler
	graph        presence.Graph
	protoOpts    []presence.Option
	awOpts       []awareness.Option
	sweepEvery   time.Duration
	pendingOps   []mirror.Update
	cancelUpdate func()
}

// Option configures a Session.
type Option func(*Session)

// WithDocID names the document in the update sink. Defaults to the root name.
func WithDocID(id string) Option {
	return func(s *Session) { s.docID = id }
}

// WithRoot sets the mirror root map name.
func WithRoot(name string) Option {
	return func(s *Session) { s.root = name }
}

// WithSink persists mirror updates.
func WithSink(sink UpdateSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithBroadcast is called with the encoded local awareness entry every time
// the local presence changes.
func WithBroadcast(fn func([]byte)) Option {
	return func(s *Session) { s.broadcast = fn }
}

// WithOpBroadcast is called with every local mirror update, for the
// transport to deliver to other replicas (see EnqueueRemoteOps).
func WithOpBroadcast(fn func(mirror.Update)) Option {
	return func(s *Session) { s.shipOps = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithScheduler replaces the loop-backed timer scheduler. A replacement
// must invoke callbacks on the loop goroutine, e.g. from within Call.
func WithScheduler(sched presence.Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

// WithGraph sets the canonical graph used to validate editing targets.
func WithGraph(g presence.Graph) Option {
	return func(s *Session) { s.graph = g }
}

// WithPresenceOptions passes options through to the presence protocol.
func WithPresenceOptions(opts ...presence.Option) Option {
	return func(s *Session) { s.protoOpts = append(s.protoOpts, opts...) }
}

// WithAwarenessOptions passes options through to the awareness map.
func WithAwarenessOptions(opts ...awareness.Option) Option {
	return func(s *Session) { s.awOpts = append(s.awOpts, opts...) }
}

// WithSweepInterval sets how often Run sweeps outdated peers. Zero disables
// the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Session) { s.sweepEvery = d }
}

// New creates a session for the local peer rendering into view.
func New(localID string, view presence.View, opts ...Option) *Session {
	s := &Session{
		root:       DefaultRoot,
		doc:        mirror.NewDoc(mirror.WithActor(localID)),
		queue:      newEventQueue(),
		logger:     slog.Default(),
		sweepEvery: awareness.OutdatedTimeout / 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.docID == "" {
		s.docID = s.root
	}
	if s.sched == nil {
		s.sched = &loopScheduler{queue: s.queue}
	}

	s.aw = awareness.New(localID, s.awOpts...)
	protoOpts := append([]presence.Option{presence.WithLogger(s.logger)}, s.protoOpts...)
	s.proto = presence.New(localID, view, s.graph, s.sched, protoOpts...)

	s.aw.Subscribe(func(ch awareness.Change) {
		s.proto.HandleChange(ch, s.aw.States())
	})
	s.cancelUpdate = s.doc.OnUpdate(func(u mirror.Update) {
		s.pendingOps = append(s.pendingOps, u)
	})
	return s
}

// Signals exposes the presence signal streams. Subscribers are called on
// the loop goroutine.
func (s *Session) Signals() *presence.Signals {
	return s.proto.Signals()
}

// Enqueue submits an event. Returns false once the session has stopped.
func (s *Session) Enqueue(ev Event) bool {
	return s.queue.Enqueue(ev)
}

// EnqueueSnapshot submits a new local state snapshot.
func (s *Session) EnqueueSnapshot(snapshot any) bool {
	return s.Enqueue(Event{Type: EventTypeSnapshot, Snapshot: snapshot})
}

// EnqueueRemoteOps submits mirror ops another replica recorded. Updates
// from one replica must be enqueued in the order it produced them.
func (s *Session) EnqueueRemoteOps(u mirror.Update) bool {
	return s.Enqueue(Event{Type: EventTypeRemoteOps, Ops: u})
}

// EnqueueRemote submits an encoded awareness update received from a peer.
func (s *Session) EnqueueRemote(data []byte) error {
	u, err := awareness.DecodeUpdate(data)
	if err != nil {
		return err
	}
	if !s.Enqueue(Event{Type: EventTypeRemotePresence, Presence: u}) {
		return errQueueClosed
	}
	return nil
}

// EnqueueLocalPresence replaces the local presence record.
func (s *Session) EnqueueLocalPresence(rec presence.Record) bool {
	return s.Enqueue(Event{Type: EventTypeLocalPresence, Local: rec.Encode()})
}

// EnqueuePeersGone reports peers the transport lost.
func (s *Session) EnqueuePeersGone(peers ...string) bool {
	return s.Enqueue(Event{Type: EventTypePeersGone, Peers: peers})
}

// Shadow starts following a peer.
func (s *Session) Shadow(peer string) bool {
	return s.Enqueue(Event{Type: EventTypeShadow, Peer: peer})
}

// StopShadowing leaves shadow mode.
func (s *Session) StopShadowing() bool {
	return s.Enqueue(Event{Type: EventTypeStopShadow})
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (s *Session) Call(ctx context.Context, fn func(*State)) error {
	done := make(chan struct{})
	ev := Event{Type: EventTypeCall, done: done, call: func() { fn(&State{s: s}) }}
	if !s.Enqueue(ev) {
		return errQueueClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State is the loop-owned view handed to Call. It must not escape fn.
type State struct {
	s *Session
}

// Doc returns the mirror document.
func (st *State) Doc() *mirror.Doc { return st.s.doc }

// Mirror returns the materialized root map.
func (st *State) Mirror() value.Value {
	return mirror.Materialize(st.s.doc.Map(st.s.root))
}

// Awareness returns the awareness map.
func (st *State) Awareness() *awareness.Awareness { return st.s.aw }

// Presence returns the presence protocol.
func (st *State) Presence() *presence.Protocol { return st.s.proto }

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// On event processing failure the error is logged and processing continues.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting", "doc_id", s.docID, "peer_id", s.aw.LocalID())
	defer s.cancelUpdate()

	s.proto.Init(s.aw.States())

	if s.sweepEvery > 0 {
		ticker := time.NewTicker(s.sweepEvery)
		stopSweep := make(chan struct{})
		defer func() {
			ticker.Stop()
			close(stopSweep)
		}()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopSweep:
					return
				case now := <-ticker.C:
					if !s.queue.Enqueue(Event{Type: EventTypeSweep, Now: now}) {
						return
					}
				}
			}
		}()
	}

	for {
		event, ok := s.queue.TryDequeue()
		if ok {
			if err := s.processEvent(ctx, event); err != nil {
				s.logger.Error("event processing failed",
					"event", event.Type.String(),
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case _, open := <-s.queue.Wait():
			// A buffered signal may outlive the events it announced; only
			// a closed signal channel ends the loop.
			if !open && s.queue.Len() == 0 {
				s.logger.Info("session stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes every queued event on the calling goroutine, including
// events queued while draining, and returns the processing errors joined.
// It must not be used while Run is active.
func (s *Session) Drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		ev, ok := s.queue.TryDequeue()
		if !ok {
			return errors.Join(errs...)
		}
		if err := s.processEvent(ctx, ev); err != nil {
			s.logger.Error("event processing failed",
				"event", ev.Type.String(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
}

// Inspect runs fn against the loop state on the calling goroutine. Like
// Drain it must not be used while Run is active.
func (s *Session) Inspect(fn func(*State)) {
	fn(&State{s: s})
}

// Stop closes the queue, which causes Run to return once drained.
func (s *Session) Stop() {
	s.queue.Close()
}

// processEvent routes an event to its handler. Loop goroutine only.
func (s *Session) processEvent(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventTypeSnapshot:
		return s.processSnapshot(ctx, ev.Snapshot)

	case EventTypeRemotePresence:
		s.aw.ApplyUpdate(ev.Presence, "remote")
		return nil

	case EventTypeRemoteOps:
		return s.processRemoteOps(ctx, ev.Ops)

	case EventTypeLocalPresence:
		s.aw.SetLocalState(ev.Local)
		return s.broadcastLocal()

	case EventTypePeersGone:
		s.aw.Remove(ev.Peers...)
		return nil

	case EventTypeTimer:
		if ev.timer == nil {
			return newUnknownEventError(ev.Type, "timer event missing timer")
		}
		ev.timer.fire()
		return nil

	case EventTypeShadow:
		if !s.proto.ShadowCoeditor(ev.Peer) {
			s.logger.Warn("shadow request ignored", "peer_id", ev.Peer)
		}
		return nil

	case EventTypeStopShadow:
		s.proto.StopShadowing()
		return nil

	case EventTypeSweep:
		if removed := s.aw.SweepOutdated(ev.Now); len(removed) > 0 {
			s.logger.Debug("outdated peers swept", "peer_count", len(removed))
		}
		return s.broadcastLocal()

	case EventTypeCall:
		if ev.call == nil {
			return newUnknownEventError(ev.Type, "call event missing function")
		}
		defer close(ev.done)
		ev.call()
		return nil

	default:
		return newUnknownEventError(ev.Type, fmt.Sprintf("unknown event type: %d", ev.Type))
	}
}

// processSnapshot syncs a snapshot into the mirror and hands the resulting
// updates to the sink.
func (s *Session) processSnapshot(ctx context.Context, snapshot any) error {
	s.pendingOps = s.pendingOps[:0]

	if err := patcher.SyncRoot(s.doc, s.root, "local", snapshot); err != nil {
		return newPatchError(err)
	}

	opCount := 0
	for _, u := range s.pendingOps {
		opCount += len(u.Ops)
	}
	s.logger.Debug("snapshot mirrored", "doc_id", s.docID, "op_count", opCount)

	if err := s.persistPending(ctx); err != nil {
		return err
	}
	if s.shipOps != nil {
		for _, u := range s.pendingOps {
			s.shipOps(u)
		}
	}
	return nil
}

// processRemoteOps merges ops from another replica and persists the ones
// that were new.
func (s *Session) processRemoteOps(ctx context.Context, u mirror.Update) error {
	s.pendingOps = s.pendingOps[:0]

	applied, err := patcher.ApplyUpdate(s.doc, u)
	// Ops merged before a failure are in the mirror and must reach the log.
	if perr := s.persistPending(ctx); perr != nil {
		return perr
	}
	if err != nil {
		return newMergeError(err)
	}
	s.logger.Debug("remote ops merged",
		"doc_id", s.docID,
		"op_count", len(u.Ops),
		"applied_count", applied,
	)
	return nil
}

func (s *Session) persistPending(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	for _, u := range s.pendingOps {
		if err := s.sink.AppendUpdate(ctx, s.docID, u); err != nil {
			return fmt.Errorf("append update for %s: %w", s.docID, err)
		}
	}
	return nil
}

func (s *Session) broadcastLocal() error {
	if s.broadcast == nil {
		return nil
	}
	data, err := s.aw.EncodeUpdate(s.aw.LocalID())
	if err != nil {
		return fmt.Errorf("encode local presence: %w", err)
	}
	s.broadcast(data)
	return nil
}
