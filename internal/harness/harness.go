package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/presence"
	"github.com/roach88/coedit/internal/session"
	"github.com/roach88/coedit/internal/store"
	"github.com/roach88/coedit/internal/testutil"
	"github.com/roach88/coedit/internal/value"
)

// Harness drives one session through a scenario.
//
// Everything runs on the calling goroutine: steps are enqueued and drained
// synchronously and timers fire from the manual scheduler, so two runs of
// the same scenario produce the same trace.
type Harness struct {
	sess   *session.Session
	store  *store.Store
	sink   *traceSink
	sched  *testutil.ManualScheduler
	clock  *testutil.DeterministicClock
	view   *testutil.RecordingView
	clocks map[string]uint64
	logger *slog.Logger
}

// traceSink records every mirror op before persisting the update.
type traceSink struct {
	store *store.Store
	ops   []mirror.Op
}

func (s *traceSink) AppendUpdate(ctx context.Context, docID string, u mirror.Update) error {
	s.ops = append(s.ops, u.Ops...)
	return s.store.AppendUpdate(ctx, docID, u)
}

func (s *traceSink) take() []mirror.Op {
	out := s.ops
	s.ops = nil
	return out
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error covers setup failures only; step and assertion failures
// are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs("row")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", i+1, err))
		}
	}

	actx, err := h.finalState(ctx, result)
	if err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store) (*Harness, error) {
	clock := testutil.NewDeterministicClock()
	h := &Harness{
		store:  st,
		sink:   &traceSink{store: st},
		sched:  testutil.NewManualScheduler(clock),
		clock:  clock,
		view:   testutil.NewRecordingView(),
		clocks: make(map[string]uint64),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	var protoOpts []presence.Option
	if scenario.ChangedPulse != "" {
		d, err := time.ParseDuration(scenario.ChangedPulse)
		if err != nil {
			return nil, fmt.Errorf("changed_pulse: %w", err)
		}
		protoOpts = append(protoOpts, presence.WithChangedPulse(d))
	}
	if scenario.EditingPulse != "" {
		d, err := time.ParseDuration(scenario.EditingPulse)
		if err != nil {
			return nil, fmt.Errorf("editing_pulse: %w", err)
		}
		protoOpts = append(protoOpts, presence.WithEditingPulse(d))
	}

	opts := []session.Option{
		session.WithSink(h.sink),
		session.WithScheduler(h.sched),
		session.WithLogger(h.logger),
		session.WithSweepInterval(0),
		session.WithPresenceOptions(protoOpts...),
		session.WithAwarenessOptions(awareness.WithNow(clock.Now)),
	}
	if scenario.Graph != nil {
		nodes := make(map[string]struct{}, len(scenario.Graph))
		for _, id := range scenario.Graph {
			nodes[id] = struct{}{}
		}
		opts = append(opts, session.WithGraph(presence.GraphFunc(func(id string) bool {
			_, ok := nodes[id]
			return ok
		})))
	}

	local := scenario.Local
	if local == "" {
		local = DefaultLocal
	}
	h.sess = session.New(local, h.view, opts...)
	h.view.WatchSignals(h.sess.Signals())
	return h, nil
}

// executeStep applies one step and appends what it caused to the trace:
// the note first, then mirror ops, then view effects.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	if step.Note != "" {
		result.add(n, TraceNote, step.Note)
	}

	var err error
	switch {
	case step.Presence != nil:
		err = h.publish(step.Presence.Peer, step.Presence.State)
	case step.Leave != "":
		err = h.publish(step.Leave, nil)
	case len(step.Remove) > 0:
		h.sess.EnqueuePeersGone(step.Remove...)
	case step.Advance != "":
		var d time.Duration
		if d, err = time.ParseDuration(step.Advance); err == nil {
			// Timers fire outside the queue, so settle it first.
			err = h.sess.Drain(ctx)
			h.sched.Advance(d)
		}
	case step.Sweep:
		h.sess.Enqueue(session.Event{Type: session.EventTypeSweep, Now: h.clock.Now()})
	case step.Shadow != "":
		h.sess.Shadow(step.Shadow)
	case step.StopShadowing:
		h.sess.StopShadowing()
	case step.Snapshot != nil:
		h.sess.EnqueueSnapshot(step.Snapshot)
	default:
		return fmt.Errorf("no action given")
	}

	if err == nil {
		err = h.sess.Drain(ctx)
	}

	for _, op := range h.sink.take() {
		result.add(n, TraceOp, op.String())
	}
	for _, effect := range h.view.Take() {
		result.add(n, TraceEffect, effect)
	}

	h.logger.Debug("step executed", "step", n, "trace_len", len(result.Trace))
	return err
}

// publish sends a peer's state over the wire codec with the peer's next
// clock. A nil state is the peer removing itself.
func (h *Harness) publish(peer string, state map[string]any) error {
	h.clocks[peer]++
	entry := awareness.Entry{Peer: peer, Clock: h.clocks[peer]}

	if state != nil {
		v, err := value.FromGo(state)
		if err != nil {
			return fmt.Errorf("presence state for %s: %w", peer, err)
		}
		obj, ok := v.(value.Object)
		if !ok {
			return fmt.Errorf("presence state for %s is %s, want object", peer, value.KindOf(v))
		}
		entry.State = obj
	}

	data, err := awareness.Encode(awareness.Update{Entries: []awareness.Entry{entry}})
	if err != nil {
		return err
	}
	return h.sess.EnqueueRemote(data)
}

// finalState captures the session state for assertions and checks that
// replaying the persisted log reproduces the live mirror.
func (h *Harness) finalState(ctx context.Context, result *Result) (*AssertionContext, error) {
	actx := &AssertionContext{}
	h.sess.Inspect(func(st *session.State) {
		actx.Mirror = st.Mirror()
		actx.Shadow = st.Presence().Shadow()
		actx.Tracked = st.Presence().Tracked()
	})
	for _, ev := range result.Trace {
		if ev.Type == TraceOp {
			actx.Ops++
		}
	}

	replayed, err := h.store.Replay(ctx, session.DefaultRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to replay store: %w", err)
	}
	if got := mirror.Materialize(replayed.Map(session.DefaultRoot)); !value.Equal(got, actx.Mirror) {
		result.AddError("replayed update log diverges from the live mirror")
	}

	result.State["mirror"] = value.ToGo(actx.Mirror)
	result.State["shadow"] = actx.Shadow.Peer
	result.State["tracked"] = actx.Tracked
	return actx, nil
}
