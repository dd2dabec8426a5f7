package cli

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/presence"
	"github.com/roach88/coedit/internal/session"
)

// PresenceOptions holds flags for the presence command.
type PresenceOptions struct {
	*RootOptions
	Local  string
	Graph  []string
	Shadow string
	Linger time.Duration
}

// PresenceResult summarizes a presence run.
type PresenceResult struct {
	Local    string   `json:"local"`
	Updates  int      `json:"updates"`
	Rejected int      `json:"rejected"`
	Effects  []string `json:"effects"`
	Tracked  []string `json:"tracked"`
	Shadow   string   `json:"shadow,omitempty"`
}

// NewPresenceCommand creates the presence command.
func NewPresenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PresenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "presence [updates.jsonl]",
		Short: "Render a stream of awareness updates",
		Long: `Feed awareness updates, one JSON wire update per line, through a live
session and print every rendering effect they cause. Reads stdin when no
file (or "-") is given.

Timings come from the presence and awareness sections of the config.
--linger keeps the session running after the input ends so pulses and
timeouts can play out.

Examples:
  coedit presence updates.jsonl
  coedit presence --graph op-1,op-2 --linger 3s updates.jsonl
  tail -f peers.jsonl | coedit presence --shadow p1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open updates", err)
				}
				defer file.Close()
				in = file
			}
			return runPresence(ctx, opts, in, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Local, "local", "", "local peer id (default: a fresh UUIDv7)")
	cmd.Flags().StringSliceVar(&opts.Graph, "graph", nil, "node ids of the canonical graph (default: accept every target)")
	cmd.Flags().StringVar(&opts.Shadow, "shadow", "", "shadow this peer as soon as it appears")
	cmd.Flags().DurationVar(&opts.Linger, "linger", 0, "keep running this long after the input ends")

	return cmd
}

func runPresence(ctx context.Context, opts *PresenceOptions, in io.Reader, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	cfg, err := opts.Settings()
	if err != nil {
		return err
	}

	local := opts.Local
	if local == "" {
		local = awareness.NewPeerID()
	}

	view := &lineView{}
	if !f.JSON() {
		view.w = f.Writer
	}

	sessOpts := []session.Option{
		session.WithLogger(slog.Default()),
		session.WithPresenceOptions(cfg.PresenceOptions()...),
		session.WithAwarenessOptions(cfg.AwarenessOptions()...),
		session.WithSweepInterval(cfg.Awareness.OutdatedTimeout / 3),
	}
	if len(opts.Graph) > 0 {
		nodes := make(map[string]struct{}, len(opts.Graph))
		for _, id := range opts.Graph {
			nodes[id] = struct{}{}
		}
		sessOpts = append(sessOpts, session.WithGraph(presence.GraphFunc(func(id string) bool {
			_, ok := nodes[id]
			return ok
		})))
	}

	sess := session.New(local, view, sessOpts...)
	view.watch(sess.Signals())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Calls give up as soon as the loop exits, whatever the reason.
	callCtx, cancelCalls := context.WithCancel(ctx)
	defer cancelCalls()
	done := make(chan error, 1)
	go func() {
		err := sess.Run(runCtx)
		cancelCalls()
		done <- err
	}()

	result := PresenceResult{Local: local}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		if err := sess.EnqueueRemote(append([]byte(nil), data...)); err != nil {
			result.Rejected++
			slog.Warn("awareness update rejected", "line", line, "error", err)
			continue
		}
		result.Updates++
		if opts.Shadow != "" && result.Shadow == "" {
			err := callSession(callCtx, sess, func(st *session.State) {
				if st.Presence().ShadowCoeditor(opts.Shadow) {
					result.Shadow = opts.Shadow
				}
			})
			if err != nil {
				sess.Stop()
				<-done
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		sess.Stop()
		<-done
		return WrapExitError(ExitCommandError, "failed to read updates", err)
	}

	if opts.Linger > 0 {
		select {
		case <-time.After(opts.Linger):
		case <-ctx.Done():
		}
	}

	err = callSession(callCtx, sess, func(st *session.State) {
		result.Tracked = st.Presence().Tracked()
		result.Shadow = st.Presence().Shadow().Peer
	})
	sess.Stop()
	if err != nil && ctx.Err() == nil {
		<-done
		return err
	}
	if err := <-done; err != nil && ctx.Err() == nil {
		return WrapExitError(ExitCommandError, "session failed", err)
	}
	result.Effects = view.lines()

	if f.JSON() {
		return f.Respond(result, nil)
	}
	f.VerboseLog("%d updates, %d rejected, tracking %v", result.Updates, result.Rejected, result.Tracked)
	return nil
}

// callSession runs fn on the session loop. It fails when the loop has
// stopped or ctx ends before fn ran.
func callSession(ctx context.Context, sess *session.Session, fn func(*session.State)) error {
	if err := sess.Call(ctx, fn); err != nil {
		return WrapExitError(ExitCommandError, "session not responding", err)
	}
	return nil
}
