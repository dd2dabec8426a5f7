package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/coedit/internal/session"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	DocID    string
	Root     string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <snapshot.json>",
		Short: "Re-mirror a snapshot file whenever it changes",
		Long: `Mirror a JSON snapshot file and keep mirroring it every time it is
written, printing the ops each write produced. Writes that do not parse
are reported and skipped. Runs until interrupted.

Examples:
  coedit watch state.json
  coedit watch --db ./coedit.db --doc flow-42 state.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "store snapshots and ops in this SQLite database")
	cmd.Flags().StringVar(&opts.DocID, "doc", defaultDoc, "document id in the database")
	cmd.Flags().StringVar(&opts.Root, "root", session.DefaultRoot, "mirror root map name")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	r, err := newMirrorRunner(ctx, opts.Database, opts.DocID, opts.Root)
	if err != nil {
		return err
	}
	defer r.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, so watch the
	// directory and filter by name.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}
	slog.Info("watching snapshot", "path", target, "doc_id", opts.DocID)

	report := func(step PatchStep) error {
		if len(step.Ops) == 0 {
			return nil
		}
		if f.JSON() {
			return f.Respond(step, nil)
		}
		f.Printf("%s: %d ops\n", step.File, len(step.Ops))
		for _, op := range step.Ops {
			f.Printf("  %s\n", op)
		}
		return nil
	}

	step, err := r.apply(ctx, target)
	if err != nil {
		return patchError(f, err)
	}
	if err := report(step); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped", "path", target)
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			slog.Debug("snapshot changed", "path", target, "op", ev.Op.String())
			step, err := r.apply(ctx, target)
			if err != nil {
				// Half-written or replaced files settle on a later event.
				slog.Warn("snapshot skipped", "path", target, "error", err)
				continue
			}
			if err := report(step); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return WrapExitError(ExitCommandError, "watch failed", fmt.Errorf("%s: %w", target, err))
		}
	}
}
