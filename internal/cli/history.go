package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/session"
	"github.com/roach88/coedit/internal/store"
	"github.com/roach88/coedit/internal/value"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	DocID    string
	Root     string
	Verify   bool
}

// SnapshotEntry is one stored snapshot.
type SnapshotEntry struct {
	Seq  int64  `json:"seq"`
	ID   string `json:"id"`
	Data string `json:"data"`
}

// UpdateEntry is one stored update.
type UpdateEntry struct {
	Seq    int64    `json:"seq"`
	Origin string   `json:"origin"`
	Ops    []string `json:"ops"`
}

// HistoryResult is the history of one document.
type HistoryResult struct {
	DocID     string          `json:"doc_id"`
	Snapshots []SnapshotEntry `json:"snapshots"`
	Updates   []UpdateEntry   `json:"updates"`
	// Consistent is set with --verify: the replayed op log agrees with
	// every key of the latest snapshot.
	Consistent *bool `json:"consistent,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored documents, snapshots and ops",
		Long: `Without --doc, list every stored document with its counts. With --doc,
list that document's snapshots and op log.

--verify replays the op log into a fresh mirror and checks that it agrees
with the latest snapshot. Keys a snapshot omits are not compared, since
the mirror never deletes them.

Exit codes:
  0 - Success (and consistent, with --verify)
  1 - Replayed mirror diverges from the latest snapshot
  2 - Command error (database not found, etc.)

Examples:
  coedit history --db ./coedit.db
  coedit history --db ./coedit.db --doc flow-42 --verify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runHistory(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to store.path from config)")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "document id")
	cmd.Flags().StringVar(&opts.Root, "root", session.DefaultRoot, "mirror root map name used by --verify")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "check the op log against the latest snapshot")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.Settings()
		if err != nil {
			return err
		}
		dbPath = cfg.Store.Path
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.DocID == "" {
		return listDocuments(ctx, st, f)
	}

	result, err := documentHistory(ctx, st, opts.DocID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	if opts.Verify {
		ok, err := verifyReplay(ctx, st, opts.DocID, opts.Root)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to verify replay", err)
		}
		result.Consistent = &ok
	}

	if f.JSON() {
		var cliErr *CLIError
		if result.Consistent != nil && !*result.Consistent {
			cliErr = &CLIError{Code: ErrCodeDiverged, Message: "replayed mirror diverges from latest snapshot"}
		}
		if err := f.Respond(result, cliErr); err != nil {
			return err
		}
	} else {
		outputHistoryText(f, result)
	}

	if result.Consistent != nil && !*result.Consistent {
		return NewExitError(ExitFailure, "replayed mirror diverges from latest snapshot")
	}
	return nil
}

func listDocuments(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	docs, err := st.Documents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list documents", err)
	}
	if f.JSON() {
		return f.Respond(docs, nil)
	}
	if len(docs) == 0 {
		f.Printf("No documents found.\n")
		return nil
	}
	for _, d := range docs {
		f.Printf("%s: %d snapshots, %d updates, %d ops\n", d.DocID, d.Snapshots, d.Updates, d.Ops)
	}
	return nil
}

func documentHistory(ctx context.Context, st *store.Store, docID string) (HistoryResult, error) {
	result := HistoryResult{DocID: docID, Snapshots: []SnapshotEntry{}, Updates: []UpdateEntry{}}

	snaps, err := st.ListSnapshots(ctx, docID)
	if err != nil {
		return result, err
	}
	for _, s := range snaps {
		result.Snapshots = append(result.Snapshots, SnapshotEntry{Seq: s.Seq, ID: s.ID, Data: s.Data})
	}

	updates, err := st.ReadUpdates(ctx, docID)
	if err != nil {
		return result, err
	}
	for _, su := range updates {
		entry := UpdateEntry{Seq: su.Seq, Origin: su.Update.Origin, Ops: make([]string, len(su.Update.Ops))}
		for i, op := range su.Update.Ops {
			entry.Ops[i] = op.String()
		}
		result.Updates = append(result.Updates, entry)
	}
	return result, nil
}

// verifyReplay rebuilds the mirror from the op log and compares it with the
// latest snapshot, key by key.
func verifyReplay(ctx context.Context, st *store.Store, docID, root string) (bool, error) {
	snap, err := st.LatestSnapshot(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	want, err := snap.Value()
	if err != nil {
		return false, fmt.Errorf("decode snapshot %d: %w", snap.Seq, err)
	}
	obj, ok := want.(value.Object)
	if !ok {
		return false, fmt.Errorf("snapshot %d is %s, want object", snap.Seq, value.KindOf(want))
	}

	doc, err := st.Replay(ctx, docID)
	if err != nil {
		return false, err
	}
	got, _ := mirror.Materialize(doc.Map(root)).(value.Object)

	for k, v := range obj {
		if value.KindOf(v) == value.KindUndefined {
			continue
		}
		if !value.Equal(got[k], v) {
			return false, nil
		}
	}
	return true, nil
}

func outputHistoryText(f *OutputFormatter, result HistoryResult) {
	f.Printf("Document %s\n", result.DocID)
	f.Printf("\nSnapshots (%d):\n", len(result.Snapshots))
	for _, s := range result.Snapshots {
		f.Printf("  [%d] %s\n", s.Seq, s.Data)
	}
	f.Printf("\nUpdates (%d):\n", len(result.Updates))
	for _, u := range result.Updates {
		f.Printf("  [%d] %s, %d ops\n", u.Seq, u.Origin, len(u.Ops))
		for _, op := range u.Ops {
			f.Printf("      %s\n", op)
		}
	}
	if result.Consistent != nil {
		if *result.Consistent {
			f.Printf("\n✓ Replayed op log matches the latest snapshot\n")
		} else {
			f.Printf("\n✗ Replayed op log diverges from the latest snapshot\n")
		}
	}
}
