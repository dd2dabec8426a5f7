package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/coedit/internal/session"
)

// PatchOptions holds flags for the patch command.
type PatchOptions struct {
	*RootOptions
	Database string
	DocID    string
	Root     string
}

// PatchResult is the outcome of a patch run.
type PatchResult struct {
	DocID  string      `json:"doc_id"`
	Steps  []PatchStep `json:"steps"`
	Mirror any         `json:"mirror"`
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch <snapshot.json>...",
		Short: "Mirror successive snapshots and print the ops",
		Long: `Sync each JSON snapshot, in order, into a mirror document and print the
ops every snapshot produced.

With --db each snapshot and its op log are stored under --doc, and a
later run resumes from the stored document.

Exit codes:
  0 - All snapshots mirrored
  1 - A snapshot could not be mirrored (not an object, invalid JSON)
  2 - Command error (unreadable file, database)

Examples:
  coedit patch v1.json v2.json
  coedit patch --db ./coedit.db --doc flow-42 v3.json
  coedit patch v1.json --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "store snapshots and ops in this SQLite database")
	cmd.Flags().StringVar(&opts.DocID, "doc", defaultDoc, "document id in the database")
	cmd.Flags().StringVar(&opts.Root, "root", session.DefaultRoot, "mirror root map name")

	return cmd
}

func runPatch(ctx context.Context, opts *PatchOptions, files []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	r, err := newMirrorRunner(ctx, opts.Database, opts.DocID, opts.Root)
	if err != nil {
		return err
	}
	defer r.Close()

	result := PatchResult{DocID: opts.DocID, Steps: make([]PatchStep, 0, len(files))}
	for _, file := range files {
		step, err := r.apply(ctx, file)
		if err != nil {
			return patchError(f, err)
		}
		result.Steps = append(result.Steps, step)
		f.VerboseLog("%s: %d ops", file, len(step.Ops))
	}
	result.Mirror = r.state()

	if f.JSON() {
		return f.Respond(result, nil)
	}
	for _, step := range result.Steps {
		f.Printf("%s: %d ops\n", step.File, len(step.Ops))
		for _, op := range step.Ops {
			f.Printf("  %s\n", op)
		}
	}
	f.Printf("mirror: %s\n", canonicalString(result.Mirror))
	return nil
}

// patchError reports a failed snapshot. Bad snapshots exit 1; anything
// already carrying an exit code keeps it.
func patchError(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return err
	}
	if errors.Is(err, errBadSnapshot) {
		_ = f.Error(ErrCodeBadSnapshot, err.Error(), nil)
		return WrapExitError(ExitFailure, "snapshot rejected", err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "patch failed", err)
}
