package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/patcher"
	"github.com/roach88/coedit/internal/session"
	"github.com/roach88/coedit/internal/store"
	"github.com/roach88/coedit/internal/value"
)

// errBadSnapshot marks snapshots that cannot be mirrored: invalid JSON or
// not an object.
var errBadSnapshot = errors.New("bad snapshot")

// PatchStep reports the ops one snapshot file produced.
type PatchStep struct {
	File string   `json:"file"`
	Ops  []string `json:"ops"`
	// SnapshotSeq is the stored snapshot sequence, 0 without a database.
	SnapshotSeq int64 `json:"snapshot_seq,omitempty"`
}

// mirrorRunner syncs snapshot files into one mirror document and, with a
// store, persists each snapshot and the resulting op log.
type mirrorRunner struct {
	doc     *mirror.Doc
	st      *store.Store
	docID   string
	root    string
	pending []mirror.Update
	cancel  func()
}

// newMirrorRunner opens dbPath (if set) and resumes the document from its
// stored op log.
func newMirrorRunner(ctx context.Context, dbPath, docID, root string) (*mirrorRunner, error) {
	r := &mirrorRunner{doc: mirror.NewDoc(), docID: docID, root: root}

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		doc, err := st.Replay(ctx, docID)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to replay stored document", err)
		}
		r.st, r.doc = st, doc
		slog.Debug("document resumed", "doc_id", docID, "op_seq", doc.Seq())
	}

	r.cancel = r.doc.OnUpdate(func(u mirror.Update) {
		r.pending = append(r.pending, u)
	})
	return r, nil
}

// apply syncs the snapshot stored in path.
func (r *mirrorRunner) apply(ctx context.Context, path string) (PatchStep, error) {
	step := PatchStep{File: path, Ops: []string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		return step, WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	snapshot, err := value.FromJSON(data)
	if err != nil {
		return step, fmt.Errorf("%s: %w: %w", path, errBadSnapshot, err)
	}

	r.pending = r.pending[:0]
	if err := patcher.SyncRoot(r.doc, r.root, "local", snapshot); err != nil {
		return step, fmt.Errorf("%s: %w: %w", path, errBadSnapshot, err)
	}
	for _, u := range r.pending {
		for _, op := range u.Ops {
			step.Ops = append(step.Ops, op.String())
		}
	}

	if r.st == nil {
		return step, nil
	}
	snap, err := r.st.SaveSnapshot(ctx, r.docID, snapshot)
	if err != nil {
		return step, err
	}
	step.SnapshotSeq = snap.Seq
	for _, u := range r.pending {
		if err := r.st.AppendUpdate(ctx, r.docID, u); err != nil {
			return step, err
		}
	}
	slog.Debug("snapshot stored",
		"doc_id", r.docID,
		"seq", snap.Seq,
		"op_count", len(step.Ops),
	)
	return step, nil
}

// state materializes the mirrored root.
func (r *mirrorRunner) state() any {
	return value.ToGo(mirror.Materialize(r.doc.Map(r.root)))
}

func (r *mirrorRunner) Close() error {
	r.cancel()
	if r.st != nil {
		return r.st.Close()
	}
	return nil
}

// canonicalString renders v as canonical JSON for text output.
func canonicalString(v any) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// defaultDoc is the document id used when --doc is not given.
const defaultDoc = session.DefaultRoot
