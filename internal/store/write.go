package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/value"
)

// Snapshot is one stored full state.
type Snapshot struct {
	ID    string
	DocID string
	Seq   int64
	// Data is the canonical JSON of the state.
	Data string
}

// Value decodes the snapshot data.
func (s Snapshot) Value() (value.Value, error) {
	return value.FromJSON([]byte(s.Data))
}

// SaveSnapshot appends a full state for docID. The state must be
// representable as canonical JSON: opaque values are rejected.
func (s *Store) SaveSnapshot(ctx context.Context, docID string, state any) (Snapshot, error) {
	v, err := value.FromGo(state)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	snap := Snapshot{ID: s.ids.Generate(), DocID: docID, Data: string(data)}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "snapshots", docID)
		if err != nil {
			return err
		}
		snap.Seq = seq
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshots (id, doc_id, seq, data)
			VALUES (?, ?, ?, ?)
		`, snap.ID, snap.DocID, snap.Seq, snap.Data)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// AppendUpdate appends one mirror update and its ops for docID. Empty
// updates are not stored. Implements session.UpdateSink.
func (s *Store) AppendUpdate(ctx context.Context, docID string, u mirror.Update) error {
	if len(u.Ops) == 0 {
		return nil
	}
	updateID := s.ids.Generate()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "updates", docID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO updates (id, doc_id, seq, origin)
			VALUES (?, ?, ?, ?)
		`, updateID, docID, seq, u.Origin); err != nil {
			return err
		}

		for i, op := range u.Ops {
			row, err := opRow(op)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ops (update_id, position, op_seq, actor, kind, target, ref, targets, path, key, idx, count, value)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, updateID, i, op.ID.Seq, op.ID.Actor, string(op.Kind),
				row.target, row.ref, row.targets, row.path, op.Key, op.Index, op.Count, row.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append update: %w", err)
	}
	return nil
}

// encodedOp holds the TEXT columns of one op row.
type encodedOp struct {
	path                        string
	target, ref, targets, value sql.NullString
}

func opRow(op mirror.Op) (encodedOp, error) {
	var (
		row encodedOp
		err error
	)
	if row.path, err = marshalPath(op.Path); err != nil {
		return row, err
	}
	if row.target, err = marshalID(op.Target); err != nil {
		return row, err
	}
	if row.ref, err = marshalID(op.Ref); err != nil {
		return row, err
	}
	if row.targets, err = marshalIDs(op.Targets); err != nil {
		return row, err
	}
	if row.value, err = marshalValue(op.Value); err != nil {
		return row, err
	}
	return row, nil
}

// nextSeq returns the next per-document seq of table. Called inside the
// writing transaction so concurrent writers cannot collide.
func nextSeq(ctx context.Context, tx *sql.Tx, table, docID string) (int64, error) {
	var seq int64
	// table is one of two constants, never user input.
	query := fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE doc_id = ?", table)
	if err := tx.QueryRowContext(ctx, query, docID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
