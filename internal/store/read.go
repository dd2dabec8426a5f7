package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/coedit/internal/mirror"
)

// ErrNotFound is returned when a document has no stored snapshot.
var ErrNotFound = errors.New("not found")

// StoredUpdate is a mirror update read back from the log.
type StoredUpdate struct {
	ID     string
	DocID  string
	Seq    int64
	Update mirror.Update
}

// DocSummary counts what is stored for one document.
type DocSummary struct {
	DocID     string `json:"doc_id"`
	Snapshots int    `json:"snapshots"`
	Updates   int    `json:"updates"`
	Ops       int    `json:"ops"`
}

// LatestSnapshot returns the newest snapshot of docID, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, doc_id, seq, data
		FROM snapshots
		WHERE doc_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, docID).Scan(&snap.ID, &snap.DocID, &snap.Seq, &snap.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot of %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns all snapshots of docID ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListSnapshots(ctx context.Context, docID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, seq, data
		FROM snapshots
		WHERE doc_id = ?
		ORDER BY seq ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.DocID, &snap.Seq, &snap.Data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// ReadUpdates returns the update log of docID ordered by seq, each with its
// ops in recording order. Returns an empty slice (not nil) if none exist.
func (s *Store) ReadUpdates(ctx context.Context, docID string) ([]StoredUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.seq, u.origin,
		       o.op_seq, o.actor, o.kind, o.target, o.ref, o.targets,
		       o.path, o.key, o.idx, o.count, o.value
		FROM updates u
		JOIN ops o ON o.update_id = u.id
		WHERE u.doc_id = ?
		ORDER BY u.seq ASC, o.position ASC
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	updates := []StoredUpdate{}
	for rows.Next() {
		var (
			id, origin, kind, path    string
			seq                       int64
			op                        mirror.Op
			target, ref, targets, val sql.NullString
		)
		if err := rows.Scan(&id, &seq, &origin,
			&op.ID.Seq, &op.ID.Actor, &kind, &target, &ref, &targets,
			&path, &op.Key, &op.Index, &op.Count, &val); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		op.Kind = mirror.OpKind(kind)
		if op.Target, err = unmarshalID(target); err != nil {
			return nil, err
		}
		if op.Ref, err = unmarshalID(ref); err != nil {
			return nil, err
		}
		if op.Targets, err = unmarshalIDs(targets); err != nil {
			return nil, err
		}
		if op.Path, err = unmarshalPath(path); err != nil {
			return nil, err
		}
		if op.Value, err = unmarshalValue(val); err != nil {
			return nil, err
		}

		if n := len(updates); n == 0 || updates[n-1].ID != id {
			updates = append(updates, StoredUpdate{
				ID:     id,
				DocID:  docID,
				Seq:    seq,
				Update: mirror.Update{Origin: origin},
			})
		}
		last := &updates[len(updates)-1]
		last.Update.Ops = append(last.Update.Ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return updates, nil
}

// Documents summarizes every stored document, ordered by id.
func (s *Store) Documents(ctx context.Context) ([]DocSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id,
		       (SELECT COUNT(*) FROM snapshots WHERE doc_id = d.doc_id),
		       (SELECT COUNT(*) FROM updates WHERE doc_id = d.doc_id),
		       (SELECT COUNT(*) FROM ops o JOIN updates u ON o.update_id = u.id WHERE u.doc_id = d.doc_id)
		FROM (SELECT doc_id FROM snapshots UNION SELECT doc_id FROM updates) d
		ORDER BY d.doc_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []DocSummary{}
	for rows.Next() {
		var d DocSummary
		if err := rows.Scan(&d.DocID, &d.Snapshots, &d.Updates, &d.Ops); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
