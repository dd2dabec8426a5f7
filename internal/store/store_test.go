package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coedit.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coedit.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, "flow", map[string]any{"n": 1})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	snaps, err := s.ListSnapshots(ctx, "flow")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveSnapshot(context.Background(), "flow", map[string]any{})
	require.NoError(t, err)
	docs, err := s.Documents(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/coedit.db")
	assert.Error(t, err)
}

func TestClose_Unopened(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, value := range want {
		assert.NoError(t, s.verifyPragma(name, value))
	}
}

func TestSchema_OpsColumns(t *testing.T) {
	s := createTestStore(t)

	assert.Equal(t,
		[]string{
			"update_id", "position", "op_seq", "kind", "path", "key", "idx", "count", "value",
			"actor", "target", "ref", "targets",
		},
		tableColumns(t, s.db, "ops"),
	)
}

func TestSchema_OpsRequireUpdate(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO ops (update_id, position, op_seq, kind, path)
		VALUES ('missing', 0, 1, 'map_set', '[]')
	`)
	assert.Error(t, err, "op rows must reference an update")
}

func TestSchema_SnapshotSeqUniquePerDoc(t *testing.T) {
	s := createTestStore(t)
	insert := `INSERT INTO snapshots (id, doc_id, seq, data) VALUES (?, ?, 1, '{}')`

	_, err := s.db.Exec(insert, "a", "flow")
	require.NoError(t, err)
	_, err = s.db.Exec(insert, "b", "flow")
	assert.Error(t, err, "duplicate (doc_id, seq)")
	_, err = s.db.Exec(insert, "c", "other")
	assert.NoError(t, err)
}

func TestMigrate_CurrentVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestMigrate_FromUnversioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coedit.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
	assert.True(t, slices.Contains(tableIndexes(t, s.db, "updates"), "idx_updates_doc_seq"))
	assert.True(t, slices.Contains(tableIndexes(t, s.db, "snapshots"), "idx_snapshots_doc_seq"))
}

func TestMigrate_AddsOpIDColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coedit.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE updates (
			id TEXT PRIMARY KEY, doc_id TEXT NOT NULL, seq INTEGER NOT NULL,
			origin TEXT NOT NULL, UNIQUE (doc_id, seq)
		);
		CREATE TABLE ops (
			update_id TEXT NOT NULL REFERENCES updates(id) ON DELETE CASCADE,
			position INTEGER NOT NULL, op_seq INTEGER NOT NULL, kind TEXT NOT NULL,
			path TEXT NOT NULL, key TEXT NOT NULL DEFAULT '', idx INTEGER NOT NULL DEFAULT 0,
			count INTEGER NOT NULL DEFAULT 0, value TEXT,
			PRIMARY KEY (update_id, position)
		);
		PRAGMA user_version = 1;
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	cols := tableColumns(t, s.db, "ops")
	for _, want := range []string{"actor", "target", "ref", "targets"} {
		assert.Contains(t, cols, want)
	}
	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	return cols
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
