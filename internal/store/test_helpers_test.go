package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/testutil"
)

// createTestStore creates a store in a temp dir with sequential row ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("row")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordUpdates collects the updates doc emits while fn runs.
func recordUpdates(doc *mirror.Doc, fn func()) []mirror.Update {
	var got []mirror.Update
	cancel := doc.OnUpdate(func(u mirror.Update) { got = append(got, u) })
	defer cancel()
	fn()
	return got
}
