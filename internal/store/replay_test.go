package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/patcher"
	"github.com/roach88/coedit/internal/value"
)

func TestReplay_RebuildsMirror(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := mirror.NewDoc()
	doc.OnUpdate(func(u mirror.Update) {
		require.NoError(t, s.AppendUpdate(ctx, "wf", u))
	})

	snapshots := []map[string]any{
		{"operators": []any{map[string]any{"id": "op-1", "x": 0}}, "name": "draft"},
		{"operators": []any{map[string]any{"id": "op-1", "x": 0}, map[string]any{"id": "op-2"}}, "name": "draft"},
		{"operators": []any{map[string]any{"id": "op-2"}}, "name": "final", "links": []any{}},
	}
	for _, snap := range snapshots {
		require.NoError(t, patcher.SyncRoot(doc, "state", "local", snap))
	}

	replayed, err := s.Replay(ctx, "wf")
	require.NoError(t, err)
	assert.True(t, value.Equal(
		mirror.Materialize(doc.Map("state")),
		mirror.Materialize(replayed.Map("state")),
	))
}

func TestReplay_EmptyLog(t *testing.T) {
	s := createTestStore(t)

	doc, err := s.Replay(context.Background(), "none")
	require.NoError(t, err)
	assert.Empty(t, doc.Roots())
}
