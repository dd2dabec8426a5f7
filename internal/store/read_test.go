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

func TestLatestSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestSnapshot(ctx, "wf")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.SaveSnapshot(ctx, "wf", map[string]any{"v": 1})
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, "wf", map[string]any{"v": 2})
	require.NoError(t, err)

	snap, err := s.LatestSnapshot(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Seq)

	v, err := snap.Value()
	require.NoError(t, err)
	assert.True(t, value.Equal(value.MustFromGo(map[string]any{"v": 2}), v))
}

func TestListSnapshots_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	snaps, err := s.ListSnapshots(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestListSnapshots_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.SaveSnapshot(ctx, "wf", map[string]any{"i": i})
		require.NoError(t, err)
	}

	snaps, err := s.ListSnapshots(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		assert.Equal(t, int64(i+1), snap.Seq)
	}
}

func TestDocuments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveSnapshot(ctx, "b", map[string]any{})
	require.NoError(t, err)

	doc := mirror.NewDoc()
	updates := recordUpdates(doc, func() {
		require.NoError(t, patcher.SyncRoot(doc, "state", "local", map[string]any{"x": 1, "y": 2}))
	})
	require.NoError(t, s.AppendUpdate(ctx, "a", updates[0]))

	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DocSummary{
		{DocID: "a", Snapshots: 0, Updates: 1, Ops: 2},
		{DocID: "b", Snapshots: 1, Updates: 0, Ops: 0},
	}, docs)
}
