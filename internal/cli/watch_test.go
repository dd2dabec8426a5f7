package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe to read while the command writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startWatch(t *testing.T, args ...string) (*syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(args)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	t.Cleanup(cancel)
	return out, cancel, done
}

func TestWatch_MirrorsEachWrite(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "state.json", `{"title":"Flow"}`)

	out, cancel, done := startWatch(t, file)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`#1 map_set state["title"]`))
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte(`{"title":"Flow","n":1}`), 0o644))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`#2 map_set state["n"]`))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_SkipsUnparsableWrites(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "state.json", `{"a":1}`)

	out, cancel, done := startWatch(t, file)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`#1 map_set state["a"]`))
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte(`{"a":`), 0o644))
	require.NoError(t, os.WriteFile(file, []byte(`{"a":1,"b":2}`), 0o644))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(`map_set state["b"]`))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NotContains(t, out.String(), "Error [")
}

func TestWatch_BadInitialSnapshot(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "state.json", `[1,2]`)

	_, _, done := startWatch(t, file)
	err := <-done
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestWatch_MissingDirectory(t *testing.T) {
	_, _, done := startWatch(t, filepath.Join(t.TempDir(), "missing", "state.json"))
	err := <-done
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
