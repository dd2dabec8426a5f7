package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coedit/internal/awareness"
	"github.com/roach88/coedit/internal/session"
	"github.com/roach88/coedit/internal/value"
)

// wireLine encodes one awareness entry as a JSONL line.
func wireLine(t *testing.T, peer string, clock uint64, state map[string]any) string {
	t.Helper()
	entry := awareness.Entry{Peer: peer, Clock: clock}
	if state != nil {
		v, err := value.FromGo(state)
		require.NoError(t, err)
		entry.State = v.(value.Object)
	}
	data, err := awareness.Encode(awareness.Update{Entries: []awareness.Entry{entry}})
	require.NoError(t, err)
	return string(data) + "\n"
}

func runPresenceCommand(t *testing.T, format, input string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewPresenceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func cursorState(color string, x, y float64) map[string]any {
	return map[string]any{
		"user":     map[string]any{"color": color},
		"isActive": true,
		"cursor":   map[string]any{"x": x, "y": y},
	}
}

func TestPresence_JSON(t *testing.T) {
	input := wireLine(t, "p1", 1, cursorState("red", 3, 4)) +
		"not json\n" +
		"\n" +
		wireLine(t, "p2", 1, cursorState("blue", 5, 6))

	out, err := runPresenceCommand(t, "json", input, "--local", "me")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   PresenceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "me", resp.Data.Local)
	assert.Equal(t, 2, resp.Data.Updates)
	assert.Equal(t, 1, resp.Data.Rejected)
	assert.Equal(t, []string{"p1", "p2"}, resp.Data.Tracked)
	assert.Contains(t, resp.Data.Effects, "RenderCursor(p1, 3,4, red)")
	assert.Contains(t, resp.Data.Effects, "RenderCursor(p2, 5,6, blue)")
	assert.Empty(t, resp.Data.Shadow)
}

func TestPresence_TextStreamsEffects(t *testing.T) {
	input := wireLine(t, "p1", 1, cursorState("red", 3, 4)) +
		wireLine(t, "p1", 2, nil)

	out, err := runPresenceCommand(t, "text", input, "--local", "me")
	require.NoError(t, err)

	render := strings.Index(out, "RenderCursor(p1, 3,4, red)")
	remove := strings.Index(out, "RemoveCursor(p1)")
	require.GreaterOrEqual(t, render, 0)
	require.Greater(t, remove, render)
}

func TestPresence_Shadow(t *testing.T) {
	input := wireLine(t, "p1", 1, cursorState("red", 3, 4))

	out, err := runPresenceCommand(t, "json", input, "--local", "me", "--shadow", "p1")
	require.NoError(t, err)

	var resp struct {
		Data PresenceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "p1", resp.Data.Shadow)
}

func TestPresence_GraphFiltersHighlights(t *testing.T) {
	state := cursorState("red", 0, 0)
	state["highlighted"] = []any{"op-1", "gone"}
	input := wireLine(t, "p1", 1, state)

	out, err := runPresenceCommand(t, "json", input, "--local", "me", "--graph", "op-1")
	require.NoError(t, err)

	var resp struct {
		Data PresenceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data.Effects, "AddHighlight(p1, op-1, red)")
	assert.NotContains(t, resp.Data.Effects, "AddHighlight(p1, gone, red)")
}

func TestPresence_MissingFile(t *testing.T) {
	_, err := runPresenceCommand(t, "text", "", "/nonexistent/updates.jsonl")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCallSession_StoppedLoop(t *testing.T) {
	sess := session.New("me", &lineView{}, session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	sess.Stop()

	err := callSession(context.Background(), sess, func(*session.State) {})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCallSession_LoopNotRunning(t *testing.T) {
	sess := session.New("me", &lineView{}, session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := callSession(ctx, sess, func(*session.State) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
