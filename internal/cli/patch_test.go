package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPatchCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewPatchCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPatch_PrintsOps(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.json", `{"title":"Flow","nodes":[{"id":"a"}]}`)
	v2 := writeFile(t, dir, "v2.json", `{"title":"Flow","nodes":[{"id":"a"},{"id":"b"}]}`)

	out, err := runPatchCommand(t, "text", v1, v2)
	require.NoError(t, err)

	assert.Contains(t, out, v1+": 2 ops\n")
	assert.Contains(t, out, `  #1 map_set state["nodes"]`)
	assert.Contains(t, out, `  #2 map_set state["title"]`)
	assert.Contains(t, out, v2+": 1 ops\n")
	assert.Contains(t, out, "  #3 seq_insert state.nodes@1+1")
	assert.Contains(t, out, `mirror: {"nodes":[{"id":"a"},{"id":"b"}],"title":"Flow"}`)
}

func TestPatch_IdenticalSnapshotProducesNoOps(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.json", `{"n":1}`)

	out, err := runPatchCommand(t, "text", v1, v1)
	require.NoError(t, err)
	assert.Contains(t, out, v1+": 0 ops\n")
}

func TestPatch_JSON(t *testing.T) {
	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.json", `{"title":"Flow"}`)

	out, err := runPatchCommand(t, "json", "--root", "app", v1)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   PatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, defaultDoc, resp.Data.DocID)
	require.Len(t, resp.Data.Steps, 1)
	assert.Equal(t, []string{`#1 map_set app["title"]`}, resp.Data.Steps[0].Ops)
	assert.Zero(t, resp.Data.Steps[0].SnapshotSeq)
	assert.Equal(t, map[string]any{"title": "Flow"}, resp.Data.Mirror)
}

func TestPatch_BadSnapshot(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"title":`},
		{"not an object", `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeFile(t, dir, "bad.json", tt.content)

			out, err := runPatchCommand(t, "text", file)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, errBadSnapshot)
			assert.Contains(t, out, "Error [E_BAD_SNAPSHOT]")
		})
	}
}

func TestPatch_MissingFile(t *testing.T) {
	_, err := runPatchCommand(t, "text", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPatch_DatabaseResumes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "coedit.db")
	v1 := writeFile(t, dir, "v1.json", `{"title":"Flow","nodes":[{"id":"a"}]}`)
	v2 := writeFile(t, dir, "v2.json", `{"title":"Flow","nodes":[{"id":"a"},{"id":"b"}]}`)

	out, err := runPatchCommand(t, "json", "--db", db, "--doc", "flow-42", v1)
	require.NoError(t, err)
	var first struct {
		Data PatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, int64(1), first.Data.Steps[0].SnapshotSeq)

	// The second run starts from the stored document, so only the new node
	// produces an op.
	out, err = runPatchCommand(t, "json", "--db", db, "--doc", "flow-42", v2)
	require.NoError(t, err)
	var second struct {
		Data PatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.Len(t, second.Data.Steps, 1)
	assert.Equal(t, int64(2), second.Data.Steps[0].SnapshotSeq)
	require.Len(t, second.Data.Steps[0].Ops, 1)
	assert.Contains(t, second.Data.Steps[0].Ops[0], "seq_insert state.nodes@1+1")
	assert.Equal(t, map[string]any{
		"title": "Flow",
		"nodes": []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}},
	}, second.Data.Mirror)
}
