package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: cursor_follows
description: "A peer's cursor renders and clears on leave"
steps:
  - presence:
      peer: p1
      state:
        user: { color: red }
        cursor: { x: 1, y: 2 }
  - leave: p1
assertions:
  - type: effect_order
    effects: ["RenderCursor(p1, 1,2, red)", "RemoveCursor(p1)"]
  - type: tracked
    peers: []
`

const passingGolden = `{"scenario_name":"cursor_follows","trace":[{"detail":"RenderCursor(p1, 1,2, red)","step":1,"type":"effect"},{"detail":"RemoveCursor(p1)","step":2,"type":"effect"}]}`

const failingScenario = `name: wrong_color
description: "Expects a color the peer never sends"
steps:
  - presence:
      peer: p1
      state:
        user: { color: red }
        cursor: { x: 1, y: 2 }
assertions:
  - type: effect_contains
    effect: "RenderCursor(p1, 1,2, blue)"
`

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommand_Pass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cursor_follows")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_color")
	assert.Contains(t, out, "RenderCursor(p1, 1,2, blue)")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_GoldenMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden"), "cursor_follows.golden", passingGolden)

	_, err := runTestCommand(t, "text", dir)
	require.NoError(t, err)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden"), "cursor_follows.golden", `{"scenario_name":"cursor_follows","trace":[]}`)

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Update(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)

	_, err := runTestCommand(t, "text", "--update", dir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "golden", "cursor_follows.golden"))
	require.NoError(t, err)
	assert.Equal(t, passingGolden, string(got))
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cursor.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := runTestCommand(t, "text", "--filter", "cur*", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "wrong_color")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", failingScenario)

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "wrong_color", resp.Data.Scenarios[0].Name)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommand_MissingPath(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFindScenarioFiles_SkipsGoldenAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", passingScenario)
	writeFile(t, dir, "b.cue", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	writeFile(t, filepath.Join(dir, "golden"), "a.yaml", "")

	files, err := findScenarioFiles([]string{dir}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.cue")}, files)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), goldenFilePath("", filepath.Join("s", "x.yaml"), "x"))
	assert.Equal(t, filepath.Join("g", "x.golden"), goldenFilePath("g", filepath.Join("s", "x.yaml"), "x"))
}
