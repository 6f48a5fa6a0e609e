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

const hoistScenario = `name: hoist
description: Hoisting i to entry stays in the region join post-dominates.
pass: LICMPass
module: test.ll
function:
  name: foo
  blocks:
    - {name: entry, instrs: [e], succs: [then, else]}
    - {name: then, instrs: [t], succs: [join]}
    - {name: else, instrs: [l], succs: [join]}
    - {name: join, instrs: [i]}
steps:
  - {op: move, node: i, before: e, line: 20}
  - {op: update, node: i, kind: Drop, line: 30}
expect:
  - {node: i, status: fail, expected: Preserve}
`

const hoistLog = `[Checker] Start checking @foo (test.ll):
fail: Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]
[Checker] Fail! 20 (Preserve:1)
[Checker] Finish checking.
`

// writeScenario writes a scenario file into dir and returns its path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// executeCheck runs the check command with args and returns stdout.
func executeCheck(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCheckCommandMissingArgs(t *testing.T) {
	_, err := executeCheck(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestCheckCommandNonExistentPath(t *testing.T) {
	_, err := executeCheck(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCommandEmptyDir(t *testing.T) {
	out, err := executeCheck(t, "text", t.TempDir(), "--no-log")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestCheckCommandEmptyDirJSON(t *testing.T) {
	out, err := executeCheck(t, "json", t.TempDir(), "--no-log")
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestCheckCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "hoist", hoistScenario)

	out, err := executeCheck(t, "text", dir, "--no-log")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hoist")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestCheckCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "hoist", hoistScenario)
	writeScenario(t, dir, "wrong", `name: wrong
description: Expects a pass where the policy wants Preserve.
pass: SinkPass
function:
  name: foo
  blocks:
    - {name: entry, instrs: [e]}
    - {name: exit, instrs: [x]}
steps:
  - {op: create, node: n, block: exit, line: 5}
  - {op: update, node: n, kind: Drop, line: 7}
expect:
  - {node: n, status: pass, expected: Preserve}
`)

	out, err := executeCheck(t, "text", dir, "--no-log")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ hoist")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestCheckCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken", "name: broken\nbogus: true\n")

	out, err := executeCheck(t, "text", dir, "--no-log")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestCheckCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "hoist", hoistScenario)

	out, err := executeCheck(t, "json", dir, "--no-log")
	require.NoError(t, err)

	var response struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	require.Len(t, response.Data.Scenarios, 1)
	s := response.Data.Scenarios[0]
	assert.Equal(t, "hoist", s.Name)
	assert.True(t, s.Pass)
	assert.Equal(t, "fail", s.Verdict)
	assert.Len(t, s.ScopeID, 36)
}

func TestCheckCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "licm-hoist", hoistScenario)
	writeScenario(t, dir, "other", "not: a scenario\n")

	out, err := executeCheck(t, "text", dir, "--no-log", "--filter", "licm-*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hoist")
	assert.Contains(t, out, "1 total")
}

func TestCheckCommandAppendsLog(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "hoist", hoistScenario)
	logPath := filepath.Join(t.TempDir(), "logs", "dlsan.log")

	_, err := executeCheck(t, "text", dir, "--log", logPath)
	require.NoError(t, err)
	_, err = executeCheck(t, "text", dir, "--log", logPath)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, hoistLog+hoistLog, string(data))
}

func TestCheckCommandGolden(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "hoist", hoistScenario)
	goldenPath := goldenFilePath(scenario)

	// --update writes the golden file
	_, err := executeCheck(t, "text", dir, "--no-log", "--update")
	require.NoError(t, err)
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, hoistLog, string(data))

	// matching golden passes
	_, err = executeCheck(t, "text", dir, "--no-log")
	require.NoError(t, err)

	// stale golden fails
	require.NoError(t, os.WriteFile(goldenPath, []byte("stale\n"), 0644))
	out, err := executeCheck(t, "text", dir, "--no-log")
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestCheckCommandWritesHistory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "hoist", hoistScenario)
	dbPath := filepath.Join(t.TempDir(), "dlsan.db")

	_, err := executeCheck(t, "text", dir, "--no-log", "--db", dbPath)
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestCheckHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--db")
	assert.Contains(t, output, "golden")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested", "golden"), 0755))

	files := []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "c.yaml"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(dir, "nested", "golden", "c.golden"),
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(f, []byte("name: x\n"), 0644))
	}

	found, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, files[:3], found)

	found, err = findScenarioFiles(dir, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{files[2]}, found)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "licm", "golden", "hoist.golden"),
		goldenFilePath(filepath.Join("scenarios", "licm", "hoist.yaml")))
}
