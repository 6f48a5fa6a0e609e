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

func executeFilter(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewFilterCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dlsan.log")
	require.NoError(t, os.WriteFile(path, []byte(hoistLog+hoistLog), 0644))
	return path
}

func TestFilterCommand(t *testing.T) {
	out, err := executeFilter(t, &RootOptions{Format: "text"}, writeLog(t))
	require.NoError(t, err)
	assert.Equal(t,
		"[fail] Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]\n", out)
}

func TestFilterCommandColor(t *testing.T) {
	out, err := executeFilter(t, &RootOptions{Format: "text"}, writeLog(t), "--color")
	require.NoError(t, err)
	assert.Contains(t, out, "\033[31;1mfail\033[0m")
}

func TestFilterCommandJSON(t *testing.T) {
	out, err := executeFilter(t, &RootOptions{Format: "json"}, writeLog(t))
	require.NoError(t, err)

	var response struct {
		Status string       `json:"status"`
		Data   FilterOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, FilterOutput{
		Lines:  []string{"[fail] Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]"},
		Failed: 1,
	}, response.Data)
}

func TestFilterCommandEmptyLogJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlsan.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	out, err := executeFilter(t, &RootOptions{Format: "json"}, path)
	require.NoError(t, err)
	assert.Contains(t, out, `"lines": []`)
}

func TestFilterCommandMissingLog(t *testing.T) {
	_, err := executeFilter(t, &RootOptions{Format: "text"}, "/nonexistent/dlsan.log")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "verdict log not found")
}

func TestFilterCommandConfiguredLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verdicts.log"), []byte(hoistLog), 0644))
	cfgPath := filepath.Join(t.TempDir(), "dlsan.cue")
	cfg := "log: {dir: \"" + filepath.ToSlash(dir) + "\", file: \"verdicts.log\"}\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, err := executeFilter(t, &RootOptions{Format: "text", Config: cfgPath})
	require.NoError(t, err)
	assert.Contains(t, out, "[fail] Preserve")
}
