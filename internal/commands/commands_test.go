package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/commands"
)

type result struct {
	stdout string
	stderr string
}

// run executes the CLI in-process.
func run(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String()}, err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	res, err := run(t, "", args...)
	require.NoError(t, err, "bankrec %s\nstderr: %s", strings.Join(args, " "), res.stderr)
	return res.stdout
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// newWorkspace initializes a workspace with a "checking" account opened at 100.00.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, "init", dir, "--name", "Test Biz")
	mustRun(t, "accounts", "add", "--repo", dir, "--id", "checking", "--name", "Checking", "--opening-balance", "100.00")
	return dir
}

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func copyFixture(t *testing.T, name, dstDir string) {
	t.Helper()
	data, err := os.ReadFile(fixture(name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dstDir, name), data, 0o644))
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}
