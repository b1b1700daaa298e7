package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/levelgraph/pkg/graph"
	"github.com/DrSkyle/levelgraph/pkg/level"
	"github.com/DrSkyle/levelgraph/pkg/storage"
)

// levelgraph runs the CLI against dir and returns stdout.
func levelgraph(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--dir", dir, "--no-telemetry"))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := levelgraph(t, dir, args...)
	require.NoError(t, err, "levelgraph %s", strings.Join(args, " "))
	return out
}

func loadDir(t *testing.T, dir string) *level.Workspace {
	t.Helper()
	ws, err := level.Load(context.Background(), storage.NewLocalStore(dir), level.Options{})
	require.NoError(t, err)
	return ws
}

func setupDir(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "segments"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segments", "1-a.txt"), []byte("ab\n&\ncd\n"), 0644))
	return dir
}

func TestCLI_Workflow(t *testing.T) {
	dir := setupDir(t)

	assert.Contains(t, mustRun(t, dir, "init"), "Created graph.json")
	assert.Contains(t, mustRun(t, dir, "init"), "already exists")

	mustRun(t, dir, "reward", "1-a", "2")
	mustRun(t, dir, "add", "1-b")
	mustRun(t, dir, "add", "boss", "--reward", "10", "--terminal")
	mustRun(t, dir, "link", "start", "1-a")
	mustRun(t, dir, "link", "1-a", "1-b")
	mustRun(t, dir, "link", "1-b", "boss")
	mustRun(t, dir, "link", "1-a", "boss", "--outcome", "boss=0.7", "--outcome", "1-b=0.3")

	_, err := levelgraph(t, dir, "link", "1-a", "1-a")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)
	_, err = levelgraph(t, dir, "link", "1-a", "1-b")
	assert.ErrorIs(t, err, graph.ErrDuplicate)
	_, err = levelgraph(t, dir, "add", "1-b")
	assert.ErrorIs(t, err, graph.ErrDuplicate)
	_, err = levelgraph(t, dir, "add", "1.5")
	assert.ErrorIs(t, err, graph.ErrInvalidArgument)

	_, err = os.Stat(filepath.Join(dir, "segments", "boss.txt"))
	require.NoError(t, err)

	out := mustRun(t, dir, "show")
	assert.Contains(t, out, "1-a")
	assert.Contains(t, out, "4 levels, 4 links")

	out = mustRun(t, dir, "solve", "--discount", "0.5")
	assert.Contains(t, out, "Converged")

	ws := loadDir(t, dir)
	u, err := ws.Store.Utility("start")
	require.NoError(t, err)
	assert.InDelta(t, 3.2, u, 1e-6)
	terminal, err := ws.Store.IsTerminal("boss")
	require.NoError(t, err)
	assert.True(t, terminal)

	assert.Contains(t, mustRun(t, dir, "lint"), "0 findings")

	mustRun(t, dir, "rm", "1-b")
	ws = loadDir(t, dir)
	e, err := ws.Store.Edge("1-a", "boss")
	require.NoError(t, err)
	require.Len(t, e.Probability, 1)
	assert.Equal(t, "boss", e.Probability[0].Node)
	assert.InDelta(t, 1.0, e.Probability[0].Weight, 1e-9)
	// The level file was kept, so 1-b comes back unlinked.
	assert.True(t, ws.Store.HasNode("1-b"))
	assert.Equal(t, 4, ws.Store.NodeCount())

	mustRun(t, dir, "rm", "1-b", "--purge")
	assert.False(t, loadDir(t, dir).Store.HasNode("1-b"))

	mustRun(t, dir, "unlink", "start", "1-a")
	assert.False(t, loadDir(t, dir).Store.HasEdge("start", "1-a"))

	mustRun(t, dir, "terminal", "boss", "false")
	terminal, err = loadDir(t, dir).Store.IsTerminal("boss")
	require.NoError(t, err)
	assert.False(t, terminal)
}

func TestCLI_Lint(t *testing.T) {
	dir := setupDir(t)
	mustRun(t, dir, "link", "start", "1-a")

	// 1-a is a reachable dead end: a warning only.
	out := mustRun(t, dir, "lint")
	assert.Contains(t, out, "dead-end: 1-a")

	_, err := levelgraph(t, dir, "lint", "--strict")
	assert.Error(t, err)

	rules := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
rules:
  - id: zero-reward
    condition: reward == 0.0 && id != 'start'
    severity: error
    message: level pays nothing
`), 0644))
	out, err = levelgraph(t, dir, "lint", "--rules", rules)
	assert.Error(t, err)
	assert.Contains(t, out, "zero-reward: 1-a")
}

func TestCLI_ExportAndPreview(t *testing.T) {
	dir := setupDir(t)
	mustRun(t, dir, "link", "start", "1-a")

	out := mustRun(t, dir, "export")
	assert.True(t, strings.HasPrefix(out, "id,reward,utility,terminal,depth,out_degree,in_degree,neighbors\n"))

	path := filepath.Join(t.TempDir(), "graph.yaml")
	mustRun(t, dir, "export", "--format", "yaml", "--out", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "source: start")

	_, err = levelgraph(t, dir, "export", "--format", "xml")
	assert.Error(t, err)

	out = mustRun(t, dir, "preview", "1-a", "--seed", "7")
	assert.Contains(t, []string{"ab\n", "cd\n"}, out)

	_, err = levelgraph(t, dir, "preview", "nope")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCLI_Import(t *testing.T) {
	dir := setupDir(t)
	src := filepath.Join(t.TempDir(), "world.hcl")
	require.NoError(t, os.WriteFile(src, []byte(`
level "start" {
  reward = 0
  next   = ["1-a"]
}
level "1-a" {
  link "goal" {
    outcome "goal" { weight = 0.9 }
    outcome "1-a-retry" { weight = 0.1 }
  }
}
level "1-a-retry" {}
level "goal" {
  reward   = 5
  terminal = true
}
`), 0644))

	out := mustRun(t, dir, "show", "--from", src)
	assert.Contains(t, out, "4 levels, 2 links")

	assert.Contains(t, mustRun(t, dir, "import", src), "Imported 4 levels, 2 links")
	_, err := levelgraph(t, dir, "import", src)
	assert.Error(t, err)
	mustRun(t, dir, "import", src, "--force")

	ws := loadDir(t, dir)
	assert.ElementsMatch(t, []string{"start", "1-a", "1-a-retry", "goal"}, ws.Store.NodeIDs())
	e, err := ws.Store.Edge("1-a", "goal")
	require.NoError(t, err)
	assert.Equal(t, []graph.Outcome{{Node: "goal", Weight: 0.9}, {Node: "1-a-retry", Weight: 0.1}}, e.Probability)

	// The existing level file is untouched.
	data, err := os.ReadFile(filepath.Join(dir, "segments", "1-a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ab\n&\ncd\n", string(data))

	out = mustRun(t, dir, "solve", "--from", src)
	assert.Contains(t, out, "-> goal")
}

func TestCLI_Help(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "LEVELGRAPH")
	assert.Contains(t, out.String(), "solve")
}
