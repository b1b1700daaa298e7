package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "start", cfg.Start)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, 0.95, cfg.Solver.Discount)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("LEVELGRAPH_START", "hub")
	t.Setenv("LEVELGRAPH_SOLVER_DISCOUNT", "0.5")
	t.Setenv("LEVELGRAPH_DIR", "s3://levels/world-1")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "hub", cfg.Start)
	assert.Equal(t, 0.5, cfg.Solver.Discount)
	assert.Equal(t, "s3://levels/world-1", cfg.Dir)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levelgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
start: entry
workers: 8
solver:
  max_iterations: 50
lint:
  strict: true
`), 0o644))

	v := NewViper()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "entry", cfg.Start)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 50, cfg.Solver.MaxIterations)
	assert.Equal(t, 0.95, cfg.Solver.Discount)
	assert.True(t, cfg.Lint.Strict)
}

func TestReadFile_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	assert.NoError(t, ReadFile(NewViper(), ""))
	assert.Error(t, ReadFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestLoad_Invalid(t *testing.T) {
	v := NewViper()
	v.Set("solver.discount", 2.0)
	_, err := Load(v)
	assert.Error(t, err)

	v = NewViper()
	v.Set("workers", 0)
	_, err = Load(v)
	assert.Error(t, err)
}
