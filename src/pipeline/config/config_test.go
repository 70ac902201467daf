package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEnablesEveryPass(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.RunMem2Reg)
	assert.True(t, cfg.RunConstProp)
	assert.True(t, cfg.RunCFGSimplify)
	assert.True(t, cfg.RunInline)
	assert.True(t, cfg.RunScalar)
	assert.True(t, cfg.RunLICM)
	assert.True(t, cfg.RunUnroll)
	assert.True(t, cfg.RunStrengthReduce)
	assert.True(t, cfg.RunConstArray)
	assert.Equal(t, 80, cfg.UnrollTripLimit)
	assert.Equal(t, 0, cfg.InlineSizeCeiling)
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("licm: false\nunroll_trip_limit: 16\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.RunLICM)
	assert.Equal(t, 16, cfg.UnrollTripLimit)
	// Everything not named in the file keeps Default's value.
	assert.True(t, cfg.RunMem2Reg)
	assert.True(t, cfg.RunInline)
	assert.Equal(t, 0, cfg.InlineSizeCeiling)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mem2reg: [this, is, not, a, bool]"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
