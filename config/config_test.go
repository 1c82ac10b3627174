package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
memory:
  initial_pages: 4
pool:
  min_block_size: 16384
log:
  level: debug
  disabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, uint32(4), cfg.Memory.InitialPages)
	assert.Equal(t, Default().Memory.MaxPages, cfg.Memory.MaxPages)
	assert.Equal(t, uint32(16384), cfg.Pool.MinBlockSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Disabled)
	assert.Equal(t, "nativecoll", cfg.Metrics.Namespace)
}

func TestParse_EnvSubstitution(t *testing.T) {
	t.Setenv("NATIVECOLL_TEST_PAGES", "64")

	cfg, err := Parse([]byte("memory:\n  max_pages: ${NATIVECOLL_TEST_PAGES}\n"))
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.Memory.MaxPages)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"zero initial":      "memory:\n  initial_pages: 0\n",
		"max below initial": "memory:\n  initial_pages: 8\n  max_pages: 2\n",
		"block size":        "pool:\n  min_block_size: 1000\n",
		"log level":         "log:\n  level: loud\n",
		"yaml":              "memory: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nativecoll.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  enabled: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_Build(t *testing.T) {
	l, err := LogConfig{Disabled: true}.Build()
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = LogConfig{Level: "warn", Development: true}.Build()
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1)) // debug disabled at warn

	_, err = LogConfig{Level: "nope"}.Build()
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A_VAR", "x")
	assert.Equal(t, "x-x-", substituteEnvVars("${A_VAR}-${A_VAR}-${UNSET_NATIVECOLL_VAR}"))
	assert.Equal(t, "plain ${open", substituteEnvVars("plain ${open"))
}
