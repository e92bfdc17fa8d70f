package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GQLMAP_MAPPING", "mapping.yaml")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, 500, cfg.MaxLimit)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQuery)
	assert.False(t, cfg.Migrate)
	assert.False(t, cfg.IsProduction())
}

func TestLoadDotEnv(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("GQLMAP_MAPPING=blog.yaml\nGQLMAP_DIALECT=postgres\nGQLMAP_MAX_LIMIT=50\n"), 0o600))
	t.Setenv("GQLMAP_MAX_LIMIT", "20")
	t.Cleanup(func() {
		os.Unsetenv("GQLMAP_MAPPING")
		os.Unsetenv("GQLMAP_DIALECT")
	})
	cfg, err := Load(env)
	require.NoError(t, err)
	assert.Equal(t, "blog.yaml", cfg.Mapping)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, 20, cfg.MaxLimit, "environment wins over .env")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GQLMAP_MAPPING", "")
	os.Unsetenv("GQLMAP_MAPPING")
	_, err := Load(filepath.Join(dir, "none"))
	require.Error(t, err)

	t.Setenv("GQLMAP_MAPPING", "m.yaml")
	t.Setenv("GQLMAP_DIALECT", "oracle")
	_, err = Load(filepath.Join(dir, "none"))
	require.EqualError(t, err, `config: unsupported dialect "oracle"`)

	t.Setenv("GQLMAP_DIALECT", "mysql")
	t.Setenv("GQLMAP_MAX_LIMIT", "0")
	_, err = Load(filepath.Join(dir, "none"))
	require.ErrorContains(t, err, "max limit")
}
