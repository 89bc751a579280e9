package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, "fts5", cfg.Search.LexicalBackend)
	assert.True(t, cfg.SQL.Enabled)
	assert.Equal(t, 5*time.Second, cfg.SQL.ExecTimeout)
	assert.Equal(t, "auto", cfg.Embedding.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  top_k: 12
  lexical_backend: bleve
sql:
  enabled: true
  default_limit: 20
  exec_timeout: 3s
`), 0644))
	t.Setenv("DATACHAT_CONFIG", path)
	t.Setenv("DATACHAT_TOP_K", "5")
	t.Setenv("DATACHAT_SQL_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	// Env beats file, file beats default.
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "bleve", cfg.Search.LexicalBackend)
	assert.False(t, cfg.SQL.Enabled)
	assert.Equal(t, 20, cfg.SQL.DefaultLimit)
	assert.Equal(t, 3*time.Second, cfg.SQL.ExecTimeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DATACHAT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Search.TopK)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [not a map"), 0644))
	t.Setenv("DATACHAT_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.TopK = 0
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Search.LexicalBackend = "elasticsearch"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.SQL.ExecTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestGetAndInvalidate(t *testing.T) {
	t.Setenv("DATACHAT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	Invalidate()
	t.Cleanup(Invalidate)

	c1, err := Get()
	require.NoError(t, err)
	c2, err := Get()
	require.NoError(t, err)
	assert.Same(t, c1, c2, "repeat gets return the cached config")

	Invalidate()
	c3, err := Get()
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"0", "false", "off", ""} {
		assert.False(t, isTruthy(v), v)
	}
}
