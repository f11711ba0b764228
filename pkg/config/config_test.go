package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.Head)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigtab.yaml")
	content := `
source: /data/bunmd.csv
head: 10
store:
  path: /data/bunmd.duckdb
read:
  limit: 1000
  columns: [fname, byear]
predicate:
  column: fname
  values: [JOSH, JOSHUA]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/bunmd.csv", cfg.Source)
	assert.Equal(t, 10, cfg.Head)
	assert.Equal(t, "/data/bunmd.duckdb", cfg.Store.Path)
	assert.Equal(t, 1000, cfg.Read.Limit)
	assert.Equal(t, []string{"fname", "byear"}, cfg.Read.Columns)
	assert.Equal(t, "fname", cfg.Predicate.Column)
	assert.Equal(t, []string{"JOSH", "JOSHUA"}, cfg.Predicate.Values)
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Head)
	assert.Equal(t, 0, cfg.Read.Limit)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BIGTAB_SOURCE", "/data/other.csv")
	t.Setenv("BIGTAB_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/other.csv", cfg.Source)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Read.Limit = -1
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg = Default()
	cfg.Head = -2
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg = Default()
	cfg.Predicate.Values = []string{"JOSH"}
	assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))

	cfg.Predicate.Column = "fname"
	assert.NoError(t, cfg.Validate())
}
