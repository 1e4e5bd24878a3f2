package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, StoreSQLite, cfg.Store.Type)
	assert.Equal(t, ".", cfg.Model.Dir)
	assert.Equal(t, DefaultFetchBatchSize, cfg.BatchSize())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParseExplicitZeroBatchSize(t *testing.T) {
	cfg, err := Parse([]byte("fetch_batch_size: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.BatchSize())
}

func TestCloneSharesNothing(t *testing.T) {
	cfg, err := Parse([]byte("fetch_batch_size: 10\n"))
	require.NoError(t, err)

	clone := cfg.Clone()
	*cfg.FetchBatchSize = 99
	cfg.Store.Name = "changed"

	assert.Equal(t, 10, clone.BatchSize())
	assert.NotEqual(t, "changed", clone.Store.Name)

	var unset Config
	assert.Nil(t, unset.Clone().FetchBatchSize)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("model: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Model.Name = "People"
		cfg.Store.Name = "people"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, "model.name is required"},
		{"missing model dir", func(c *Config) { c.Model.Dir = " " }, "model.dir is required"},
		{"missing store name", func(c *Config) { c.Store.Name = "" }, "store.name is required"},
		{"store name with slash", func(c *Config) { c.Store.Name = "a/b" }, "path separators"},
		{"bad store type", func(c *Config) { c.Store.Type = "cloud" }, "store.type"},
		{"negative batch", func(c *Config) { n := -1; c.FetchBatchSize = &n }, "fetch_batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	err := DefaultConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.name")
	assert.Contains(t, err.Error(), "store.name")
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Name = "people"
	cfg.Store.Dir = "/data"

	cfg.Store.Type = StoreSQLite
	assert.Equal(t, filepath.Join("/data", "people.sqlite"), cfg.StorePath())

	cfg.Store.Type = StoreBinary
	assert.Equal(t, filepath.Join("/data", "people.bolt"), cfg.StorePath())

	cfg.Store.Type = StoreMemory
	assert.Equal(t, ":memory:", cfg.StorePath())
}

func TestStorePathDefaultsToDocuments(t *testing.T) {
	docs := t.TempDir()
	t.Setenv("XDG_DOCUMENTS_DIR", docs)

	cfg := DefaultConfig()
	cfg.Store.Name = "people"

	assert.Equal(t, filepath.Join(docs, "people.sqlite"), cfg.StorePath())
}

func TestSaveAndLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "datastack.yaml")

	cfg := DefaultConfig()
	cfg.Model.Name = "People"
	cfg.Model.Dir = "models"
	cfg.Store.Name = "people"
	cfg.Store.Type = StoreBinary
	require.NoError(t, cfg.Save(path))

	loaded, loadedPath, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, loadedPath)
	assert.Equal(t, "People", loaded.Model.Name)
	assert.Equal(t, filepath.Join(dir, "nested", "models"), loaded.Model.Dir)
	assert.Equal(t, StoreBinary, loaded.Store.Type)
	assert.Equal(t, DefaultFetchBatchSize, loaded.BatchSize())
}

func TestLoadFromPathMissing(t *testing.T) {
	_, _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestFindConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  name: x\n"), 0644))
	t.Setenv(EnvConfigPath, path)

	assert.Equal(t, path, FindConfigPath())
}

func TestFindConfigPathXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", xdg)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	path := filepath.Join(xdg, ConfigDirName, "config.yaml")
	require.NoError(t, EnsureConfigDir(path))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	assert.Equal(t, path, FindConfigPath())
}

func TestLoadWithoutConfigReturnsDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := Load()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, StoreSQLite, cfg.Store.Type)
}
