// Package config provides the store configuration for datastack.
//
// A configuration names the model to load, where the store lives and which
// medium backs it. It is read once at startup and never changes afterwards.
//
// Config file locations (priority order):
//  1. $DATASTACK_CONFIG
//  2. ./datastack.yaml
//  3. $XDG_CONFIG_HOME/datastack/config.yaml
//  4. ~/.config/datastack/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StoreType selects the storage medium.
type StoreType string

const (
	StoreSQLite StoreType = "sqlite" // durable file
	StoreBinary StoreType = "binary" // flat file (bbolt)
	StoreMemory StoreType = "memory" // memory only, lost on Close
)

// DefaultFetchBatchSize is the batch size hint applied to fetches when the
// config does not set one.
const DefaultFetchBatchSize = 50

// Config is the store configuration.
type Config struct {
	Model ModelConfig `yaml:"model"`
	Store StoreConfig `yaml:"store"`

	// FetchBatchSize is a pointer so an explicit 0 (no batching) survives
	// applyDefaults.
	FetchBatchSize *int `yaml:"fetch_batch_size,omitempty"`

	Log LogConfig `yaml:"log"`
}

// ModelConfig locates the model definition.
type ModelConfig struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// StoreConfig locates the persistent store.
type StoreConfig struct {
	Name string    `yaml:"name"`
	Type StoreType `yaml:"type"`
	Dir  string    `yaml:"dir,omitempty"`
}

// LogConfig controls the slog handler used by the CLI.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load finds and loads the config file, or returns defaults if none found.
// The returned path is empty when defaults were used.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}

	// Relative model dirs are resolved against the config file.
	if cfg.Model.Dir != "" && !filepath.IsAbs(cfg.Model.Dir) {
		cfg.Model.Dir = filepath.Join(filepath.Dir(path), cfg.Model.Dir)
	}

	return cfg, path, nil
}

// Parse decodes YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the configuration written by `datastack init`.
// Model and store names are left for the user to fill in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = StoreSQLite
	}
	if c.Model.Dir == "" {
		c.Model.Dir = "."
	}
	if c.FetchBatchSize == nil {
		n := DefaultFetchBatchSize
		c.FetchBatchSize = &n
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports every missing or invalid setting. Missing model name,
// model location or store name are configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	if strings.TrimSpace(c.Model.Dir) == "" {
		errs = append(errs, errors.New("model.dir is required"))
	}
	if strings.TrimSpace(c.Store.Name) == "" {
		errs = append(errs, errors.New("store.name is required"))
	} else if strings.ContainsAny(c.Store.Name, `/\`) {
		errs = append(errs, fmt.Errorf("store.name %q must not contain path separators", c.Store.Name))
	}
	switch c.Store.Type {
	case StoreSQLite, StoreBinary, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store.type %q is not one of sqlite, binary, memory", c.Store.Type))
	}
	if c.FetchBatchSize != nil && *c.FetchBatchSize < 0 {
		errs = append(errs, fmt.Errorf("fetch_batch_size must not be negative, got %d", *c.FetchBatchSize))
	}
	return errors.Join(errs...)
}

// Clone returns a copy of c that shares no memory with it.
func (c *Config) Clone() Config {
	out := *c
	if c.FetchBatchSize != nil {
		n := *c.FetchBatchSize
		out.FetchBatchSize = &n
	}
	return out
}

// BatchSize returns the effective fetch batch size. Zero disables batching.
func (c *Config) BatchSize() int {
	if c.FetchBatchSize == nil {
		return DefaultFetchBatchSize
	}
	return *c.FetchBatchSize
}

// StorePath returns the location of the store file for durable media, or
// ":memory:" for the memory medium.
func (c *Config) StorePath() string {
	switch c.Store.Type {
	case StoreMemory:
		return ":memory:"
	case StoreBinary:
		return filepath.Join(c.storeDir(), c.Store.Name+".bolt")
	default:
		return filepath.Join(c.storeDir(), c.Store.Name+".sqlite")
	}
}

func (c *Config) storeDir() string {
	if c.Store.Dir != "" {
		return c.Store.Dir
	}
	return DocumentsDir()
}
