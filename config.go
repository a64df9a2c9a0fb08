package stave

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the stave runtime configuration
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`

	// Store configuration
	Store StoreConfig `yaml:"store"`

	// Undo configuration
	Undo UndoConfig `yaml:"undo"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig contains event store settings
type StoreConfig struct {
	// Adapter is the store adapter (memory)
	Adapter string `yaml:"adapter"`

	// Serializer is the event serializer (json, msgpack)
	Serializer string `yaml:"serializer"`

	// SnapshotInterval is how many events a stream accrues between
	// snapshots. Zero disables snapshotting.
	SnapshotInterval int64 `yaml:"snapshot_interval"`
}

// UndoConfig contains undo/redo settings
type UndoConfig struct {
	// MaxDepth is the per-stream undo/redo stack bound
	MaxDepth int `yaml:"max_depth"`

	// MaxBatch is the largest accepted batch undo/redo count
	MaxBatch int `yaml:"max_batch"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Pretty enables human-readable console output instead of JSON
	Pretty bool `yaml:"pretty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Store: StoreConfig{
			Adapter:          "memory",
			Serializer:       "json",
			SnapshotInterval: 0,
		},
		Undo: UndoConfig{
			MaxDepth: DefaultMaxUndoDepth,
			MaxBatch: MaxBatchCount,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name
const ConfigFileName = "stave.yaml"

// LoadConfig loads configuration from the specified directory
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	return LoadConfigFile(path)
}

// LoadConfigFile loads configuration from a specific file path
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save saves the configuration to the specified directory
func (c *Config) Save(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	return c.SaveFile(path)
}

// SaveFile saves the configuration to a specific file path
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// applyDefaults fills zero-valued fields so a sparse config file works.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Store.Adapter == "" {
		c.Store.Adapter = def.Store.Adapter
	}
	if c.Store.Serializer == "" {
		c.Store.Serializer = def.Store.Serializer
	}
	if c.Undo.MaxDepth == 0 {
		c.Undo.MaxDepth = def.Undo.MaxDepth
	}
	if c.Undo.MaxBatch == 0 {
		c.Undo.MaxBatch = def.Undo.MaxBatch
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errs []string

	if c.Store.Adapter != "memory" {
		errs = append(errs, "store.adapter must be 'memory'")
	}

	if c.Store.Serializer != "json" && c.Store.Serializer != "msgpack" {
		errs = append(errs, "store.serializer must be 'json' or 'msgpack'")
	}

	if c.Store.SnapshotInterval < 0 {
		errs = append(errs, "store.snapshot_interval must not be negative")
	}

	if c.Undo.MaxDepth < 1 {
		errs = append(errs, "undo.max_depth must be at least 1")
	}

	if c.Undo.MaxBatch < 1 || c.Undo.MaxBatch > MaxBatchCount {
		errs = append(errs, "undo.max_batch must be between 1 and 50")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	return errs
}
