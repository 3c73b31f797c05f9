// Package config loads and validates notedb configuration from the
// project-level .notedb.yaml file, with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notedb/notedb/internal/errors"
)

const (
	// ConfigFileName is the project config file, found at the notes root.
	ConfigFileName = ".notedb.yaml"
	// DataDirName is the directory holding the index database and lock.
	DataDirName = ".notedb"
	// DatabaseFileName is the index database file inside DataDirName.
	DatabaseFileName = "index.db"

	// CurrentVersion is the config schema version.
	CurrentVersion = 1
)

// Duration wraps time.Duration with YAML support for values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the notedb project configuration.
type Config struct {
	Version int         `yaml:"version"`
	Paths   PathsConfig `yaml:"paths"`
	Sync    SyncConfig  `yaml:"sync"`
	Watch   WatchConfig `yaml:"watch"`
	Log     LogConfig   `yaml:"log"`
}

// PathsConfig controls where notedb looks for notes and state.
type PathsConfig struct {
	// Database is the index database path, relative to the notes root.
	Database string `yaml:"database"`
	// Exclude lists glob patterns for files and directories to skip.
	Exclude []string `yaml:"exclude"`
}

// SyncConfig controls the sync pipeline.
type SyncConfig struct {
	// Extensions lists note file extensions to index.
	Extensions []string `yaml:"extensions"`
	// EncryptedSuffixes lists suffixes of encrypted variants.
	// Matching files are tracked by hash and mtime but not parsed.
	EncryptedSuffixes []string `yaml:"encrypted_suffixes"`
	// Workers is the parse worker count (0 = NumCPU).
	Workers int `yaml:"workers"`
	// WatchdogPoll is how often the watchdog checks batch progress.
	WatchdogPoll Duration `yaml:"watchdog_poll"`
	// WatchdogDeadline is the wall-clock limit for one parse batch.
	WatchdogDeadline Duration `yaml:"watchdog_deadline"`
	// MaxFileSize is the maximum note size in bytes (0 = 10MB).
	MaxFileSize int64 `yaml:"max_file_size"`
	// FollowSymlinks enables following symbolic links during enumeration.
	FollowSymlinks bool `yaml:"follow_symlinks"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is the quiet period before a file-event batch triggers a sync.
	Debounce Duration `yaml:"debounce"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			Database: filepath.Join(DataDirName, DatabaseFileName),
		},
		Sync: SyncConfig{
			Extensions:        []string{".md", ".markdown", ".org"},
			EncryptedSuffixes: []string{".gpg", ".age"},
			Workers:           0,
			WatchdogPoll:      Duration(1 * time.Second),
			WatchdogDeadline:  Duration(5 * time.Minute),
		},
		Watch: WatchConfig{
			Debounce: Duration(2 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at root, falling back to defaults when the
// file is absent. Environment overrides are applied last.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeConfigNotFound,
				fmt.Sprintf("cannot read %s", path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot parse %s", path), err).
				WithSuggestion("check the YAML syntax or delete the file to use defaults")
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to root/.notedb.yaml.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.InternalError("cannot marshal config", err)
	}

	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.ErrCodeFilePermission,
			fmt.Sprintf("cannot write %s", path), err)
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Sync.Workers < 0 {
		return errors.ConfigError("sync.workers must not be negative", nil).
			WithDetail("workers", strconv.Itoa(c.Sync.Workers))
	}
	if len(c.Sync.Extensions) == 0 {
		return errors.ConfigError("sync.extensions must not be empty", nil)
	}
	if c.Sync.WatchdogPoll.Std() <= 0 {
		return errors.ConfigError("sync.watchdog_poll must be positive", nil)
	}
	if c.Sync.WatchdogDeadline.Std() <= 0 {
		return errors.ConfigError("sync.watchdog_deadline must be positive", nil)
	}
	if c.Sync.WatchdogDeadline.Std() < c.Sync.WatchdogPoll.Std() {
		return errors.ConfigError("sync.watchdog_deadline must be at least the poll interval", nil)
	}
	if c.Paths.Database == "" {
		return errors.ConfigError("paths.database must not be empty", nil)
	}
	return nil
}

// EffectiveWorkers resolves the worker count, defaulting to NumCPU.
func (c *Config) EffectiveWorkers() int {
	if c.Sync.Workers > 0 {
		return c.Sync.Workers
	}
	return runtime.NumCPU()
}

// DatabasePath resolves the database path against the notes root.
func (c *Config) DatabasePath(root string) string {
	if filepath.IsAbs(c.Paths.Database) {
		return c.Paths.Database
	}
	return filepath.Join(root, c.Paths.Database)
}

// LockPath returns the sync session lock path for the given root.
func (c *Config) LockPath(root string) string {
	return filepath.Join(root, DataDirName, "sync.lock")
}

// applyEnvOverrides applies NOTEDB_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOTEDB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.Workers = n
		}
	}
	if v := os.Getenv("NOTEDB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NOTEDB_DATABASE"); v != "" {
		c.Paths.Database = v
	}
}
