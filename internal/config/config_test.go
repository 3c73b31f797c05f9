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

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Contains(t, cfg.Sync.Extensions, ".md")
	assert.Contains(t, cfg.Sync.Extensions, ".org")
	assert.Contains(t, cfg.Sync.EncryptedSuffixes, ".gpg")
	assert.Equal(t, 5*time.Minute, cfg.Sync.WatchdogDeadline.Std())
	assert.Equal(t, filepath.Join(DataDirName, DatabaseFileName), cfg.Paths.Database)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ReadsYAML(t *testing.T) {
	root := t.TempDir()
	data := `version: 1
sync:
  workers: 3
  extensions: [".md"]
  watchdog_poll: 500ms
  watchdog_deadline: 30s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(data), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Sync.Workers)
	assert.Equal(t, []string{".md"}, cfg.Sync.Extensions)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.WatchdogPoll.Std())
	assert.Equal(t, 30*time.Second, cfg.Sync.WatchdogDeadline.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("sync: [not a map"), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOTEDB_WORKERS", "7")
	t.Setenv("NOTEDB_LOG_LEVEL", "warn")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Sync.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestSave_RoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := NewConfig()
	cfg.Sync.Workers = 4
	cfg.Watch.Debounce = Duration(750 * time.Millisecond)
	require.NoError(t, cfg.Save(root))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Sync.Workers)
	assert.Equal(t, 750*time.Millisecond, loaded.Watch.Debounce.Std())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"negative workers", func(c *Config) { c.Sync.Workers = -1 }, false},
		{"no extensions", func(c *Config) { c.Sync.Extensions = nil }, false},
		{"zero poll", func(c *Config) { c.Sync.WatchdogPoll = 0 }, false},
		{"deadline below poll", func(c *Config) {
			c.Sync.WatchdogPoll = Duration(time.Minute)
			c.Sync.WatchdogDeadline = Duration(time.Second)
		}, false},
		{"empty database path", func(c *Config) { c.Paths.Database = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/notes", DataDirName, DatabaseFileName), cfg.DatabasePath("/notes"))

	cfg.Paths.Database = "/var/lib/notedb/index.db"
	assert.Equal(t, "/var/lib/notedb/index.db", cfg.DatabasePath("/notes"))
}
