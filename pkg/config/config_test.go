package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Version != CurrentConfigVersion {
		t.Errorf("expected version %d, got %d", CurrentConfigVersion, cfg.Version)
	}

	if cfg.LogFileName != DefaultLogFileName {
		t.Errorf("expected log file name %s, got %s", DefaultLogFileName, cfg.LogFileName)
	}

	if cfg.SyncMode != SyncImmediate {
		t.Errorf("expected sync mode %s, got %s", SyncImmediate, cfg.SyncMode)
	}

	if cfg.RecoveryMode != RecoveryStrict {
		t.Errorf("expected recovery mode %s, got %s", RecoveryStrict, cfg.RecoveryMode)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()

	// Valid config
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	testCases := []struct {
		name     string
		mutate   func(*Config)
		expected string
	}{
		{
			name: "invalid version",
			mutate: func(c *Config) {
				c.Version = 0
			},
			expected: "invalid configuration: invalid version 0",
		},
		{
			name: "empty log file name",
			mutate: func(c *Config) {
				c.LogFileName = ""
			},
			expected: "invalid configuration: log file name not specified",
		},
		{
			name: "log file name with directory",
			mutate: func(c *Config) {
				c.LogFileName = "sub/000001.log"
			},
			expected: `invalid configuration: log file name "sub/000001.log" must not contain a directory`,
		},
		{
			name: "batch mode without threshold",
			mutate: func(c *Config) {
				c.SyncMode = SyncBatch
				c.SyncBytes = 0
			},
			expected: "invalid configuration: sync bytes must be positive in batch mode",
		},
		{
			name: "unknown recovery mode",
			mutate: func(c *Config) {
				c.RecoveryMode = RecoveryMode(9)
			},
			expected: "invalid configuration: unknown recovery mode 9",
		},
		{
			name: "unknown log level",
			mutate: func(c *Config) {
				c.LogLevel = "loud"
			},
			expected: `invalid configuration: unknown log level "loud"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if err.Error() != tc.expected {
				t.Errorf("expected error %q, got %q", tc.expected, err.Error())
			}
		})
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := NewDefaultConfig()
	cfg.SyncMode = SyncBatch
	cfg.SyncBytes = 4096
	cfg.RecoveryMode = RecoveryTruncateTail

	if err := cfg.Save(dir); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFileName+".tmp")); !os.IsNotExist(err) {
		t.Errorf("temporary config file should have been renamed")
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded.SyncMode != SyncBatch || loaded.SyncBytes != 4096 {
		t.Errorf("expected batch sync at 4096 bytes, got %s at %d", loaded.SyncMode, loaded.SyncBytes)
	}
	if loaded.RecoveryMode != RecoveryTruncateTail {
		t.Errorf("expected recovery mode %s, got %s", RecoveryTruncateTail, loaded.RecoveryMode)
	}
}

func TestConfigFileUsesTextModes(t *testing.T) {
	dir := t.TempDir()
	if err := NewDefaultConfig().Save(dir); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultConfigFileName))
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}
	if raw["sync_mode"] != "immediate" {
		t.Errorf("expected sync_mode \"immediate\", got %v", raw["sync_mode"])
	}
	if raw["recovery_mode"] != "strict" {
		t.Errorf("expected recovery_mode \"strict\", got %v", raw["recovery_mode"])
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"version":1,"log_file_name":"000001.log","sync_mode":"sometimes"}`)
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFileName), data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := LoadConfig(dir)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"version":1,"recovery_mode":"truncate_tail"}`)
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFileName), data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LogFileName != DefaultLogFileName {
		t.Errorf("expected default log file name, got %q", cfg.LogFileName)
	}
	if cfg.RecoveryMode != RecoveryTruncateTail {
		t.Errorf("expected truncate_tail, got %s", cfg.RecoveryMode)
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("REVELDB_SYNC_MODE", "none")
	t.Setenv("REVELDB_RECOVERY_MODE", "truncate-tail")
	t.Setenv("REVELDB_LOG_LEVEL", "DEBUG")
	t.Setenv("REVELDB_LOG_FILE_NAME", "wal.log")
	t.Setenv("REVELDB_SYNC_BYTES", "not-a-number")

	cfg := NewDefaultConfig()
	cfg.LoadFromEnv()

	if cfg.SyncMode != SyncNone {
		t.Errorf("expected sync mode none, got %s", cfg.SyncMode)
	}
	if cfg.RecoveryMode != RecoveryTruncateTail {
		t.Errorf("expected truncate_tail, got %s", cfg.RecoveryMode)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.LogFileName != "wal.log" {
		t.Errorf("expected log file wal.log, got %s", cfg.LogFileName)
	}
	if cfg.SyncBytes != 1024*1024 {
		t.Errorf("invalid sync bytes should not change the value, got %d", cfg.SyncBytes)
	}
}

func TestConfigUpdateAndClone(t *testing.T) {
	cfg := NewDefaultConfig()
	clone := cfg.Clone()

	cfg.Update(func(c *Config) {
		c.SyncMode = SyncNone
	})

	if cfg.SyncMode != SyncNone {
		t.Errorf("expected updated sync mode none, got %s", cfg.SyncMode)
	}
	if clone.SyncMode != SyncImmediate {
		t.Errorf("clone should be unaffected, got %s", clone.SyncMode)
	}
}

func TestValidateAcceptsLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "fatal", "WARN", ""} {
		cfg := NewDefaultConfig()
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			t.Errorf("level %q: unexpected error %v", level, err)
		}
	}
}
