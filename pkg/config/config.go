package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/KevoDB/reveldb/pkg/common/log"
)

const (
	DefaultConfigFileName = "reveldb.json"
	DefaultLogFileName    = "000001.log"
	CurrentConfigVersion  = 1
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("config file not found")
)

// SyncMode controls when appended records are flushed to stable storage.
type SyncMode int

const (
	SyncNone SyncMode = iota
	SyncBatch
	SyncImmediate
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncBatch:
		return "batch"
	case SyncImmediate:
		return "immediate"
	default:
		return "SyncMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseSyncMode parses the textual form used in config files and the environment.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return SyncNone, nil
	case "batch":
		return SyncBatch, nil
	case "immediate":
		return SyncImmediate, nil
	}
	return 0, fmt.Errorf("%w: unknown sync mode %q", ErrInvalidConfig, s)
}

func (m SyncMode) MarshalText() ([]byte, error) {
	if m < SyncNone || m > SyncImmediate {
		return nil, fmt.Errorf("%w: unknown sync mode %d", ErrInvalidConfig, int(m))
	}
	return []byte(m.String()), nil
}

func (m *SyncMode) UnmarshalText(text []byte) error {
	parsed, err := ParseSyncMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RecoveryMode decides what happens when replay meets a damaged record.
type RecoveryMode int

const (
	// RecoveryStrict aborts recovery on any corruption.
	RecoveryStrict RecoveryMode = iota
	// RecoveryTruncateTail ends the log at the last verified entry and
	// discards everything after it.
	RecoveryTruncateTail
)

func (m RecoveryMode) String() string {
	switch m {
	case RecoveryStrict:
		return "strict"
	case RecoveryTruncateTail:
		return "truncate_tail"
	default:
		return "RecoveryMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseRecoveryMode parses the textual form used in config files and the environment.
func ParseRecoveryMode(s string) (RecoveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return RecoveryStrict, nil
	case "truncate_tail", "truncate-tail":
		return RecoveryTruncateTail, nil
	}
	return 0, fmt.Errorf("%w: unknown recovery mode %q", ErrInvalidConfig, s)
}

func (m RecoveryMode) MarshalText() ([]byte, error) {
	if m < RecoveryStrict || m > RecoveryTruncateTail {
		return nil, fmt.Errorf("%w: unknown recovery mode %d", ErrInvalidConfig, int(m))
	}
	return []byte(m.String()), nil
}

func (m *RecoveryMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRecoveryMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Config struct {
	Version int `json:"version"`

	// Log file configuration
	LogFileName  string       `json:"log_file_name"`
	SyncMode     SyncMode     `json:"sync_mode"`
	SyncBytes    int64        `json:"sync_bytes"`
	RecoveryMode RecoveryMode `json:"recovery_mode"`

	// Logging
	LogLevel string `json:"log_level"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,

		LogFileName:  DefaultLogFileName,
		SyncMode:     SyncImmediate,
		SyncBytes:    1024 * 1024, // 1MB
		RecoveryMode: RecoveryStrict,

		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if c.LogFileName == "" {
		return fmt.Errorf("%w: log file name not specified", ErrInvalidConfig)
	}

	if filepath.Base(c.LogFileName) != c.LogFileName {
		return fmt.Errorf("%w: log file name %q must not contain a directory", ErrInvalidConfig, c.LogFileName)
	}

	if c.SyncMode < SyncNone || c.SyncMode > SyncImmediate {
		return fmt.Errorf("%w: unknown sync mode %d", ErrInvalidConfig, int(c.SyncMode))
	}

	if c.SyncMode == SyncBatch && c.SyncBytes <= 0 {
		return fmt.Errorf("%w: sync bytes must be positive in batch mode", ErrInvalidConfig)
	}

	if c.RecoveryMode < RecoveryStrict || c.RecoveryMode > RecoveryTruncateTail {
		return fmt.Errorf("%w: unknown recovery mode %d", ErrInvalidConfig, int(c.RecoveryMode))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}

	return nil
}

// LoadFromEnv overrides fields from REVELDB_* environment variables.
// Values that fail to parse are ignored.
func (c *Config) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := os.Getenv("REVELDB_LOG_FILE_NAME"); val != "" {
		c.LogFileName = val
	}

	if val := os.Getenv("REVELDB_SYNC_MODE"); val != "" {
		if mode, err := ParseSyncMode(val); err == nil {
			c.SyncMode = mode
		}
	}

	if val := os.Getenv("REVELDB_SYNC_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.SyncBytes = n
		}
	}

	if val := os.Getenv("REVELDB_RECOVERY_MODE"); val != "" {
		if mode, err := ParseRecoveryMode(val); err == nil {
			c.RecoveryMode = mode
		}
	}

	if val := os.Getenv("REVELDB_LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
}

// LoadConfig reads the config file stored in dir.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, DefaultConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the config file in dir
func (c *Config) Save(dir string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFileName)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Clone returns a copy of the configuration that can be modified independently.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Config{
		Version:      c.Version,
		LogFileName:  c.LogFileName,
		SyncMode:     c.SyncMode,
		SyncBytes:    c.SyncBytes,
		RecoveryMode: c.RecoveryMode,
		LogLevel:     c.LogLevel,
	}
}
