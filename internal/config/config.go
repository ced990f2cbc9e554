// Package config loads ffpull settings with viper.
//
// Sources, lowest precedence first: built-in defaults, the config file
// ($UserConfigDir/ffpull/config.{yaml,toml,json} or --config), and
// FFPULL_* environment variables (FFPULL_SYNC_BRANCH overrides sync.branch).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FFPULL"

// AppName names the per-user config and cache directories.
const AppName = "ffpull"

// Config is the effective configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
	History HistoryConfig `mapstructure:"history"`
	Serve   ServeConfig   `mapstructure:"serve"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// StoreConfig locates the project list.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SyncConfig controls the sync engine.
type SyncConfig struct {
	Branch       string        `mapstructure:"branch"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// LogConfig controls the in-app log buffer and the rotating process log.
type LogConfig struct {
	Capacity   int    `mapstructure:"capacity"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

// HistoryConfig controls the sync history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServeConfig controls the HTTP server.
type ServeConfig struct {
	Port int `mapstructure:"port"`
}

// Dirs returns the per-user config and cache directories, falling back to
// the home directory and then the working directory.
func Dirs() (configDir, cacheDir string) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = fallbackDir(".config")
	}
	cacheDir, err = os.UserCacheDir()
	if err != nil {
		cacheDir = fallbackDir(".cache")
	}
	return configDir, cacheDir
}

func fallbackDir(name string) string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, name)
	}
	return "."
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	configDir, cacheDir := Dirs()

	v.SetDefault("store.path", filepath.Join(configDir, "github_project_manager.json"))
	v.SetDefault("sync.branch", "master")
	v.SetDefault("sync.fetch_timeout", 5*time.Minute)
	v.SetDefault("log.capacity", 1000)
	v.SetDefault("log.file", filepath.Join(cacheDir, AppName, AppName+".log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.verbose", false)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(configDir, AppName, "history.db"))
	v.SetDefault("serve.port", 8080)
}

// New returns a viper instance with defaults, env binding and the config
// search path set up. file, when non-empty, is used instead of searching.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		configDir, _ := Dirs()
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(configDir, AppName))
	}
	return v
}

// Load reads the configuration. A missing config file is not an error when
// searching; an explicitly named file must exist.
func Load(file string) (*Config, error) {
	return LoadFrom(New(file), file != "")
}

// LoadFrom reads v into a Config. When explicit is false a missing config
// file is ignored.
func LoadFrom(v *viper.Viper, explicit bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Sync.Branch == "" {
		return fmt.Errorf("sync.branch must not be empty")
	}
	if c.Sync.FetchTimeout <= 0 {
		return fmt.Errorf("sync.fetch_timeout must be positive (got %s)", c.Sync.FetchTimeout)
	}
	if c.Log.Capacity <= 0 {
		return fmt.Errorf("log.capacity must be positive (got %d)", c.Log.Capacity)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port must be between 0 and 65535 (got %d)", c.Serve.Port)
	}
	return nil
}

// SyncLockPath is the cross-process lock held for the duration of a batch.
func (c *Config) SyncLockPath() string {
	return c.Store.Path + ".sync.lock"
}

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"store": map[string]any{
			"path": c.Store.Path,
		},
		"sync": map[string]any{
			"branch":        c.Sync.Branch,
			"fetch_timeout": c.Sync.FetchTimeout.String(),
		},
		"log": map[string]any{
			"capacity":     c.Log.Capacity,
			"file":         c.Log.File,
			"max_size_mb":  c.Log.MaxSizeMB,
			"max_backups":  c.Log.MaxBackups,
			"max_age_days": c.Log.MaxAgeDays,
			"verbose":      c.Log.Verbose,
		},
		"history": map[string]any{
			"enabled": c.History.Enabled,
			"path":    c.History.Path,
		},
		"serve": map[string]any{
			"port": c.Serve.Port,
		},
	}
}
