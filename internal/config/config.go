package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete gittimemachine configuration
type Config struct {
	Backup  BackupConfig  `mapstructure:"backup"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Safety  SafetyConfig  `mapstructure:"safety"`
	Rewrite RewriteConfig `mapstructure:"rewrite"`
	Git     GitConfig     `mapstructure:"git"`
	Logging LoggingConfig `mapstructure:"logging"`
	UI      UIConfig      `mapstructure:"ui"`
}

// BackupConfig controls the safety branch created before every rewrite
type BackupConfig struct {
	// Prefix is inserted between the branch name and the timestamp:
	// <branch>-<prefix>-<epoch-ms> (default: "backup")
	Prefix string `mapstructure:"prefix"`
}

// ScanConfig controls how local-only commits are discovered
type ScanConfig struct {
	// Fetch refreshes the upstream tracking ref before listing (default: true).
	// A failed fetch is logged and ignored.
	Fetch bool `mapstructure:"fetch"`
	// MaxCommits caps the number of commits listed. 0 means no limit.
	MaxCommits int `mapstructure:"max_commits"`
}

// SafetyConfig controls the pre-write checks
type SafetyConfig struct {
	// AllowDirty skips the clean working tree check (default: false)
	AllowDirty bool `mapstructure:"allow_dirty"`
	// StrictRemotes treats a commit reachable from any remote-tracking
	// branch as pushed, not only the upstream (default: false)
	StrictRemotes bool `mapstructure:"strict_remotes"`
}

// RewriteConfig controls timestamp handling
type RewriteConfig struct {
	// SyncCommitDate sets the commit timestamp to the new author timestamp
	// when only the author timestamp is edited (default: true)
	SyncCommitDate bool `mapstructure:"sync_commit_date"`
	// PreserveCommitterDates keeps the commit timestamp of every commit
	// replayed by a rebase instead of resetting it to now (default: true)
	PreserveCommitterDates bool `mapstructure:"preserve_committer_dates"`
}

// GitConfig controls how git is invoked
type GitConfig struct {
	// Binary is the git executable name or path (default: "git")
	Binary string `mapstructure:"binary"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled writes a JSON debug log to File (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log path. Empty means StateDir()/gittimemachine.log
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the log past this size (default: 5)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress"`
}

// ResolveFile returns the log file path, applying the default location.
func (l *LoggingConfig) ResolveFile() string {
	if l.File != "" {
		return expandHome(l.File)
	}
	return filepath.Join(StateDir(), "gittimemachine.log")
}

// UIConfig controls terminal output
type UIConfig struct {
	// Color enables styled output when stdout is a terminal (default: true)
	Color bool `mapstructure:"color"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Backup: BackupConfig{
			Prefix: "backup",
		},
		Scan: ScanConfig{
			Fetch:      true,
			MaxCommits: 0,
		},
		Safety: SafetyConfig{
			AllowDirty:    false,
			StrictRemotes: false,
		},
		Rewrite: RewriteConfig{
			SyncCommitDate:         true,
			PreserveCommitterDates: true,
		},
		Git: GitConfig{
			Binary: "git",
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		UI: UIConfig{
			Color: true,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("backup.prefix", defaults.Backup.Prefix)

	viper.SetDefault("scan.fetch", defaults.Scan.Fetch)
	viper.SetDefault("scan.max_commits", defaults.Scan.MaxCommits)

	viper.SetDefault("safety.allow_dirty", defaults.Safety.AllowDirty)
	viper.SetDefault("safety.strict_remotes", defaults.Safety.StrictRemotes)

	viper.SetDefault("rewrite.sync_commit_date", defaults.Rewrite.SyncCommitDate)
	viper.SetDefault("rewrite.preserve_committer_dates", defaults.Rewrite.PreserveCommitterDates)

	viper.SetDefault("git.binary", defaults.Git.Binary)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("ui.color", defaults.UI.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gittimemachine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gittimemachine"
	}
	return filepath.Join(home, ".config", "gittimemachine")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory used for logs
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "gittimemachine")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gittimemachine"
	}
	return filepath.Join(home, ".local", "state", "gittimemachine")
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
