// Package config handles TOML-based configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"mediagrab/internal/filesystem"
)

const appName = "mediagrab"

// Config holds all application configuration.
type Config struct {
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	VideoPassword  string `toml:"video_password"`
	// Format is the default format selector, e.g. "best" or a format ID.
	Format string `toml:"format"`
	// MaxHeight caps "best" selection; 0 means no limit.
	MaxHeight    int    `toml:"max_height"`
	SubsLanguage string `toml:"subs_language"`
	Player       string `toml:"player"`
	DownloadDir  string `toml:"download_dir"`
	History      bool   `toml:"history"`
	Debug        bool   `toml:"debug"`
	LogJSON      bool   `toml:"log_json"`
	LogLevel     string `toml:"log_level"`
	LogFile      string `toml:"log_file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TimeoutSeconds: 30,
		Format:         "best",
		SubsLanguage:   "en",
		Player:         "mpv",
		DownloadDir:    "~/Videos/mediagrab",
		History:        true,
		Debug:          false,
		LogLevel:       "warn",
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path through the active filesystem.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validPlayers := map[string]bool{
		"mpv": true, "vlc": true, "iina": true, "celluloid": true,
	}
	if !validPlayers[strings.ToLower(c.Player)] {
		return fmt.Errorf("unsupported player %q (valid: mpv, vlc, iina, celluloid)", c.Player)
	}

	if c.TimeoutSeconds <= 0 || c.TimeoutSeconds > 600 {
		return fmt.Errorf("timeout_seconds must be between 1 and 600, got %d", c.TimeoutSeconds)
	}

	if c.MaxHeight < 0 {
		return fmt.Errorf("max_height cannot be negative")
	}

	if c.Format == "" {
		return fmt.Errorf("format cannot be empty")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unsupported log_level %q: %w", c.LogLevel, err)
	}

	return nil
}

// ExpandDownloadDir resolves ~ in the download directory path.
func (c *Config) ExpandDownloadDir() (string, error) {
	dir := c.DownloadDir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// dataDir returns the XDG-compliant data directory.
func dataDir() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appName), nil
}

// HistoryPath returns the path to the history file.
func HistoryPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.tsv"), nil
}
