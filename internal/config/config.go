// Package config resolves concierge's state directory and loads its
// optional config file (config.yaml or config.toml).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"concierge/pkg/protocol"
)

// DefaultOrigin is used when neither the config file nor a flag names one.
const DefaultOrigin = "http://localhost:8000"

// configNames are tried in order inside the home directory.
var configNames = []string{"config.yaml", "config.yml", "config.toml"} //nolint:gochecknoglobals // read-only

// Config is the on-disk configuration. Empty fields take defaults.
type Config struct {
	Origin   string `yaml:"origin" toml:"origin"`
	Journal  string `yaml:"journal" toml:"journal"`
	WatchDir string `yaml:"watch_dir" toml:"watch_dir"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
	Filter   string `yaml:"filter" toml:"filter"`
}

// Paths holds resolved state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.concierge or CONCIERGE_HOME
	JournalPath string // journal.db or CONCIERGE_JOURNAL
	LogPath     string // concierge.log or CONCIERGE_LOG
}

// ResolvePaths returns all concierge paths, respecting env var overrides.
// Environment variables:
//   - CONCIERGE_HOME: base directory (default: ~/.concierge)
//   - CONCIERGE_JOURNAL: event journal database (default: $CONCIERGE_HOME/journal.db)
//   - CONCIERGE_LOG: log file used while the TUI owns the terminal
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return &Paths{
		Home:        home,
		JournalPath: resolvePathWithEnv("CONCIERGE_JOURNAL", home, "journal.db"),
		LogPath:     resolvePathWithEnv("CONCIERGE_LOG", home, "concierge.log"),
	}, nil
}

func resolveHome() (string, error) {
	if v := os.Getenv("CONCIERGE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.StateDir), nil
}

func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}

// Load reads the first config file found in dir. A missing file is not an
// error; the returned path is empty in that case. CONCIERGE_ORIGIN and
// CONCIERGE_JOURNAL override the file's origin and journal.
func Load(dir string) (Config, string, error) {
	var cfg Config
	var found string
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, "", fmt.Errorf("stat %s: %w", path, err)
		}
		loaded, err := LoadFile(path)
		if err != nil {
			return Config{}, "", err
		}
		cfg, found = loaded, path
		break
	}
	if v := os.Getenv("CONCIERGE_ORIGIN"); v != "" {
		cfg.Origin = v
	}
	if v := os.Getenv("CONCIERGE_JOURNAL"); v != "" {
		cfg.Journal = v
	}
	return cfg, found, nil
}

// LoadFile parses path as YAML or TOML, chosen by extension.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the user's own config file
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported format", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults fills unset fields from defaults and paths.
func (c Config) WithDefaults(p *Paths) Config {
	if c.Origin == "" {
		c.Origin = DefaultOrigin
	}
	if c.Journal == "" && p != nil {
		c.Journal = p.JournalPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
