// Package config loads the optional treehash configuration file. Every field
// is a pointer (or nil slice) so callers can tell "unset" from a zero value
// and let explicit CLI flags win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional treehash configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Clone    CloneConfig    `toml:"clone"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Workers        *int     `toml:"workers"`
	Exclude        []string `toml:"exclude"`
	Policy         *string  `toml:"policy"`
	Algorithm      *string  `toml:"algorithm"`
	ChunkSize      *string  `toml:"chunk_size"`
	FollowSymlinks *bool    `toml:"follow_symlinks"`
	Format         *string  `toml:"format"`
	BWLimit        *string  `toml:"bwlimit"`
}

// CloneConfig holds defaults for remote tree acquisition.
type CloneConfig struct {
	Depth      *int    `toml:"depth"`
	Ref        *string `toml:"ref"`
	SSHKey     *string `toml:"ssh_key"`
	KnownHosts *string `toml:"known_hosts"`
}

// ThemeConfig holds optional color overrides for terminal output.
type ThemeConfig struct {
	Failure *string `toml:"failure"`
	Path    *string `toml:"path"`
	Muted   *string `toml:"muted"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "treehash", "config.toml")
}

// Load reads the config file from the XDG path. A missing file yields a zero
// Config and no error.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no run could use.
func (c Config) Validate() error {
	if w := c.Defaults.Workers; w != nil && *w < 0 {
		return fmt.Errorf("defaults.workers must not be negative, got %d", *w)
	}
	if d := c.Clone.Depth; d != nil && *d < 0 {
		return fmt.Errorf("clone.depth must not be negative, got %d", *d)
	}
	return nil
}
