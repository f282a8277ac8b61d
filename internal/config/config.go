// Copyright 2026 MountFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads mountfs settings and turns them into a Service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"mountfs/internal/artifacts"
	"mountfs/internal/common"
	"mountfs/internal/util"
)

// getConfigDir returns the config directory path.
// Uses MOUNTFS_CONFIG_DIR env var if set, otherwise defaults to ~/.mountfs.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("MOUNTFS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mountfs")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// SettingsPath returns the default settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0o700)
}

// InitConfigDir creates the config directory and writes the default
// settings file if there is none yet.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := SettingsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, artifacts.GlobalSettings, 0o600); err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
	}
	return nil
}

// RootConfig describes the primary root or a secondary root.
type RootConfig struct {
	ID       string `yaml:"id,omitempty"` // secondary roots only
	Path     string `yaml:"path"`
	Priority int32  `yaml:"priority"`
}

// MountConfig describes a mount directory.
type MountConfig struct {
	Path     string `yaml:"path"`
	Absolute bool   `yaml:"absolute,omitempty"`
	Mode     string `yaml:"mode,omitempty"` // default: local
}

// SearchMode parses Mode. An empty mode means local.
func (m MountConfig) SearchMode() (common.SearchFlags, error) {
	if strings.TrimSpace(m.Mode) == "" {
		return common.SearchLocal, nil
	}
	flags, ok := common.ParseSearchFlags(m.Mode)
	if !ok {
		return 0, fmt.Errorf("mount %s: invalid mode %q", m.Path, m.Mode)
	}
	return flags, nil
}

// HiddenConfig selects the paths hidden from local resolution.
type HiddenConfig struct {
	Gitignore bool     `yaml:"gitignore"` // honour .gitignore files of the primary root
	Patterns  []string `yaml:"patterns"`  // gitignore-style patterns
	Includes  []string `yaml:"includes"`  // force-include, overrides patterns and gitignore
}

// Settings is the content of settings.yaml.
type Settings struct {
	LogLevel     string        `yaml:"log_level"` // trace, debug, info, warn, off
	Root         RootConfig    `yaml:"root"`
	Roots        []RootConfig  `yaml:"roots"`
	Mounts       []MountConfig `yaml:"mounts"`
	Packages     []string      `yaml:"packages"`
	IndexCache   bool          `yaml:"index_cache"`
	IndexWorkers int           `yaml:"index_workers"`
	Hidden       HiddenConfig  `yaml:"hidden"`

	// dir is the directory relative root paths are resolved against
	dir string `yaml:"-"`
}

// Defaults parses the embedded default settings.
func Defaults() *Settings {
	var s Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &s); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return &s
}

// Load reads the settings file at path. A missing file yields the embedded
// defaults with relative paths resolved against the current directory.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s := Defaults()
			s.dir, _ = os.Getwd()
			return s, nil
		}
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		s.dir = abs
	}
	return s, nil
}

// Parse decodes settings over the embedded defaults and validates them.
func Parse(data []byte) (*Settings, error) {
	s := Defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks identifiers and mount modes.
func (s *Settings) Validate() error {
	seen := make(map[string]bool)
	for _, r := range s.Roots {
		if r.ID == "" {
			return fmt.Errorf("root %s: missing id", r.Path)
		}
		if r.Path == "" {
			return fmt.Errorf("root %s: missing path", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("root %s: %w", r.ID, common.ErrDuplicateRoot)
		}
		seen[r.ID] = true
	}
	for _, m := range s.Mounts {
		if _, err := m.SearchMode(); err != nil {
			return err
		}
	}
	switch strings.ToLower(s.LogLevel) {
	case "", "off", "none", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", s.LogLevel)
	}
	return nil
}

// Resolve makes a settings path absolute. Relative paths are taken from
// the directory of the settings file.
func (s *Settings) Resolve(path string) string {
	if path == "" {
		path = "."
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	base := s.dir
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, path)
}

// SetDir changes the directory relative paths are resolved against.
func (s *Settings) SetDir(dir string) {
	s.dir = dir
}

// Marshal encodes the settings with the standard file header.
func (s *Settings) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, err
	}
	header := []byte("# MountFS settings\n# See: mountfs settings --help\n\n")
	return append(header, data...), nil
}

// lockTimeout bounds how long Save waits for a concurrent writer.
const lockTimeout = 5 * time.Second

// Save writes the settings to path while holding the settings lock.
func Save(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := tryLock(lock, lockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()

	// write then rename so readers never see a truncated file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func tryLock(lock *flock.Flock, timeout time.Duration) error {
	err := util.TryUntil(util.PollConfig{Timeout: timeout, Interval: 50 * time.Millisecond}, lock.TryLock)
	if errors.Is(err, util.ErrTimeout) {
		return fmt.Errorf("settings are locked by another process")
	}
	if err != nil {
		return fmt.Errorf("failed to acquire settings lock: %w", err)
	}
	return nil
}
