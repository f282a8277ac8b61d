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

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mountfs/internal/common"
	"mountfs/internal/config"
	"mountfs/internal/vfs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var (
	settingsFile string
	rootOverride string
	logLevelFlag string
	includeFlag  string
	excludeFlag  string

	// settings loaded by the persistent pre-run
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "mountfs",
	Short: "Resolve paths across virtual files, archives and mounted roots",
	Long: `mountfs merges in-memory files, archives and on-disk directories into one
case-insensitive namespace and resolves paths against it.

The search space is described by a settings file (default: ~/.mountfs/settings.yaml,
override with --settings or MOUNTFS_CONFIG_DIR).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return loadSettings()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("mountfs version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&settingsFile, "settings", "", "settings file (default: <config dir>/settings.yaml)")
	pf.StringVar(&rootOverride, "root", "", "primary root directory, overrides the settings")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, off")
	pf.StringVarP(&includeFlag, "include", "i", "all", "backends to search: virtual|package|local|nomounts|all")
	pf.StringVarP(&excludeFlag, "exclude", "x", "none", "backends to skip")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func settingsPath() string {
	if settingsFile != "" {
		return settingsFile
	}
	return config.SettingsPath()
}

func loadSettings() error {
	if settingsFile == "" {
		if err := config.InitConfigDir(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
	}
	s, err := config.Load(settingsPath())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if rootOverride != "" {
		abs, err := filepath.Abs(rootOverride)
		if err != nil {
			return err
		}
		s.Root.Path = abs
	}
	level := s.LogLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	setupLogging(level)
	settings = s
	return nil
}

// setupLogging configures logrus for the CLI. Disabled logging discards
// all output.
func setupLogging(level string) {
	lvl, ok := config.ParseLogLevel(level)
	if !ok {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
}

// openService builds a Service from the loaded settings.
func openService() (*vfs.Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings not loaded")
	}
	return config.NewService(settings)
}

// searchFlags parses the --include and --exclude flags.
func searchFlags() (include, exclude common.SearchFlags, err error) {
	include, ok := common.ParseSearchFlags(includeFlag)
	if !ok {
		return 0, 0, fmt.Errorf("invalid --include %q", includeFlag)
	}
	exclude, ok = common.ParseSearchFlags(excludeFlag)
	if !ok {
		return 0, 0, fmt.Errorf("invalid --exclude %q", excludeFlag)
	}
	return include, exclude, nil
}
