package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mountfs/internal/config"
)

var (
	setLogLevel     string
	setIndexCache   bool
	setIndexWorkers int
	setRootPath     string
	setRootPriority int32
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	Long: `Show the effective settings, or change them with "settings set".

Settings are read from <config dir>/settings.yaml unless --settings is
given. The config dir defaults to ~/.mountfs and can be moved with
MOUNTFS_CONFIG_DIR.`,
	Args: cobra.NoArgs,
	RunE: runSettingsShow,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), settingsPath())
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings",
	Example: `  mountfs settings set --log-level debug
  mountfs settings set --index-cache --index-workers 8
  mountfs settings set --root-path ./game --root-priority 5`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	f := settingsSetCmd.Flags()
	f.StringVar(&setLogLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
	f.BoolVar(&setIndexCache, "index-cache", false, "index roots in the background")
	f.IntVar(&setIndexWorkers, "index-workers", 0, "directories indexed in parallel per root")
	f.StringVar(&setRootPath, "root-path", "", "primary root directory")
	f.Int32Var(&setRootPriority, "root-priority", 0, "priority of the primary root")

	settingsCmd.AddCommand(settingsPathCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	data, err := settings.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	changed := false
	if f.Changed("log-level") {
		settings.LogLevel = setLogLevel
		changed = true
	}
	if f.Changed("index-cache") {
		settings.IndexCache = setIndexCache
		changed = true
	}
	if f.Changed("index-workers") {
		if setIndexWorkers < 1 {
			return fmt.Errorf("--index-workers must be at least 1")
		}
		settings.IndexWorkers = setIndexWorkers
		changed = true
	}
	if f.Changed("root-path") {
		settings.Root.Path = setRootPath
		changed = true
	}
	if f.Changed("root-priority") {
		settings.Root.Priority = setRootPriority
		changed = true
	}
	if !changed {
		return cmd.Help()
	}

	if err := config.Save(settingsPath(), settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Settings saved to %s\n", settingsPath())
	return nil
}
