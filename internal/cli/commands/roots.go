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
	"slices"

	"github.com/spf13/cobra"

	"mountfs/internal/common"
	"mountfs/internal/config"
)

var (
	rootPriority  int32
	mountAbsolute bool
	mountMode     string
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Manage root directories",
	Long: `List, add and remove secondary root directories.

Roots are searched by descending priority. The primary root (id "root") is
the only writable one and is configured with the root section of the
settings file or --root.`,
	Args: cobra.NoArgs,
	RunE: runRootsList,
}

var rootsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roots in search order",
	Args:  cobra.NoArgs,
	RunE:  runRootsList,
}

var rootsAddCmd = &cobra.Command{
	Use:   "add <id> <path>",
	Short: "Add a read-only root",
	Example: `  mountfs roots add mods ./mods --priority 10
  mountfs roots add base /opt/game/base`,
	Args: cobra.ExactArgs(2),
	RunE: runRootsAdd,
}

var rootsRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a root",
	Args:    cobra.ExactArgs(1),
	RunE:    runRootsRemove,
}

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "Manage mount directories",
	Long: `List, add and remove mount directories.

A relative mount is searched below every root; an absolute mount is a host
directory searched once. The mode selects the searches that consult the
mount, e.g. "local" or "local|0x100" for a user-defined group.`,
	Args: cobra.NoArgs,
	RunE: runMountsList,
}

var mountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mounts in search order",
	Args:  cobra.NoArgs,
	RunE:  runMountsList,
}

var mountsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a mount directory",
	Example: `  mountfs mounts add content
  mountfs mounts add /srv/shared --absolute`,
	Args: cobra.ExactArgs(1),
	RunE: runMountsAdd,
}

var mountsRemoveCmd = &cobra.Command{
	Use:     "remove <path>",
	Aliases: []string{"rm"},
	Short:   "Remove a mount directory",
	Args:    cobra.ExactArgs(1),
	RunE:    runMountsRemove,
}

func init() {
	rootsAddCmd.Flags().Int32VarP(&rootPriority, "priority", "p", 0, "search priority, higher first")
	mountsAddCmd.Flags().BoolVar(&mountAbsolute, "absolute", false, "treat the path as a host directory")
	mountsAddCmd.Flags().StringVar(&mountMode, "mode", "local", "search mode of the mount")

	rootsCmd.AddCommand(rootsListCmd, rootsAddCmd, rootsRemoveCmd)
	mountsCmd.AddCommand(mountsListCmd, mountsAddCmd, mountsRemoveCmd)
	rootCmd.AddCommand(rootsCmd, mountsCmd)
}

func runRootsList(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	for _, r := range svc.AbsoluteRootPaths() {
		access := "ro"
		if r.Writable() {
			access = "rw"
		}
		fmt.Fprintf(out, "%-12s %6d  %s  %s\n", r.Identifier, r.Priority, access, r.Path)
	}
	return nil
}

func runRootsAdd(cmd *cobra.Command, args []string) error {
	id, path := args[0], args[1]
	for _, r := range settings.Roots {
		if r.ID == id {
			return fmt.Errorf("root %s: %w", id, common.ErrDuplicateRoot)
		}
	}
	settings.Roots = append(settings.Roots, config.RootConfig{ID: id, Path: path, Priority: rootPriority})
	if err := config.Save(settingsPath(), settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added root %s: %s (priority %d)\n", id, path, rootPriority)
	return nil
}

func runRootsRemove(cmd *cobra.Command, args []string) error {
	id := args[0]
	n := len(settings.Roots)
	settings.Roots = slices.DeleteFunc(settings.Roots, func(r config.RootConfig) bool { return r.ID == id })
	if len(settings.Roots) == n {
		return fmt.Errorf("root %s: %w", id, common.ErrNotFound)
	}
	if err := config.Save(settingsPath(), settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed root %s\n", id)
	return nil
}

func runMountsList(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	for _, m := range svc.Mounts() {
		kind := "relative"
		if m.Absolute {
			kind = "absolute"
		}
		fmt.Fprintf(out, "%-8s %-24s %s\n", kind, m.SearchMode, displayMount(m.Directory))
	}
	return nil
}

func displayMount(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func runMountsAdd(cmd *cobra.Command, args []string) error {
	m := config.MountConfig{Path: args[0], Absolute: mountAbsolute, Mode: mountMode}
	if _, err := m.SearchMode(); err != nil {
		return err
	}
	for _, existing := range settings.Mounts {
		if existing.Absolute == m.Absolute && common.ComparePath(existing.Path, m.Path) {
			return fmt.Errorf("mount %s already exists", m.Path)
		}
	}
	settings.Mounts = append(settings.Mounts, m)
	if err := config.Save(settingsPath(), settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added mount %s\n", m.Path)
	return nil
}

func runMountsRemove(cmd *cobra.Command, args []string) error {
	n := len(settings.Mounts)
	settings.Mounts = slices.DeleteFunc(settings.Mounts, func(m config.MountConfig) bool {
		return m.Path == args[0] || (!m.Absolute && common.ComparePath(m.Path, args[0]))
	})
	if len(settings.Mounts) == n {
		return fmt.Errorf("mount %s: %w", args[0], common.ErrNotFound)
	}
	if err := config.Save(settingsPath(), settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed mount %s\n", args[0])
	return nil
}
