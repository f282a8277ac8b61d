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

	"github.com/spf13/cobra"

	"mountfs/internal/common"
)

var (
	mkdirParents   bool
	rmRecursive    bool
	cloneOverwrite bool
	writeAppend    bool
	writeParents   bool
)

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a resolved file into the primary root",
	Long: `Copy the file src resolves to (from any backend) to dst below the
primary root. The parent directory of dst must exist.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.CopyFile(args[0], args[1])
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Move a file within the primary root",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.MoveFile(args[0], args[1])
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file from the primary root",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory in the primary root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		if mkdirParents {
			return svc.CreatePath(args[0])
		}
		return svc.CreateDirectory(args[0])
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone <path>",
	Short: "Copy a resolved file into the primary root for editing",
	Long: `Copy the file path resolves to into the same logical location below the
primary root, creating parent directories. An existing copy is kept unless
--overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.CloneToWritePath(args[0], cloneOverwrite)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Write stdin to a file in the primary root",
	Example: `  echo hello | mountfs write notes/hello.txt -p
  date | mountfs write log.txt --append`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing parents")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "remove directories and their contents")
	cloneCmd.Flags().BoolVar(&cloneOverwrite, "overwrite", false, "replace an existing copy")
	writeCmd.Flags().BoolVarP(&writeAppend, "append", "a", false, "append instead of truncating")
	writeCmd.Flags().BoolVarP(&writeParents, "parents", "p", false, "create missing parents")

	rootCmd.AddCommand(cpCmd, mvCmd, rmCmd, mkdirCmd, cloneCmd, writeCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if svc.IsDir(args[0], common.SearchLocalRoot, common.SearchNone) {
		if !rmRecursive {
			return fmt.Errorf("rm %s: %w (use -r)", args[0], common.ErrIsDir)
		}
		return svc.RemoveDirectory(args[0])
	}
	return svc.RemoveFile(args[0])
}

func runWrite(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	name := args[0]
	if parent := common.ParentPath(common.Canonicalize(name)); writeParents && parent != "" {
		if err := svc.CreatePath(parent); err != nil {
			return err
		}
	}
	mode := "wb"
	if writeAppend {
		mode = "ab"
	}
	h, err := svc.OpenFile(name, mode, common.SearchLocal, common.SearchNone)
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, cmd.InOrStdin()); err != nil {
		h.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return h.Close()
}
