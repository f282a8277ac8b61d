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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mountfs/internal/util"
)

var (
	indexTimeout  time.Duration
	indexProgress bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the file index of every root and report its size",
	Long: `Index every root directory and print the number of indexed entries.

The index is what lookups consult to answer "not found" without touching
the disk. This command builds it once in the foreground, which is useful to
measure how long indexing takes and to check the hidden path settings.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().DurationVar(&indexTimeout, "timeout", 30*time.Second, "give up after this long")
	indexCmd.Flags().BoolVar(&indexProgress, "progress", false, "print the entry count while indexing")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.SetUseFileIndexCache(true)
	svc.ResetFileIndexCache()
	idx := svc.FileIndexCache()
	if idx == nil {
		return fmt.Errorf("index cache unavailable")
	}

	out := cmd.OutOrStdout()
	var progress func(time.Duration)
	if indexProgress {
		progress = func(elapsed time.Duration) {
			fmt.Fprintf(out, "\r%d entries after %s", idx.Len(), elapsed.Round(time.Second))
		}
	}

	start := time.Now()
	cfg := util.DefaultPollConfig()
	cfg.Timeout = indexTimeout
	err = util.PollUntil(cmd.Context(), cfg, idx.IsComplete, progress)
	if indexProgress {
		fmt.Fprintln(out)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("index not complete after %s", indexTimeout)
	}
	if err != nil {
		return err
	}

	for _, id := range idx.Identifiers() {
		c := idx.Cache(id)
		if c == nil {
			continue
		}
		fmt.Fprintf(out, "%-12s %8d  %s\n", id, c.Len(), c.Root())
	}
	fmt.Fprintf(out, "indexed %d entries in %s\n", idx.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}
