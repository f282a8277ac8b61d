package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Print the merged namespace below a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 0, "maximum depth (0: unlimited)")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	dir := ""
	if len(args) > 0 {
		dir = common.Canonicalize(args[0])
	}
	fs := vfs.NewBillyAdapter(svc)
	out := cmd.OutOrStdout()

	return util.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.Trim(strings.TrimPrefix(path, dir), "/")
		if rel == "" {
			return nil
		}
		depth := strings.Count(rel, "/")
		if treeDepth > 0 && depth >= treeDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			name += "/"
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
		return nil
	})
}
