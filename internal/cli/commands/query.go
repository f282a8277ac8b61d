package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

var (
	lsLong       bool
	findKeepPath bool
	catStrip     bool
	statAll     bool
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory of the merged namespace",
	Long: `List the entries of a directory across virtual files, packages and roots.

Directories are printed first with a trailing slash. Names are merged
case-insensitively; the first backend in search order wins.

Examples:
  mountfs ls
  mountfs ls maps -l
  mountfs ls maps --include local`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var findCmd = &cobra.Command{
	Use:   "find <pattern>",
	Short: "Find entries matching a glob",
	Long: `Find entries whose last path component matches a glob.

Only the last component of the pattern is a glob; the directory part is
resolved like any other path.

Examples:
  mountfs find "maps/*.map"
  mountfs find "textures/[ab]*" --keep-path`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show how a path resolves",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var existsCmd = &cobra.Command{
	Use:   "exists <path>",
	Short: "Exit with an error unless the path resolves",
	Args:  cobra.ExactArgs(1),
	RunE:  runExists,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file",
	Long: `Print a file from the first backend that has it.

With --strip-comments, "//" line comments and "/* */" block comments are
removed while reading.`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show flags and sizes")
	findCmd.Flags().BoolVar(&findKeepPath, "keep-path", false, "prefix results with the directory of the pattern")
	catCmd.Flags().BoolVar(&catStrip, "strip-comments", false, "remove // and /* */ comments")
	statCmd.Flags().BoolVar(&statAll, "all", false, "list every host path the name resolves to")

	rootCmd.AddCommand(lsCmd, findCmd, statCmd, existsCmd, catCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	include, exclude, err := searchFlags()
	if err != nil {
		return err
	}
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	dir := ""
	if len(args) > 0 {
		dir = common.Canonicalize(args[0])
		if !svc.IsDir(dir, include, exclude) {
			return fmt.Errorf("ls %s: %w", args[0], common.ErrNotFound)
		}
	}
	files, dirs := svc.FindFiles(common.JoinPath(dir, "*"), include, exclude, false)

	out := cmd.OutOrStdout()
	for _, d := range dirs {
		if lsLong {
			fmt.Fprintf(out, "%-8s %10s  %s/\n", describeFlags(svc.GetFileFlags(common.JoinPath(dir, d), include, exclude)), "-", d)
			continue
		}
		fmt.Fprintf(out, "%s/\n", d)
	}
	for _, f := range files {
		if lsLong {
			p := common.JoinPath(dir, f)
			size, _ := svc.GetFileSize(p, include, exclude)
			fmt.Fprintf(out, "%-8s %10d  %s\n", describeFlags(svc.GetFileFlags(p, include, exclude)), size, f)
			continue
		}
		fmt.Fprintln(out, f)
	}
	return nil
}

func runFind(cmd *cobra.Command, args []string) error {
	include, exclude, err := searchFlags()
	if err != nil {
		return err
	}
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	files, dirs := svc.FindFiles(args[0], include, exclude, findKeepPath)
	out := cmd.OutOrStdout()
	for _, d := range dirs {
		fmt.Fprintf(out, "%s/\n", d)
	}
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return nil
}

func runStat(cmd *cobra.Command, args []string) error {
	include, exclude, err := searchFlags()
	if err != nil {
		return err
	}
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	name := args[0]
	flags := svc.GetFileFlags(name, include, exclude)
	if !flags.Valid() {
		return fmt.Errorf("stat %s: %w", name, common.ErrNotFound)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Path:     %s\n", common.Canonicalize(name))
	fmt.Fprintf(out, "Flags:    %s\n", describeFlags(flags))
	if flags.IsFile() {
		if size, err := svc.GetFileSize(name, include, exclude); err == nil {
			fmt.Fprintf(out, "Size:     %d\n", size)
		}
	}
	if host, ok := svc.FindAbsolutePath(name, include, exclude); ok {
		fmt.Fprintf(out, "Host:     %s\n", host)
		if rel, ok := svc.FindLocalPath(name, include, exclude); ok && rel != common.Canonicalize(name) {
			fmt.Fprintf(out, "Local:    %s\n", rel)
		}
		if mtime, err := svc.GetLastWriteTime(name, include, exclude); err == nil {
			fmt.Fprintf(out, "Modified: %s\n", mtime.Format("2006-01-02 15:04:05"))
		}
	}
	if statAll {
		for _, p := range svc.FindAbsolutePaths(name, include, exclude) {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}

func runExists(cmd *cobra.Command, args []string) error {
	include, exclude, err := searchFlags()
	if err != nil {
		return err
	}
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if !svc.Exists(args[0], include, exclude) {
		return fmt.Errorf("%s: %w", args[0], common.ErrNotFound)
	}
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	include, exclude, err := searchFlags()
	if err != nil {
		return err
	}
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	mode := "rb"
	if catStrip {
		mode = "r"
	}
	h, err := svc.OpenFile(args[0], mode, include, exclude)
	if err != nil {
		return err
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	if !catStrip {
		_, err = io.Copy(out, h)
		return err
	}

	r := vfs.NewTextReader(h)
	r.IgnoreComments("//", "")
	r.IgnoreComments("/*", "*/")
	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line)
	}
}

// describeFlags renders file flags as a short list, e.g. "pkg,dir".
func describeFlags(f common.FileFlags) string {
	if !f.Valid() {
		return "invalid"
	}
	var parts []string
	for _, n := range []struct {
		flag common.FileFlags
		name string
	}{
		{common.FileVirtual, "virt"},
		{common.FilePackage, "pkg"},
		{common.FileDirectory, "dir"},
		{common.FileCompressed, "comp"},
		{common.FileEncrypted, "enc"},
		{common.FileReadOnly, "ro"},
	} {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "local"
	}
	return strings.Join(parts, ",")
}
