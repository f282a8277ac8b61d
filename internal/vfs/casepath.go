package vfs

import (
	"os"
	"path/filepath"
	"strings"

	"mountfs/internal/common"
)

// nativize maps a case-insensitive logical path below base onto the casing
// that exists on disk. Each component is matched first exactly, then
// case-insensitively against the directory listing. Once a component cannot
// be found, it and the rest of the path are appended unchanged, so the
// returned path simply does not exist.
// base itself is taken as-is.
func nativize(base, rel string) string {
	parts := common.SplitPath(rel)
	cur := filepath.Clean(base)
	for i, part := range parts {
		exact := filepath.Join(cur, part)
		if _, err := os.Lstat(exact); err == nil {
			cur = exact
			continue
		}
		match, ok := findCaseInsensitive(cur, part)
		if !ok {
			return filepath.Join(append([]string{cur}, parts[i:]...)...)
		}
		cur = filepath.Join(cur, match)
	}
	return cur
}

func findCaseInsensitive(dir, name string) (string, bool) {
	f, err := os.Open(dir)
	if err != nil {
		return "", false
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil && len(names) == 0 {
		return "", false
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// statFlags reports the flags of a host path: FileDirectory for a
// directory, FileNone for anything else that exists, FileInvalid otherwise.
func statFlags(hostPath string) common.FileFlags {
	fi, err := os.Stat(hostPath)
	if err != nil {
		return common.FileInvalid
	}
	if fi.IsDir() {
		return common.FileDirectory
	}
	return common.FileNone
}
