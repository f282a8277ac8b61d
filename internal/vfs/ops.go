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

package vfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"mountfs/internal/cache"
	"mountfs/internal/common"
	"mountfs/internal/util"
)

// writePath maps a logical path onto the primary root.
func (s *Service) writePath(path string) (rel, host string, err error) {
	primary, ok := s.roots.Primary()
	if !ok {
		return "", "", common.ErrNoWritableRoot
	}
	rel = common.Canonicalize(path)
	if rel == "" {
		return "", "", common.ErrInvalidPath
	}
	return rel, common.HostPath(primary.Path, rel), nil
}

// CreatePath creates path and any missing parents below the primary root.
func (s *Service) CreatePath(path string) error {
	rel, host, err := s.writePath(path)
	if err != nil {
		return fmt.Errorf("create path %s: %w", path, err)
	}
	if err := os.MkdirAll(host, 0o755); err != nil {
		return fmt.Errorf("create path %s: %w", path, err)
	}
	parts := common.SplitPath(rel)
	for i := range parts {
		s.noteWritten(strings.Join(parts[:i+1], common.Separator), cache.TypeDirectory)
	}
	return nil
}

// CreateDirectory creates a single directory below the primary root.
// The parent must exist.
func (s *Service) CreateDirectory(path string) error {
	rel, host, err := s.writePath(path)
	if err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	if err := os.Mkdir(host, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	s.noteWritten(rel, cache.TypeDirectory)
	return nil
}

// RemoveFile deletes a file from the primary root.
func (s *Service) RemoveFile(path string) error {
	rel, host, err := s.writePath(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	fi, err := os.Lstat(host)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("remove %s: %w", path, common.ErrIsDir)
	}
	if err := util.RetryFile(func() error { return os.Remove(host) }); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s.noteWritten(rel, cache.TypeInvalid)
	return nil
}

// RemoveDirectory deletes a directory of the primary root recursively.
func (s *Service) RemoveDirectory(path string) error {
	rel, host, err := s.writePath(path)
	if err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	fi, err := os.Stat(host)
	if err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("remove directory %s: %w", path, common.ErrNotDir)
	}
	if err := util.RetryFile(func() error { return os.RemoveAll(host) }); err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	s.noteWritten(rel, cache.TypeInvalid)
	return nil
}

// RenameFile renames a file or directory inside the primary root.
func (s *Service) RenameFile(oldPath, newPath string) error {
	oldRel, oldHost, err := s.writePath(oldPath)
	if err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	newRel, newHost, err := s.writePath(newPath)
	if err != nil {
		return fmt.Errorf("rename %s: %w", newPath, err)
	}
	if err := util.RetryFile(func() error { return os.Rename(oldHost, newHost) }); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	s.afterRename(oldRel, newRel, newHost)
	return nil
}

func (s *Service) afterRename(oldRel, newRel, newHost string) {
	s.paths.InvalidateRename(common.NormalizedPath(oldRel), common.NormalizedPath(newRel))

	idx := s.indexManager()
	if idx == nil {
		return
	}
	idx.Remove(oldRel)
	t := cache.TypeFile
	if fi, err := os.Stat(newHost); err == nil && fi.IsDir() {
		t = cache.TypeDirectory
	}
	idx.Add(newRel, t)
	if t == cache.TypeDirectory {
		// the moved subtree has to be indexed under its new name
		idx.QueuePath(newHost)
	}
}

// MoveFile moves a file inside the primary root. When a rename is not
// possible across devices the file is copied and the source removed.
func (s *Service) MoveFile(oldPath, newPath string) error {
	err := s.RenameFile(oldPath, newPath)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	log.Debugf("[Service] MoveFile %q: cross-device, copying", oldPath)
	if err := s.CopyFile(oldPath, newPath); err != nil {
		return err
	}
	return s.RemoveFile(oldPath)
}

// CopyFile copies the file src resolves to (any backend) into dst below the
// primary root. Executable bits of a local source are preserved.
func (s *Service) CopyFile(src, dst string) error {
	in, err := s.OpenFile(src, "rb", common.SearchAll, common.SearchNone)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	perm := os.FileMode(0o644)
	if lh, ok := in.(*LocalHandle); ok {
		if fi, err := lh.File().Stat(); err == nil {
			perm |= fi.Mode().Perm() & 0o111
		}
	}

	rel, host, err := s.writePath(dst)
	if err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if lh, ok := in.(*LocalHandle); ok && sameFile(lh.Path(), host) {
		return nil
	}
	out, err := os.OpenFile(host, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	// the umask may have stripped bits at create time
	if err := os.Chmod(host, perm); err != nil {
		log.Debugf("[Service] CopyFile chmod %q: %v", host, err)
	}
	s.noteWritten(rel, cache.TypeFile)
	return nil
}

func sameFile(a, b string) bool {
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// WriteFile writes data to path below the primary root, replacing any
// existing file. Parent directories must exist.
func (s *Service) WriteFile(path string, data []byte) error {
	h, err := s.OpenFile(path, "wb", common.SearchLocal, common.SearchNone)
	if err != nil {
		return err
	}
	if _, err := h.Write(data); err != nil {
		h.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return h.Close()
}

// ReadFile reads the whole file path resolves to.
func (s *Service) ReadFile(path string, include, exclude common.SearchFlags) ([]byte, error) {
	h, err := s.OpenFile(path, "rb", include, exclude)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return io.ReadAll(h)
}

// CloneToWritePath copies the file path currently resolves to into the
// primary root so it can be modified there. Without overwrite an existing
// copy in the primary root is kept.
func (s *Service) CloneToWritePath(path string, overwrite bool) error {
	rel, host, err := s.writePath(path)
	if err != nil {
		return fmt.Errorf("clone %s: %w", path, err)
	}
	if _, err := os.Stat(host); err == nil && !overwrite {
		return nil
	}
	if parent := common.ParentPath(rel); parent != "" {
		if err := s.CreatePath(parent); err != nil {
			return err
		}
	}
	return s.CopyFile(rel, rel)
}

// --- Host paths ---

// OpenSystemFile opens a host path directly, bypassing resolution.
func (s *Service) OpenSystemFile(hostPath, mode string) (FileHandle, error) {
	lh, err := openLocal(hostPath, mode)
	if err != nil {
		return nil, err
	}
	s.handles.Allocate(lh, hostPath)
	return lh, nil
}

// ExistsSystem reports whether a host path exists.
func (s *Service) ExistsSystem(hostPath string) bool {
	return statFlags(hostPath).Valid()
}

// IsSystemFile reports whether a host path is an existing non-directory.
func (s *Service) IsSystemFile(hostPath string) bool {
	return statFlags(hostPath).IsFile()
}

// IsSystemDir reports whether a host path is an existing directory.
func (s *Service) IsSystemDir(hostPath string) bool {
	return statFlags(hostPath).IsDir()
}

// FindSystemFiles lists the entries of a host directory matching the glob
// in the last component of pattern.
func (s *Service) FindSystemFiles(pattern string, keepPath bool) (files, dirs []string) {
	dir, target := filepath.Split(pattern)
	dir = filepath.Clean(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	for _, e := range entries {
		if !matchName(target, e.Name()) {
			continue
		}
		name := e.Name()
		if keepPath {
			name = filepath.Join(dir, name)
		}
		fi, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if fi.IsDir() {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}
	return files, dirs
}
