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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"

	"mountfs/internal/cache"
	"mountfs/internal/common"
)

// localHit is one local search candidate that exists on disk.
type localHit struct {
	root     RootPathInfo
	mount    string // "." for the root itself
	absolute bool
	rel      string // root-relative logical path, mount included
	host     string
	isDir    bool
}

// localWalk holds the per-request state of a roots × mounts search.
type localWalk struct {
	s       *Service
	name    string
	include common.SearchFlags
	exclude common.SearchFlags
	// quick accepts a positive index cache answer without touching the disk
	quick bool
	seen  map[string]bool
}

// walkLocal visits every existing local candidate for name in search order:
// roots by descending priority, then mounts in table order with the root
// itself last. Absolute mounts are visited once. visit returns false to stop.
func (s *Service) walkLocal(name string, include, exclude common.SearchFlags, quick bool, visit func(localHit) bool) {
	if !include.Any(common.SearchLocal) {
		return
	}
	w := &localWalk{
		s:       s,
		name:    common.Canonicalize(name),
		include: include,
		exclude: exclude,
		quick:   quick,
		seen:    make(map[string]bool),
	}

	roots := s.roots.Ordered()
	if len(roots) == 0 {
		// absolute mounts are still searchable without a root
		roots = []RootPathInfo{{}}
	}
	mounts := s.mounts.Mounts()

	for _, root := range roots {
		it := NewMountIterator(mounts)
		for {
			dir, absolute, ok := it.Next(include, exclude)
			if !ok {
				break
			}
			hit, found := w.probe(root, dir, absolute)
			if found && !visit(hit) {
				return
			}
		}
	}
}

func (w *localWalk) probe(root RootPathInfo, mount string, absolute bool) (localHit, bool) {
	hit := localHit{root: root, mount: mount, absolute: absolute}
	base := root.Path
	if absolute {
		if w.seen[mount] {
			return hit, false
		}
		w.seen[mount] = true
		base = mount
		hit.rel = w.name
	} else {
		if base == "" {
			return hit, false
		}
		hit.rel = common.JoinPath(mount, w.name)
	}

	// A complete index is authoritative for absence below its root.
	if !absolute && hit.rel != "" {
		if c := w.s.cacheFor(root); c != nil {
			t := c.FindFileType(hit.rel)
			if t == cache.TypeInvalid {
				return hit, false
			}
			if w.quick {
				hit.host = common.HostPath(base, hit.rel)
				hit.isDir = t == cache.TypeDirectory
				return hit, true
			}
		}
	}

	key := cache.PathKey(base, mount, common.NormalizedPath(hit.rel))
	if host, isDir, ok := w.s.paths.Get(key); ok {
		if fi, err := os.Stat(host); err == nil && fi.IsDir() == isDir {
			hit.host, hit.isDir = host, isDir
			return hit, true
		}
		w.s.paths.Delete(key)
	}

	var host string
	if w.include.Includes(common.SearchNoMounts) {
		host = common.HostPath(base, hit.rel)
	} else {
		host = nativize(base, hit.rel)
	}
	fi, err := os.Stat(host)
	if err != nil {
		return hit, false
	}
	if !absolute && w.s.hidden(hit.rel, fi.IsDir()) {
		return hit, false
	}
	hit.host, hit.isDir = host, fi.IsDir()
	w.s.paths.Set(key, common.NormalizedPath(hit.rel), host, hit.isDir)
	return hit, true
}

func (s *Service) hidden(rel string, isDir bool) bool {
	return s.filter != nil && rel != "" && s.filter.Hidden(rel, isDir)
}

func notFound(op, path string) error {
	return fmt.Errorf("%s %s: %w", op, path, common.ErrNotFound)
}

// --- Open ---

// OpenFile resolves path and opens it with an fopen-style mode.
//
// Resolution order: the custom file handler, then for write modes the
// primary root only, otherwise the virtual tree, the package managers in
// registration order and finally the local roots × mounts. A miss returns
// an error wrapping common.ErrNotFound.
func (s *Service) OpenFile(path, mode string, include, exclude common.SearchFlags) (FileHandle, error) {
	if s.closed.Load() {
		return nil, common.ErrClosed
	}
	if fn := s.customHandler(); fn != nil {
		if h := fn(path, mode); h != nil {
			return h, nil
		}
	}

	m := common.ParseMode(mode)
	if m.Write {
		if !include.Any(common.SearchLocal) {
			return nil, notFound("open", path)
		}
		return s.openWrite(path, mode)
	}

	name := common.Canonicalize(path)
	if include.Any(common.SearchVirtual) {
		if f := s.vtree.File(name); f != nil {
			return newVirtualHandle(name, f, m.Binary), nil
		}
	}
	if include.Any(common.SearchPackage) {
		if h := s.openPackage(name, m.Binary, include, exclude); h != nil {
			return h, nil
		}
	}

	var (
		h      FileHandle
		openEr error
	)
	s.walkLocal(name, include, exclude, false, func(hit localHit) bool {
		if hit.isDir {
			return true
		}
		lh, err := openLocal(hit.host, mode)
		if err != nil {
			openEr = fmt.Errorf("open %s: %w", path, err)
			return false
		}
		s.handles.Allocate(lh, name)
		h = lh
		return false
	})
	if openEr != nil {
		return nil, openEr
	}
	if h == nil {
		log.Debugf("[Service] OpenFile %q: not found (include=%s exclude=%s)", path, include, exclude)
		return nil, notFound("open", path)
	}
	return h, nil
}

// OpenFileMode is OpenFile with a typed mode.
func (s *Service) OpenFileMode(path string, mode common.FileMode, include, exclude common.SearchFlags) (FileHandle, error) {
	return s.OpenFile(path, mode.ModeString(), include, exclude)
}

func (s *Service) openPackage(name string, binary bool, include, exclude common.SearchFlags) FileHandle {
	for _, pm := range s.packageManagers() {
		h, err := pm.OpenFile(name, binary, include, exclude)
		if err == nil && h != nil {
			return h
		}
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			log.Debugf("[Service] package open %q: %v", name, err)
		}
	}
	return nil
}

// openWrite opens primaryRoot/path. Parent directories are not created.
func (s *Service) openWrite(path, mode string) (FileHandle, error) {
	primary, ok := s.roots.Primary()
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, common.ErrNoWritableRoot)
	}
	rel := common.Canonicalize(path)
	if rel == "" {
		return nil, fmt.Errorf("open %s: %w", path, common.ErrInvalidPath)
	}

	lh, err := openLocal(common.HostPath(primary.Path, rel), mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.handles.Allocate(lh, rel)
	s.noteWritten(rel, cache.TypeFile)
	return lh, nil
}

// noteWritten keeps the caches in step with a mutation of the primary root.
func (s *Service) noteWritten(rel string, t cache.Type) {
	s.paths.InvalidatePath(common.NormalizedPath(rel))
	if idx := s.indexManager(); idx != nil {
		if t == cache.TypeInvalid {
			idx.Remove(rel)
		} else {
			idx.Add(rel, t)
		}
	}
}

// --- Queries ---

// Exists reports whether path resolves in any enabled backend.
// An empty name (the root itself) never exists.
func (s *Service) Exists(path string, include, exclude common.SearchFlags) bool {
	if common.Canonicalize(path) == "" {
		return false
	}
	return s.GetFileFlags(path, include, exclude).Valid()
}

// GetFileFlags returns the flags of the first hit, or FileInvalid.
func (s *Service) GetFileFlags(path string, include, exclude common.SearchFlags) common.FileFlags {
	name := common.Canonicalize(path)

	if include.Any(common.SearchVirtual) {
		if node := s.vtree.Lookup(name); node != nil {
			flags := common.FileVirtual | common.FileReadOnly
			if node.IsDir() {
				flags |= common.FileDirectory
			}
			return flags
		}
	}
	if include.Any(common.SearchPackage) {
		for _, pm := range s.packageManagers() {
			if flags, ok := pm.FileFlags(name, include); ok {
				return flags | common.FilePackage
			}
		}
	}

	flags := common.FileInvalid
	s.walkLocal(name, include, exclude, true, func(hit localHit) bool {
		flags = common.FileNone
		if hit.isDir {
			flags = common.FileDirectory
		}
		return false
	})
	return flags
}

// IsFile reports whether path resolves to a file.
func (s *Service) IsFile(path string, include, exclude common.SearchFlags) bool {
	return s.GetFileFlags(path, include, exclude).IsFile()
}

// IsDir reports whether path resolves to a directory.
func (s *Service) IsDir(path string, include, exclude common.SearchFlags) bool {
	return s.GetFileFlags(path, include, exclude).IsDir()
}

// GetFileSize returns the size of the first file path resolves to.
func (s *Service) GetFileSize(path string, include, exclude common.SearchFlags) (int64, error) {
	name := common.Canonicalize(path)

	if include.Any(common.SearchVirtual) {
		if f := s.vtree.File(name); f != nil {
			return f.Size(), nil
		}
	}
	if include.Any(common.SearchPackage) {
		for _, pm := range s.packageManagers() {
			if size, ok := pm.Size(name); ok {
				return int64(size), nil
			}
		}
	}

	var (
		size  int64
		found bool
	)
	s.walkLocal(name, include, exclude, false, func(hit localHit) bool {
		if hit.isDir {
			return true
		}
		fi, err := os.Stat(hit.host)
		if err != nil {
			return true
		}
		size, found = fi.Size(), true
		return false
	})
	if !found {
		return 0, notFound("size", path)
	}
	return size, nil
}

// GetLastWriteTime returns the modification time of the first local hit.
// Virtual and package files have no modification time.
func (s *Service) GetLastWriteTime(path string, include, exclude common.SearchFlags) (time.Time, error) {
	host, ok := s.FindAbsolutePath(path, include, exclude)
	if !ok {
		return time.Time{}, notFound("stat", path)
	}
	fi, err := os.Stat(host)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi.ModTime(), nil
}

// --- Find ---

type nameSet struct {
	seen  map[string]bool
	names []string
}

func (n *nameSet) add(name string) {
	if n.seen == nil {
		n.seen = make(map[string]bool)
	}
	key := strings.ToLower(name)
	if n.seen[key] {
		return
	}
	n.seen[key] = true
	n.names = append(n.names, name)
}

func matchName(target, name string) bool {
	if target == "" {
		return false
	}
	ok, err := doublestar.Match(strings.ToLower(target), strings.ToLower(name))
	return err == nil && ok
}

// FindFiles lists entries matching pattern, a directory followed by a glob
// for the last component ("maps/*.txt"). Results from the virtual tree,
// packages and every root × mount are merged; names are deduplicated
// case-insensitively with the first occurrence kept. With keepPath the
// directory part of pattern is prefixed to every result.
func (s *Service) FindFiles(pattern string, include, exclude common.SearchFlags, keepPath bool) (files, dirs []string) {
	dir, target := common.SplitFind(pattern)
	var fileSet, dirSet nameSet
	prefix := func(n string) string {
		if keepPath && dir != "" {
			return dir + common.Separator + n
		}
		return n
	}

	if include.Any(common.SearchVirtual) {
		for _, node := range s.vtree.List(dir) {
			if !matchName(target, node.Name()) {
				continue
			}
			if node.IsDir() {
				dirSet.add(prefix(node.Name()))
			} else {
				fileSet.add(prefix(node.Name()))
			}
		}
	}
	if include.Any(common.SearchPackage) {
		for _, pm := range s.packageManagers() {
			pf, pd := pm.FindFiles(dir, target, keepPath, include)
			for _, f := range pf {
				fileSet.add(f)
			}
			for _, d := range pd {
				dirSet.add(d)
			}
		}
	}

	s.walkLocal(dir, include, exclude, false, func(hit localHit) bool {
		if !hit.isDir {
			return true
		}
		entries, err := os.ReadDir(hit.host)
		if err != nil {
			return true
		}
		for _, e := range entries {
			if !matchName(target, e.Name()) {
				continue
			}
			fi, err := os.Stat(filepath.Join(hit.host, e.Name()))
			if err != nil {
				continue
			}
			if !hit.absolute && s.hidden(common.JoinPath(hit.rel, e.Name()), fi.IsDir()) {
				continue
			}
			if fi.IsDir() {
				dirSet.add(prefix(e.Name()))
			} else {
				fileSet.add(prefix(e.Name()))
			}
		}
		return true
	})
	return fileSet.names, dirSet.names
}

// --- Path lookups ---

// FindAbsolutePaths returns the host path of every local candidate for
// path, in search order.
func (s *Service) FindAbsolutePaths(path string, include, exclude common.SearchFlags) []string {
	var out []string
	s.walkLocal(path, include, exclude, false, func(hit localHit) bool {
		out = append(out, hit.host)
		return true
	})
	return out
}

// FindAbsolutePath returns the host path of the first local candidate.
func (s *Service) FindAbsolutePath(path string, include, exclude common.SearchFlags) (string, bool) {
	var host string
	s.walkLocal(path, include, exclude, false, func(hit localHit) bool {
		host = hit.host
		return false
	})
	return host, host != ""
}

// FindLocalPath returns the root-relative path (mount included) of the
// first local candidate below a root. Absolute mounts are skipped.
func (s *Service) FindLocalPath(path string, include, exclude common.SearchFlags) (string, bool) {
	var rel string
	found := false
	s.walkLocal(path, include, exclude, false, func(hit localHit) bool {
		if hit.absolute {
			return true
		}
		rel, found = hit.rel, true
		return false
	})
	return rel, found
}

// FindRelativePath converts a host path into a path relative to the first
// root (in search order) that contains it.
func (s *Service) FindRelativePath(hostPath string) (string, bool) {
	abs := filepath.Clean(hostPath)
	for _, root := range s.roots.Ordered() {
		rel, err := filepath.Rel(filepath.FromSlash(root.Path), abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		return common.Canonicalize(rel), true
	}
	return "", false
}

// AbsolutePathToCustomMountPath splits a root-relative path into the first
// relative mount that contains it and the remainder below that mount.
func (s *Service) AbsolutePathToCustomMountPath(path string, include, exclude common.SearchFlags) (mount, rel string, ok bool) {
	parts := common.SplitPath(common.Canonicalize(path))
	it := s.mounts.Iterator()
	for {
		dir, absolute, next := it.Next(include, exclude)
		if !next {
			return "", "", false
		}
		if absolute {
			continue
		}
		if dir == "." {
			return dir, common.JoinPath(parts...), true
		}
		if rest, ok := trimSegments(parts, common.SplitPath(dir)); ok {
			return dir, common.JoinPath(rest...), true
		}
	}
}

// trimSegments strips prefix from parts, comparing segments case-insensitively.
func trimSegments(parts, prefix []string) ([]string, bool) {
	if len(prefix) == 0 || len(prefix) > len(parts) {
		return nil, false
	}
	for i, seg := range prefix {
		if !strings.EqualFold(parts[i], seg) {
			return nil, false
		}
	}
	return parts[len(prefix):], true
}
