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
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"mountfs/internal/cache"
	"mountfs/internal/common"
)

// pathCacheTTL bounds how long a nativized host path is trusted.
const pathCacheTTL = 2 * time.Second

// pathCacheMaxEntries caps memory usage of the nativized path cache.
const pathCacheMaxEntries = 10000

// Options configures a Service.
type Options struct {
	// RootPath is the writable primary root. It is created if missing.
	// May be empty; write operations then fail with ErrNoWritableRoot.
	RootPath     string
	RootPriority int32

	// UseIndexCache starts a background index of every root.
	UseIndexCache bool
	// IndexWorkers is the worker count per index cache (0 = default).
	IndexWorkers int

	// Filter hides root-relative paths from local resolution and indexing.
	Filter cache.Filter
}

type namedManager struct {
	name string
	pm   PackageManager
}

// Service resolves logical paths against the virtual tree, the registered
// package managers and the local roots × mounts search space.
//
// Each registry has its own lock, so resolution may run concurrently with
// mount, root and package mutations.
type Service struct {
	vtree  *VTree
	mounts *MountTable
	roots  *RootRegistry

	pkgMu    sync.Mutex
	packages []namedManager

	handlerMu sync.RWMutex
	handler   CustomFileHandler

	// index is nil while the file index cache is disabled
	indexMu sync.RWMutex
	index   *cache.RootPathCacheManager
	workers int

	// paths caches case nativization results with TTL-based expiration.
	paths  *cache.PathCache
	filter cache.Filter

	handles *HandleManager
	closed  atomic.Bool
}

// NewService creates a Service. A root path that cannot be created is a
// construction failure.
func NewService(opts Options) (*Service, error) {
	s := &Service{
		vtree:   NewVTree(),
		mounts:  NewMountTable(),
		roots:   NewRootRegistry(),
		workers: opts.IndexWorkers,
		paths:   cache.NewPathCache(pathCacheTTL, pathCacheMaxEntries),
		filter:  opts.Filter,
		handles: NewHandleManager(),
	}

	if opts.RootPath != "" {
		if err := os.MkdirAll(opts.RootPath, 0o755); err != nil {
			return nil, fmt.Errorf("create root path: %w", err)
		}
		s.roots.SetPrimary(opts.RootPath, opts.RootPriority)
	}
	if opts.UseIndexCache {
		s.SetUseFileIndexCache(true)
	}

	log.Debugf("[Service] created root=%q index=%v", opts.RootPath, opts.UseIndexCache)
	return s, nil
}

// --- Root paths ---

// SetAbsoluteRootPath installs or replaces the writable primary root.
// The directory is created if missing; failure to create it is ignored.
func (s *Service) SetAbsoluteRootPath(path string, priority int32) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		log.Debugf("[Service] SetAbsoluteRootPath: mkdir %q: %v", path, err)
	}
	info := s.roots.SetPrimary(path, priority)
	s.paths.Invalidate()

	if idx := s.indexManager(); idx != nil {
		idx.SetPrimaryRoot(info.Path)
	}
}

// AddSecondaryAbsoluteReadOnlyRootPath registers a read-only root. The
// identifiers "root" and "primary" are reserved and identifiers must be
// unique; both are invariant violations.
func (s *Service) AddSecondaryAbsoluteReadOnlyRootPath(identifier, path string, priority int32) error {
	info, err := s.roots.AddSecondary(identifier, path, priority)
	if err != nil {
		return err
	}
	s.paths.Invalidate()

	if idx := s.indexManager(); idx != nil {
		if err := idx.AddRoot(info.Identifier, info.Path); err != nil {
			return err
		}
	}
	log.Debugf("[Service] added root %s=%q priority=%d", identifier, info.Path, priority)
	return nil
}

// RemoveSecondaryRootPath drops a read-only root and its index cache.
func (s *Service) RemoveSecondaryRootPath(identifier string) bool {
	if !s.roots.Remove(identifier) {
		return false
	}
	s.paths.Invalidate()
	if idx := s.indexManager(); idx != nil {
		idx.RemoveRoot(identifier)
	}
	return true
}

// PrimaryRootPath returns the writable root directory.
func (s *Service) PrimaryRootPath() (string, bool) {
	info, ok := s.roots.Primary()
	return info.Path, ok
}

// AbsoluteRootPaths returns the roots in search order.
func (s *Service) AbsoluteRootPaths() []RootPathInfo {
	return s.roots.Ordered()
}

// RootPaths returns the roots in registration order.
func (s *Service) RootPaths() []RootPathInfo {
	return s.roots.Entries()
}

// --- Mounts ---

// AddCustomMountDirectory adds a mount or updates the search mode of an
// existing one. A newly added relative mount is queued for indexing.
func (s *Service) AddCustomMountDirectory(path string, absolute bool, mode common.SearchFlags) MountDirectory {
	m, added := s.mounts.Add(path, absolute, mode)
	s.paths.Invalidate()

	if added && !absolute {
		if idx := s.indexManager(); idx != nil {
			idx.QueueMount(m.Directory)
		}
	}
	log.Debugf("[Service] mount %q absolute=%v mode=%s added=%v", m.Directory, absolute, m.SearchMode, added)
	return m
}

// RemoveCustomMountDirectory removes a mount.
func (s *Service) RemoveCustomMountDirectory(path string) bool {
	ok := s.mounts.Remove(path)
	if ok {
		s.paths.Invalidate()
	}
	return ok
}

// ClearCustomMountDirectories removes every mount.
func (s *Service) ClearCustomMountDirectories() {
	s.mounts.Clear()
	s.paths.Invalidate()
}

// Mounts returns a snapshot of the mount table.
func (s *Service) Mounts() []MountDirectory {
	return s.mounts.Mounts()
}

// --- Packages ---

// RegisterPackageManager appends pm to the package search order.
// Registering a name twice is an invariant violation.
func (s *Service) RegisterPackageManager(name string, pm PackageManager) error {
	s.pkgMu.Lock()
	defer s.pkgMu.Unlock()

	for _, m := range s.packages {
		if m.name == name {
			return fmt.Errorf("register package manager %q: %w", name, common.ErrDuplicatePackageManager)
		}
	}
	s.packages = append(s.packages, namedManager{name: name, pm: pm})
	return nil
}

// PackageManager returns the manager registered under name.
func (s *Service) PackageManager(name string) (PackageManager, bool) {
	s.pkgMu.Lock()
	defer s.pkgMu.Unlock()
	for _, m := range s.packages {
		if m.name == name {
			return m.pm, true
		}
	}
	return nil, false
}

func (s *Service) packageManagers() []PackageManager {
	s.pkgMu.Lock()
	defer s.pkgMu.Unlock()
	out := make([]PackageManager, len(s.packages))
	for i, m := range s.packages {
		out[i] = m.pm
	}
	return out
}

// LoadPackage asks every manager to load package name and returns the first
// package that loads.
func (s *Service) LoadPackage(name string, mode common.SearchFlags) (Package, error) {
	var errs []error
	for _, pm := range s.packageManagers() {
		p, err := pm.LoadPackage(name, mode)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("load package %s: %w", name, common.ErrNotFound)
}

// ClearPackages unloads the packages loaded with mode in every manager.
func (s *Service) ClearPackages(mode common.SearchFlags) {
	for _, pm := range s.packageManagers() {
		pm.ClearPackages(mode)
	}
}

// OpenPackageFile opens path through the manager registered under name only.
func (s *Service) OpenPackageFile(name, path string, binary bool, include, exclude common.SearchFlags) (FileHandle, error) {
	pm, ok := s.PackageManager(name)
	if !ok {
		return nil, fmt.Errorf("package manager %s: %w", name, common.ErrNotFound)
	}
	return pm.OpenFile(common.Canonicalize(path), binary, include, exclude)
}

// --- Virtual files and hooks ---

// SetCustomFileHandler installs fn as the first resolver step of OpenFile.
// A nil fn removes the handler.
func (s *Service) SetCustomFileHandler(fn CustomFileHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handler = fn
}

func (s *Service) customHandler() CustomFileHandler {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	return s.handler
}

// AddVirtualFile adds an in-memory file. data is shared with every handle
// opened on it and must not be modified afterwards.
func (s *Service) AddVirtualFile(path string, data []byte) *VFile {
	return s.vtree.AddFile(path, data)
}

// RootDirectory returns the virtual tree.
func (s *Service) RootDirectory() *VTree {
	return s.vtree
}

// --- Index cache ---

func (s *Service) indexManager() *cache.RootPathCacheManager {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.index
}

// SetUseFileIndexCache enables or disables the background index of every
// root. Enabling starts a fresh population.
func (s *Service) SetUseFileIndexCache(enabled bool) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if !enabled {
		if s.index != nil {
			s.index.Close()
			s.index = nil
		}
		return
	}
	if s.index != nil {
		return
	}
	s.index = s.newIndexLocked()
}

func (s *Service) newIndexLocked() *cache.RootPathCacheManager {
	idx := cache.NewRootPathCacheManager(s.workers, s.filter)
	for _, r := range s.roots.Entries() {
		if r.Writable() {
			idx.SetPrimaryRoot(r.Path)
			continue
		}
		if err := idx.AddRoot(r.Identifier, r.Path); err != nil {
			log.Debugf("[Service] index root %s: %v", r.Identifier, err)
		}
	}
	return idx
}

// ResetFileIndexCache rebuilds the index of every root from scratch.
func (s *Service) ResetFileIndexCache() {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.index == nil {
		return
	}
	s.index.Close()
	s.index = s.newIndexLocked()
}

// FileIndexCache returns the index cache manager, or nil when disabled.
func (s *Service) FileIndexCache() *cache.RootPathCacheManager {
	return s.indexManager()
}

// cacheFor returns the index cache of root when it is complete.
func (s *Service) cacheFor(root RootPathInfo) *cache.IndexCache {
	idx := s.indexManager()
	if idx == nil {
		return nil
	}
	id := root.Identifier
	if root.Writable() {
		id = cache.PrimaryIdentifier
	}
	c := idx.Cache(id)
	if c == nil || !c.IsComplete() {
		return nil
	}
	return c
}

// Close closes every package manager, stops the index caches and closes
// local handles that are still open. It is safe to call more than once.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, pm := range s.packageManagers() {
		if err := pm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.SetUseFileIndexCache(false)

	if n := s.handles.CloseAll(); n > 0 {
		log.Debugf("[Service] closed %d leaked handles", n)
	}
	return errors.Join(errs...)
}
