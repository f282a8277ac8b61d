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

// Package archive provides PackageManager implementations that serve
// read-only files out of zip and cpio archives.
package archive

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"

	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

// Format identifies an archive container.
type Format int

const (
	FormatZip Format = iota
	FormatCPIO
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatCPIO:
		return "cpio"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// DetectFormat guesses the format of an archive from its file name.
func DetectFormat(name string) (Format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".pk3"):
		return FormatZip, true
	case strings.HasSuffix(lower, ".cpio"),
		strings.HasSuffix(lower, ".cpio.gz"),
		strings.HasSuffix(lower, ".cpio.zst"):
		return FormatCPIO, true
	}
	return 0, false
}

// searchBits are the flags that select backends; the remaining bits of a
// package mode are user-defined groups, gated like mount search modes.
const searchBits = common.SearchVirtual | common.SearchPackage | common.SearchLocal | common.SearchNoMounts

// entry is one file or directory of a loaded archive.
type entry struct {
	name  string // canonical path as stored in the archive
	dir   bool
	size  uint64
	flags common.FileFlags
	// read returns the uncompressed contents of a file entry
	read func() ([]byte, error)
}

// contents holds the parsed table of an archive.
type contents struct {
	entries  map[string]*entry   // normalized path -> entry
	children map[string][]*entry // normalized parent -> direct children
	closer   io.Closer
}

func newContents() *contents {
	return &contents{
		entries:  make(map[string]*entry),
		children: make(map[string][]*entry),
	}
}

// add inserts e, creating implicit parent directories. A later entry with
// the same path replaces the earlier one.
func (c *contents) add(e *entry) {
	e.name = common.Canonicalize(e.name)
	if e.name == "" {
		return
	}
	key := common.NormalizedPath(e.name)
	if old, ok := c.entries[key]; ok {
		if old.dir && e.dir {
			return
		}
		parent := common.ParentPath(key)
		c.children[parent] = slices.DeleteFunc(c.children[parent], func(x *entry) bool { return x == old })
	}
	c.entries[key] = e
	parent := common.ParentPath(key)
	c.children[parent] = append(c.children[parent], e)

	if dir := common.ParentPath(e.name); dir != "" {
		if _, ok := c.entries[common.NormalizedPath(dir)]; !ok {
			c.add(&entry{name: dir, dir: true, flags: common.FileDirectory})
		}
	}
}

// loader parses the archive at hostPath.
type loader func(hostPath string) (*contents, error)

// pack is a loaded archive.
type pack struct {
	mgr  *Manager
	name string
	host string
	mode common.SearchFlags
	*contents
	once sync.Once
}

func (p *pack) Name() string { return p.name }

// Path returns the host path of the archive.
func (p *pack) Path() string { return p.host }

// Close unloads the package from its manager and releases the archive.
func (p *pack) Close() error {
	p.mgr.unload(p)
	return p.release()
}

func (p *pack) release() error {
	var err error
	p.once.Do(func() {
		if p.closer != nil {
			err = p.closer.Close()
		}
	})
	return err
}

// eligible reports whether the package takes part in a lookup. A package
// is consulted when Package is included; user-defined bits in its load
// mode must be included and not excluded.
func (p *pack) eligible(include, exclude common.SearchFlags) bool {
	if !include.Includes(common.SearchPackage) {
		return false
	}
	groups := p.mode.Without(searchBits)
	if groups == 0 {
		return true
	}
	return include.Any(groups) && !exclude.Any(groups)
}

// Manager is a vfs.PackageManager for one archive format. Archives are
// located through a vfs.PathLocator when loaded. The most recently loaded
// archive wins when several contain the same path.
type Manager struct {
	format  Format
	locator vfs.PathLocator
	load    loader

	mu    sync.RWMutex
	packs []*pack
}

var _ vfs.PackageManager = (*Manager)(nil)

func newManager(format Format, locator vfs.PathLocator, load loader) *Manager {
	return &Manager{format: format, locator: locator, load: load}
}

// NewManager creates a manager for format.
func NewManager(format Format, locator vfs.PathLocator) (*Manager, error) {
	switch format {
	case FormatZip:
		return NewZipManager(locator), nil
	case FormatCPIO:
		return NewCPIOManager(locator), nil
	default:
		return nil, fmt.Errorf("unsupported archive format %s", format)
	}
}

// Format returns the archive format served by the manager.
func (m *Manager) Format() Format { return m.format }

// LoadPackage locates name with mode (Local is implied) and loads it.
// Loading an already loaded archive returns the existing package.
func (m *Manager) LoadPackage(name string, mode common.SearchFlags) (vfs.Package, error) {
	canon := common.Canonicalize(name)

	m.mu.RLock()
	for _, p := range m.packs {
		if common.ComparePath(p.name, canon) {
			m.mu.RUnlock()
			return p, nil
		}
	}
	m.mu.RUnlock()

	locate := mode.With(common.SearchLocal).Without(common.SearchVirtual | common.SearchPackage)
	host, ok := m.locator.FindAbsolutePath(canon, locate, common.SearchNone)
	if !ok {
		return nil, fmt.Errorf("load package %s: %w", name, common.ErrNotFound)
	}
	c, err := m.load(host)
	if err != nil {
		return nil, fmt.Errorf("load package %s: %w", name, err)
	}

	p := &pack{mgr: m, name: canon, host: host, mode: mode, contents: c}
	m.mu.Lock()
	m.packs = append(m.packs, p)
	m.mu.Unlock()

	log.Debugf("[Archive] loaded %s package %q (%d entries)", m.format, host, len(c.entries))
	return p, nil
}

func (m *Manager) unload(p *pack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs = slices.DeleteFunc(m.packs, func(x *pack) bool { return x == p })
}

// ClearPackages unloads every package whose load mode shares a bit with mode.
func (m *Manager) ClearPackages(mode common.SearchFlags) {
	m.mu.Lock()
	var dropped []*pack
	m.packs = slices.DeleteFunc(m.packs, func(p *pack) bool {
		if p.mode&mode != 0 {
			dropped = append(dropped, p)
			return true
		}
		return false
	})
	m.mu.Unlock()

	for _, p := range dropped {
		if err := p.release(); err != nil {
			log.Debugf("[Archive] close %q: %v", p.host, err)
		}
	}
}

// Packages returns the loaded packages in load order.
func (m *Manager) Packages() []vfs.Package {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]vfs.Package, len(m.packs))
	for i, p := range m.packs {
		out[i] = p
	}
	return out
}

func (m *Manager) lookup(name string, include, exclude common.SearchFlags) *entry {
	key := common.NormalizedPath(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.packs) - 1; i >= 0; i-- {
		p := m.packs[i]
		if !p.eligible(include, exclude) {
			continue
		}
		if e, ok := p.entries[key]; ok {
			return e
		}
	}
	return nil
}

func (m *Manager) FindFiles(dir, target string, keepPath bool, include common.SearchFlags) (files, dirs []string) {
	parent := common.NormalizedPath(dir)
	seen := make(map[string]bool)
	lowerTarget := strings.ToLower(target)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.packs) - 1; i >= 0; i-- {
		p := m.packs[i]
		if !p.eligible(include, common.SearchNone) {
			continue
		}
		for _, e := range p.children[parent] {
			base := common.BaseName(e.name)
			lower := strings.ToLower(base)
			if seen[lower] {
				continue
			}
			if ok, err := doublestar.Match(lowerTarget, lower); err != nil || !ok {
				continue
			}
			seen[lower] = true
			if keepPath && dir != "" {
				base = dir + common.Separator + base
			}
			if e.dir {
				dirs = append(dirs, base)
			} else {
				files = append(files, base)
			}
		}
	}
	return files, dirs
}

func (m *Manager) Size(name string) (uint64, bool) {
	e := m.lookup(name, common.SearchAll, common.SearchNone)
	if e == nil || e.dir {
		return 0, false
	}
	return e.size, true
}

func (m *Manager) Exists(name string, include common.SearchFlags) bool {
	return m.lookup(name, include, common.SearchNone) != nil
}

func (m *Manager) FileFlags(name string, include common.SearchFlags) (common.FileFlags, bool) {
	e := m.lookup(name, include, common.SearchNone)
	if e == nil {
		return common.FileInvalid, false
	}
	return e.flags, true
}

// OpenFile extracts a file into memory and returns a read-only handle.
// Directories and misses report common.ErrNotFound.
func (m *Manager) OpenFile(name string, binary bool, include, exclude common.SearchFlags) (vfs.FileHandle, error) {
	e := m.lookup(name, include, exclude)
	if e == nil || e.dir {
		return nil, fmt.Errorf("open %s: %w", name, common.ErrNotFound)
	}
	if e.flags.Has(common.FileEncrypted) {
		return nil, fmt.Errorf("open %s: %w", name, ErrEncrypted)
	}
	data, err := e.read()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return vfs.NewPackageHandle(e.name, data, e.flags, binary), nil
}

// Close releases every loaded archive.
func (m *Manager) Close() error {
	m.mu.Lock()
	packs := m.packs
	m.packs = nil
	m.mu.Unlock()

	var errs []error
	for _, p := range packs {
		if err := p.release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrEncrypted is returned when opening an encrypted archive entry.
var ErrEncrypted = errors.New("encrypted archive entry")
