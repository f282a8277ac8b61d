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
	"slices"
	"sync"

	"mountfs/internal/common"
)

// MountDirectory is a directory merged into the local search space.
// Relative mounts are resolved below every root; absolute mounts are host
// paths searched as-is.
type MountDirectory struct {
	Directory  string
	Absolute   bool
	SearchMode common.SearchFlags
}

// matches reports whether the mount takes part in a search.
func (m MountDirectory) matches(include, exclude common.SearchFlags) bool {
	return include&m.SearchMode != 0 && exclude&m.SearchMode == 0
}

func (m MountDirectory) sameDirectory(dir string) bool {
	if m.Absolute {
		return m.Directory == dir
	}
	return common.ComparePath(m.Directory, dir)
}

// MountTable is the ordered list of mounts. Insertion order is search order.
type MountTable struct {
	mu     sync.RWMutex
	mounts []MountDirectory
}

// NewMountTable creates an empty mount table.
func NewMountTable() *MountTable {
	return &MountTable{}
}

func canonicalMount(path string, absolute bool) string {
	if absolute {
		return common.CanonicalizeAbs(path)
	}
	return common.Canonicalize(path)
}

// Add registers a mount. The Local bit is forced on and the Virtual,
// Package and NoMounts bits are cleared, since a mount only gates local
// search. Re-adding an existing directory updates its search mode in place.
// Returns the stored entry and whether it was newly appended.
func (t *MountTable) Add(path string, absolute bool, mode common.SearchFlags) (MountDirectory, bool) {
	mode = mode.With(common.SearchLocal).Without(common.SearchNoMounts | common.SearchVirtual | common.SearchPackage)
	dir := canonicalMount(path, absolute)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.mounts {
		if t.mounts[i].Absolute == absolute && t.mounts[i].sameDirectory(dir) {
			t.mounts[i].SearchMode = mode
			return t.mounts[i], false
		}
	}
	m := MountDirectory{Directory: dir, Absolute: absolute, SearchMode: mode}
	t.mounts = append(t.mounts, m)
	return m, true
}

// Remove deletes the mount for path. Both relative and absolute entries
// with that directory are considered.
func (t *MountTable) Remove(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.mounts)
	t.mounts = slices.DeleteFunc(t.mounts, func(m MountDirectory) bool {
		return m.sameDirectory(canonicalMount(path, m.Absolute))
	})
	return len(t.mounts) != n
}

// Clear removes every mount.
func (t *MountTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mounts = nil
}

// Mounts returns a snapshot of the table.
func (t *MountTable) Mounts() []MountDirectory {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.mounts)
}

// Len returns the number of registered mounts.
func (t *MountTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.mounts)
}

// Iterator returns a cursor over a snapshot of the table.
func (t *MountTable) Iterator() *MountIterator {
	return NewMountIterator(t.Mounts())
}

// MountIterator walks a list of mounts followed by one implicit terminal
// entry "." that stands for the root itself. The terminal entry is always
// yielded, so an empty table still produces one candidate.
type MountIterator struct {
	mounts []MountDirectory
	index  int
}

// NewMountIterator creates an iterator over mounts.
func NewMountIterator(mounts []MountDirectory) *MountIterator {
	return &MountIterator{mounts: mounts}
}

// Reset rewinds the iterator.
func (it *MountIterator) Reset() { it.index = 0 }

// Next returns the next directory accepted by include/exclude. Entries are
// skipped unless (include & mode) != 0 and (exclude & mode) == 0. With
// NoMounts in include, iteration jumps straight to the terminal ".".
// ok is false only when the iterator is exhausted.
func (it *MountIterator) Next(include, exclude common.SearchFlags) (dir string, absolute bool, ok bool) {
	if include.Includes(common.SearchNoMounts) && it.index < len(it.mounts) {
		it.index = len(it.mounts)
	}
	for it.index < len(it.mounts) {
		m := it.mounts[it.index]
		it.index++
		if m.matches(include, exclude) {
			return m.Directory, m.Absolute, true
		}
	}
	if it.index == len(it.mounts) {
		it.index++
		return ".", false, true
	}
	return "", false, false
}
