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

package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"mountfs/internal/common"
)

// PrimaryIdentifier names the cache of the writable primary root.
const PrimaryIdentifier = "primary"

// RootPathCacheManager owns one IndexCache per root location: the primary
// cache plus one per secondary read-only root. Queries fan out over the
// caches in registration order and the first positive hit wins.
type RootPathCacheManager struct {
	workers int
	filter  Filter

	mu      sync.RWMutex
	order   []string
	caches  map[string]*IndexCache
	primary *IndexCache
}

// NewRootPathCacheManager creates a manager holding an empty primary cache.
func NewRootPathCacheManager(workers int, filter Filter) *RootPathCacheManager {
	primary := NewIndexCache(workers, filter)
	return &RootPathCacheManager{
		workers: workers,
		filter:  filter,
		order:   []string{PrimaryIdentifier},
		caches:  map[string]*IndexCache{PrimaryIdentifier: primary},
		primary: primary,
	}
}

// SetPrimaryRoot re-indexes the primary cache from root.
func (m *RootPathCacheManager) SetPrimaryRoot(root string) {
	m.primary.Reset(root)
}

// Primary returns the cache of the writable root.
func (m *RootPathCacheManager) Primary() *IndexCache {
	return m.primary
}

// AddRoot registers and starts populating a cache for a read-only root.
func (m *RootPathCacheManager) AddRoot(identifier, root string) error {
	if identifier == PrimaryIdentifier {
		return fmt.Errorf("add root cache %q: %w", identifier, common.ErrReservedIdentifier)
	}

	m.mu.Lock()
	if _, exists := m.caches[identifier]; exists {
		m.mu.Unlock()
		return fmt.Errorf("add root cache %q: %w", identifier, common.ErrDuplicateRoot)
	}
	c := NewIndexCache(m.workers, m.filter)
	m.caches[identifier] = c
	m.order = append(m.order, identifier)
	m.mu.Unlock()

	log.Debugf("[RootPathCacheManager] indexing %s at %s", identifier, root)
	c.Reset(root)
	return nil
}

// RemoveRoot stops and drops the cache registered for identifier.
func (m *RootPathCacheManager) RemoveRoot(identifier string) bool {
	if identifier == PrimaryIdentifier {
		return false
	}

	m.mu.Lock()
	c, ok := m.caches[identifier]
	if ok {
		delete(m.caches, identifier)
		for i, id := range m.order {
			if id == identifier {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Cache returns the cache registered for identifier, or nil.
func (m *RootPathCacheManager) Cache(identifier string) *IndexCache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[identifier]
}

// Caches returns the caches in registration order, primary first.
func (m *RootPathCacheManager) Caches() []*IndexCache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*IndexCache, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.caches[id])
	}
	return out
}

// Identifiers returns the registered identifiers in registration order.
func (m *RootPathCacheManager) Identifiers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// QueueMount schedules indexing of a root-relative mount directory in every
// cache.
func (m *RootPathCacheManager) QueueMount(mount string) {
	for _, c := range m.Caches() {
		root := c.Root()
		if root == "" {
			continue
		}
		c.QueuePath(common.HostPath(root, mount))
	}
}

// QueuePath schedules indexing of a host directory in the primary cache.
func (m *RootPathCacheManager) QueuePath(dir string) {
	m.primary.QueuePath(filepath.Clean(dir))
}

// Wait blocks until every cache is done populating.
func (m *RootPathCacheManager) Wait() {
	for _, c := range m.Caches() {
		c.Wait()
	}
}

// WaitContext is Wait bounded by ctx.
func (m *RootPathCacheManager) WaitContext(ctx context.Context) error {
	for _, c := range m.Caches() {
		if err := c.WaitContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// IsComplete reports whether every cache is complete.
func (m *RootPathCacheManager) IsComplete() bool {
	for _, c := range m.Caches() {
		if !c.IsComplete() {
			return false
		}
	}
	return true
}

// FindItemInfo returns the first cache hit for rel.
func (m *RootPathCacheManager) FindItemInfo(rel string) (ItemInfo, bool) {
	for _, c := range m.Caches() {
		if info, ok := c.FindItemInfo(rel); ok {
			return info, true
		}
	}
	return ItemInfo{}, false
}

// FindFileType returns the first non-invalid type found for rel.
func (m *RootPathCacheManager) FindFileType(rel string) Type {
	for _, c := range m.Caches() {
		if t := c.FindFileType(rel); t != TypeInvalid {
			return t
		}
	}
	return TypeInvalid
}

// Exists reports whether any cache holds rel.
func (m *RootPathCacheManager) Exists(rel string) bool {
	for _, c := range m.Caches() {
		if c.Exists(rel) {
			return true
		}
	}
	return false
}

// Add records rel in the primary cache.
func (m *RootPathCacheManager) Add(rel string, t Type) {
	m.primary.Add(rel, t)
}

// Remove drops rel from the primary cache.
func (m *RootPathCacheManager) Remove(rel string) {
	m.primary.Remove(rel)
}

// Len returns the total number of entries over all caches.
func (m *RootPathCacheManager) Len() int {
	n := 0
	for _, c := range m.Caches() {
		n += c.Len()
	}
	return n
}

// Close stops every cache's worker pool.
func (m *RootPathCacheManager) Close() {
	for _, c := range m.Caches() {
		c.Close()
	}
}
