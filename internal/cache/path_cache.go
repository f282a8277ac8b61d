package cache

import (
	"strings"
	"sync"
	"time"
)

// PathCache caches the result of case-insensitive path nativization for one
// search candidate: the key (root, mount, normalized name) maps to the host
// path that exists on disk with its real casing. Only hits are cached.
// Supports fine-grained invalidation by logical path.
//
// Thread-safe: Uses RWMutex for concurrent access.
type PathCache struct {
	mu      sync.RWMutex
	entries map[string]*pathEntry
	ttl     time.Duration
	maxSize int
}

type pathEntry struct {
	hostPath string
	isDir    bool
	logical  string // normalized path relative to the root, mount included
	expires  time.Time
}

// NewPathCache creates a new nativized path cache.
// ttl: Time-to-live for cached entries (use 0 for no expiration)
// maxSize: Maximum number of entries (use 0 for unlimited)
func NewPathCache(ttl time.Duration, maxSize int) *PathCache {
	return &PathCache{
		entries: make(map[string]*pathEntry, 256),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// PathKey builds the cache key for a lookup of logical under root/mount.
func PathKey(root, mount, logical string) string {
	return root + "\x00" + mount + "\x00" + logical
}

// Get returns the cached host path for key.
// Reports a miss if not found, expired, or caching is disabled (MOUNTFS_CACHE=0).
func (c *PathCache) Get(key string) (hostPath string, isDir bool, ok bool) {
	if Disabled {
		return "", false, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	if !found {
		return "", false, false
	}

	// Check TTL expiration
	if c.ttl > 0 && time.Now().After(entry.expires) {
		return "", false, false
	}

	return entry.hostPath, entry.isDir, true
}

// Set stores a resolved host path.
// logical is the normalized root-relative path (mount joined with name).
// No-op if caching is disabled (MOUNTFS_CACHE=0).
func (c *PathCache) Set(key, logical, hostPath string, isDir bool) {
	if Disabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		// At capacity: keep existing entries, drop new ones
		if _, exists := c.entries[key]; !exists {
			return
		}
	}

	expires := time.Time{}
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	c.entries[key] = &pathEntry{
		hostPath: hostPath,
		isDir:    isDir,
		logical:  logical,
		expires:  expires,
	}
}

// Delete removes a single key.
func (c *PathCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Invalidate clears all entries from the cache.
func (c *PathCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 {
		c.entries = make(map[string]*pathEntry, 256)
	}
}

// InvalidatePath removes every entry whose root-relative logical path is
// logical or lies below it.
func (c *PathCache) InvalidatePath(logical string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := logical + "/"
	for key, entry := range c.entries {
		if logical == "" || entry.logical == logical || strings.HasPrefix(entry.logical, prefix) {
			delete(c.entries, key)
		}
	}
}

// InvalidateRename invalidates both sides of a rename.
func (c *PathCache) InvalidateRename(oldLogical, newLogical string) {
	c.InvalidatePath(oldLogical)
	c.InvalidatePath(newLogical)
}

// Size returns the current number of entries in the cache.
func (c *PathCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PathCacheStats holds cache statistics.
type PathCacheStats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
}

// Stats returns current cache statistics.
func (c *PathCache) Stats() PathCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return PathCacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
	}
}
