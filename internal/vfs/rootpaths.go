package vfs

import (
	"fmt"
	"slices"
	"sync"

	"mountfs/internal/common"
)

// PrimaryRootIdentifier names the writable root entry.
const PrimaryRootIdentifier = "root"

// RootPathInfo is one absolute base directory of the local search space.
type RootPathInfo struct {
	Identifier string
	Path       string
	Priority   int32
}

// Writable reports whether this is the primary root.
func (r RootPathInfo) Writable() bool {
	return r.Identifier == PrimaryRootIdentifier
}

// RootRegistry keeps the registered roots in registration order plus a view
// ordered by descending priority. Equal priorities keep registration order.
// The primary root, when set, is always the first registered entry.
type RootRegistry struct {
	mu      sync.RWMutex
	entries []RootPathInfo
	ordered []RootPathInfo
}

// NewRootRegistry creates an empty registry.
func NewRootRegistry() *RootRegistry {
	return &RootRegistry{}
}

// SetPrimary installs or replaces the writable root.
func (r *RootRegistry) SetPrimary(path string, priority int32) RootPathInfo {
	info := RootPathInfo{Identifier: PrimaryRootIdentifier, Path: common.CanonicalizeAbs(path), Priority: priority}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) > 0 && r.entries[0].Identifier == PrimaryRootIdentifier {
		r.entries[0] = info
	} else {
		r.entries = slices.Insert(r.entries, 0, info)
	}
	r.reorderLocked()
	return info
}

// AddSecondary appends a read-only root. The identifiers "root" and
// "primary" are reserved and identifiers must be unique.
func (r *RootRegistry) AddSecondary(identifier, path string, priority int32) (RootPathInfo, error) {
	if identifier == PrimaryRootIdentifier || identifier == "primary" || identifier == "" {
		return RootPathInfo{}, fmt.Errorf("add root %q: %w", identifier, common.ErrReservedIdentifier)
	}
	info := RootPathInfo{Identifier: identifier, Path: common.CanonicalizeAbs(path), Priority: priority}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Identifier == identifier {
			return RootPathInfo{}, fmt.Errorf("add root %q: %w", identifier, common.ErrDuplicateRoot)
		}
	}
	r.entries = append(r.entries, info)
	r.reorderLocked()
	return info, nil
}

// Remove drops a secondary root. The primary root cannot be removed.
func (r *RootRegistry) Remove(identifier string) bool {
	if identifier == PrimaryRootIdentifier {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e RootPathInfo) bool { return e.Identifier == identifier })
	if len(r.entries) == n {
		return false
	}
	r.reorderLocked()
	return true
}

func (r *RootRegistry) reorderLocked() {
	r.ordered = slices.Clone(r.entries)
	slices.SortStableFunc(r.ordered, func(a, b RootPathInfo) int {
		switch {
		case a.Priority > b.Priority:
			return -1
		case a.Priority < b.Priority:
			return 1
		default:
			return 0
		}
	})
}

// Primary returns the writable root.
func (r *RootRegistry) Primary() (RootPathInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 || r.entries[0].Identifier != PrimaryRootIdentifier {
		return RootPathInfo{}, false
	}
	return r.entries[0], true
}

// Ordered returns the roots by descending priority.
func (r *RootRegistry) Ordered() []RootPathInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ordered)
}

// Entries returns the roots in registration order.
func (r *RootRegistry) Entries() []RootPathInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

// Get returns the root registered under identifier.
func (r *RootRegistry) Get(identifier string) (RootPathInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Identifier == identifier {
			return e, true
		}
	}
	return RootPathInfo{}, false
}
