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

// Package cache provides the lookup accelerators used by the resolver.
//
// Currently provides:
//   - IndexCache: background directory indexer for one root location
//   - RootPathCacheManager: one IndexCache per registered root, queried together
//   - PathCache: TTL cache of case-nativized host paths
//
// None of these caches is authoritative. An IndexCache only answers
// "definitely absent" once it is complete, and PathCache entries are
// re-validated by the caller when the host path turns out to be gone.
package cache

import "os"

// Disabled controls whether the PathCache is bypassed.
// Set via MOUNTFS_CACHE=0 environment variable.
// When true:
// - PathCache.Get() always reports a miss
// - PathCache.Set() is a no-op
//
// The index cache has its own switch (settings index_cache / Service option)
// because it changes which code path answers Exists.
var Disabled = os.Getenv("MOUNTFS_CACHE") == "0"

// Invalidator is implemented by all caches that support full invalidation.
type Invalidator interface {
	// Invalidate clears all entries from the cache.
	Invalidate()
}

// Filter decides whether a path relative to an indexed root is hidden.
// Hidden entries are neither recorded nor descended into.
type Filter interface {
	Hidden(rel string, isDir bool) bool
}
