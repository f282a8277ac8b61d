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
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mountfs/internal/common"
)

// DefaultWorkers is the size of the indexing worker pool.
const DefaultWorkers = 5

// Type is the kind of an indexed entry.
type Type uint8

const (
	// TypeInvalid means the path is not indexed
	TypeInvalid Type = iota
	// TypeFile is a regular file
	TypeFile
	// TypeDirectory is a directory
	TypeDirectory
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	default:
		return "invalid"
	}
}

// ItemInfo is the value stored for an indexed path.
type ItemInfo struct {
	Type Type
}

// State is the population state of an IndexCache.
type State int

const (
	// StateEmpty means no root has been set
	StateEmpty State = iota
	// StatePopulating means indexing tasks are pending
	StatePopulating
	// StateComplete means every queued directory has been walked
	StateComplete
)

func (s State) String() string {
	switch s {
	case StatePopulating:
		return "populating"
	case StateComplete:
		return "complete"
	default:
		return "empty"
	}
}

// indexTask lists one directory. gen ties the task to the Reset generation
// that queued it; tasks from older generations are discarded.
type indexTask struct {
	dir string
	gen uint64
	// real is the resolved path of dir once a symlink was crossed
	real string
	// links holds the resolved targets of symlinks crossed to reach dir
	links []string
}

// IndexCache is a background directory indexer for one root location.
//
// A fixed pool of workers walks the tree one directory per task. Each task
// records the directory's children in a task-local buffer and merges it into
// the shared map under a single lock. Subdirectories are queued as new tasks
// (fan-out), so the pending counter only reaches zero once every descendant
// has been walked.
//
// Keys are normalized root-relative paths. A miss is only meaningful once
// IsComplete reports true.
type IndexCache struct {
	workers int
	filter  Filter

	// mu guards the task queue and completion state.
	mu        sync.Mutex
	work      *sync.Cond // signalled when the queue grows or the cache closes
	idle      *sync.Cond // broadcast whenever a task finishes
	queue     []indexTask
	pending   int
	active    int
	gen       uint64
	root      string
	closed    bool
	group     *errgroup.Group
	completed chan struct{} // closed while pending == 0

	// entriesMu guards entries only; it is never held while waiting.
	entriesMu sync.Mutex
	entries   map[string]ItemInfo
}

// NewIndexCache creates an empty index cache.
// workers <= 0 selects DefaultWorkers. filter may be nil.
func NewIndexCache(workers int, filter Filter) *IndexCache {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	c := &IndexCache{
		workers:   workers,
		filter:    filter,
		entries:   make(map[string]ItemInfo, 1024),
		completed: make(chan struct{}),
	}
	close(c.completed)
	c.work = sync.NewCond(&c.mu)
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Key returns the map key for a root-relative path.
func Key(rel string) string {
	return common.NormalizedPath(rel)
}

// Root returns the indexed root directory ("" when empty).
func (c *IndexCache) Root() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// State returns the current population state.
func (c *IndexCache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.root == "":
		return StateEmpty
	case c.pending > 0:
		return StatePopulating
	default:
		return StateComplete
	}
}

// IsComplete reports whether a root is set and no indexing task is pending.
func (c *IndexCache) IsComplete() bool {
	return c.State() == StateComplete
}

// Reset discards all entries and pending work, then starts indexing root.
// In-flight tasks are allowed to finish first; their results are dropped.
// An empty root leaves the cache in StateEmpty.
func (c *IndexCache) Reset(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.gen++
	c.queue = nil
	c.setPendingLocked(0)
	for c.active > 0 {
		c.idle.Wait()
	}

	c.entriesMu.Lock()
	c.entries = make(map[string]ItemInfo, 1024)
	c.entriesMu.Unlock()

	c.root = ""
	if root != "" {
		c.root = filepath.Clean(root)
	}
	log.Debugf("[IndexCache] reset root=%q gen=%d", c.root, c.gen)

	if c.root != "" {
		c.queueLocked(indexTask{dir: c.root, gen: c.gen})
	}
}

// QueuePath schedules indexing of an additional directory below the root,
// e.g. a mount that was added after the initial walk.
// Paths that do not exist or lie outside the root are ignored.
func (c *IndexCache) QueuePath(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.root == "" {
		return
	}
	dir = filepath.Clean(dir)
	if _, ok := relativeTo(c.root, dir); !ok {
		return
	}
	c.queueLocked(indexTask{dir: dir, gen: c.gen})
}

func (c *IndexCache) queueLocked(task indexTask) {
	if c.closed || task.gen != c.gen {
		return
	}
	if fi, err := os.Stat(task.dir); err != nil || !fi.IsDir() {
		return
	}
	c.startLocked()
	c.setPendingLocked(c.pending + 1)
	c.queue = append(c.queue, task)
	c.work.Signal()
}

// setPendingLocked updates the pending counter and the completion channel.
func (c *IndexCache) setPendingLocked(n int) {
	wasDone := c.pending == 0
	c.pending = n
	switch {
	case wasDone && n > 0:
		c.completed = make(chan struct{})
	case !wasDone && n == 0:
		close(c.completed)
	}
}

// startLocked lazily starts the worker pool.
func (c *IndexCache) startLocked() {
	if c.group != nil {
		return
	}
	c.group = new(errgroup.Group)
	for i := 0; i < c.workers; i++ {
		c.group.Go(c.worker)
	}
}

func (c *IndexCache) worker() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for len(c.queue) == 0 && !c.closed {
			c.work.Wait()
		}
		if c.closed {
			return nil
		}

		task := c.queue[0]
		c.queue[0] = indexTask{}
		c.queue = c.queue[1:]
		c.active++
		root := c.root
		c.mu.Unlock()

		c.indexDirectory(root, task)

		c.mu.Lock()
		c.active--
		if task.gen == c.gen && c.pending > 0 {
			c.setPendingLocked(c.pending - 1)
		}
		c.idle.Broadcast()
	}
}

// indexDirectory lists one directory, queues its subdirectories and merges
// the children into the shared map. Unreadable entries are skipped.
func (c *IndexCache) indexDirectory(root string, task indexTask) {
	dirEntries, err := os.ReadDir(task.dir)
	if err != nil && len(dirEntries) == 0 {
		log.Debugf("[IndexCache] skip unreadable directory %s: %v", task.dir, err)
		return
	}

	local := make([]localEntry, 0, len(dirEntries))
	var subdirs []indexTask
	for _, de := range dirEntries {
		full := filepath.Join(task.dir, de.Name())
		rel, ok := relativeTo(root, full)
		if !ok {
			continue
		}

		mode := de.Type()
		linked := mode&fs.ModeSymlink != 0
		if linked {
			fi, err := os.Stat(full)
			if err != nil {
				continue
			}
			mode = fi.Mode().Type()
		}

		isDir := mode.IsDir()
		if c.filter != nil && c.filter.Hidden(rel, isDir) {
			continue
		}
		switch {
		case isDir:
			if sub, ok := task.child(full, de.Name(), linked); ok {
				subdirs = append(subdirs, sub)
			}
			local = append(local, localEntry{Key(rel), ItemInfo{Type: TypeDirectory}})
		case mode.IsRegular():
			local = append(local, localEntry{Key(rel), ItemInfo{Type: TypeFile}})
		}
	}

	c.mu.Lock()
	stale := task.gen != c.gen
	for _, sub := range subdirs {
		c.queueLocked(sub)
	}
	c.mu.Unlock()
	if stale {
		return
	}

	c.entriesMu.Lock()
	for _, e := range local {
		c.entries[e.key] = e.info
	}
	c.entriesMu.Unlock()
}

type localEntry struct {
	key  string
	info ItemInfo
}

// relativeTo returns path relative to root in logical form.
// child returns the task for the subdirectory full of t. A symlinked
// directory whose target is an ancestor of t, or a target already crossed
// on the way to t, is not descended: it would never end.
func (t indexTask) child(full, name string, linked bool) (indexTask, bool) {
	sub := indexTask{dir: full, gen: t.gen, links: t.links}
	if !linked {
		if t.real != "" {
			sub.real = filepath.Join(t.real, name)
		}
		return sub, true
	}

	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		return sub, false
	}
	here := t.real
	if here == "" {
		if here, err = filepath.EvalSymlinks(t.dir); err != nil {
			here = t.dir
		}
	}
	if target == here || strings.HasPrefix(here, target+string(filepath.Separator)) || slices.Contains(t.links, target) {
		log.Debugf("[IndexCache] not following looping link %s -> %s", full, target)
		return sub, false
	}
	sub.real = target
	sub.links = append(slices.Clip(t.links), target)
	return sub, true
}

func relativeTo(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return rel, true
}

// Rel converts a host path below the root into a root-relative logical path.
func (c *IndexCache) Rel(hostPath string) (string, bool) {
	root := c.Root()
	if root == "" {
		return "", false
	}
	return relativeTo(root, filepath.Clean(hostPath))
}

// Wait blocks until no indexing task is pending.
func (c *IndexCache) Wait() {
	c.mu.Lock()
	done := c.completed
	c.mu.Unlock()
	<-done
}

// WaitContext is Wait bounded by ctx.
func (c *IndexCache) WaitContext(ctx context.Context) error {
	c.mu.Lock()
	done := c.completed
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FindItemInfo returns the indexed info for a root-relative path.
func (c *IndexCache) FindItemInfo(rel string) (ItemInfo, bool) {
	key := Key(rel)
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	info, ok := c.entries[key]
	return info, ok
}

// FindFileType returns the indexed type, TypeInvalid on a miss.
func (c *IndexCache) FindFileType(rel string) Type {
	info, ok := c.FindItemInfo(rel)
	if !ok {
		return TypeInvalid
	}
	return info.Type
}

// Exists reports whether rel is indexed.
func (c *IndexCache) Exists(rel string) bool {
	_, ok := c.FindItemInfo(rel)
	return ok
}

// Add records rel with the given type.
func (c *IndexCache) Add(rel string, t Type) {
	if t == TypeInvalid {
		c.Remove(rel)
		return
	}
	key := Key(rel)
	if key == "" {
		return
	}
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	c.entries[key] = ItemInfo{Type: t}
}

// Remove drops rel, and everything below it when rel is a directory.
func (c *IndexCache) Remove(rel string) {
	key := Key(rel)
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()

	info, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	if info.Type != TypeDirectory {
		return
	}
	prefix := key + "/"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of indexed entries.
func (c *IndexCache) Len() int {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	return len(c.entries)
}

// Invalidate clears the entries without touching the root or pending work.
func (c *IndexCache) Invalidate() {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	c.entries = make(map[string]ItemInfo, 1024)
}

// Close stops the worker pool. Pending work is dropped and waiters are
// released. The cache keeps answering lookups from what it has indexed.
func (c *IndexCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queue = nil
	c.setPendingLocked(0)
	c.work.Broadcast()
	group := c.group
	c.mu.Unlock()

	if group != nil {
		_ = group.Wait()
	}
}
