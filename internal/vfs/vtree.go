package vfs

import (
	"slices"
	"strings"
	"sync"

	"mountfs/internal/common"
)

// VNode is a node of the virtual tree: a *VFile or a *VDirectory.
type VNode interface {
	Name() string
	IsDir() bool
}

// VFile is an in-memory file. Its data slice is shared with every open
// handle and is never modified in place.
type VFile struct {
	name string
	data []byte
}

// NewVFile creates a virtual file over data.
func NewVFile(name string, data []byte) *VFile {
	return &VFile{name: name, data: data}
}

func (f *VFile) Name() string { return f.name }
func (f *VFile) IsDir() bool  { return false }

// Size returns the length of the file's data.
func (f *VFile) Size() int64 { return int64(len(f.data)) }

// Data returns the shared buffer. Callers must not modify it.
func (f *VFile) Data() []byte { return f.data }

// VDirectory owns its children. Names are unique case-insensitively and
// children keep their insertion order.
type VDirectory struct {
	name     string
	children []VNode
	index    map[string]VNode // lower-cased name -> child
}

// NewVDirectory creates an empty directory node.
func NewVDirectory(name string) *VDirectory {
	return &VDirectory{name: name, index: make(map[string]VNode)}
}

func (d *VDirectory) Name() string { return d.name }
func (d *VDirectory) IsDir() bool  { return true }

// Children returns a copy of the child list in insertion order.
func (d *VDirectory) Children() []VNode {
	return slices.Clone(d.children)
}

// Child returns the direct child with the given name, ignoring case.
func (d *VDirectory) Child(name string) VNode {
	return d.index[strings.ToLower(name)]
}

// Add inserts node, replacing an existing child with the same name.
func (d *VDirectory) Add(node VNode) {
	key := strings.ToLower(node.Name())
	if old, ok := d.index[key]; ok {
		d.children = slices.DeleteFunc(d.children, func(n VNode) bool { return n == old })
	}
	d.index[key] = node
	d.children = append(d.children, node)
}

// Remove detaches node (and with it its whole subtree). It reports whether
// node was a child of d.
func (d *VDirectory) Remove(node VNode) bool {
	key := strings.ToLower(node.Name())
	if d.index[key] != node {
		return false
	}
	delete(d.index, key)
	d.children = slices.DeleteFunc(d.children, func(n VNode) bool { return n == node })
	return true
}

// AddDirectory returns the directory at path below d, creating any missing
// directories along the way. An existing file in the way is replaced.
func (d *VDirectory) AddDirectory(path string) *VDirectory {
	cur := d
	for _, part := range common.SplitPath(path) {
		next, ok := cur.Child(part).(*VDirectory)
		if !ok {
			next = NewVDirectory(part)
			cur.Add(next)
		}
		cur = next
	}
	return cur
}

// GetDirectory descends path case-insensitively. Returns nil when any
// segment is missing or not a directory. An empty path returns d.
func (d *VDirectory) GetDirectory(path string) *VDirectory {
	cur := d
	for _, part := range common.SplitPath(path) {
		next, ok := cur.Child(part).(*VDirectory)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// GetFile returns the file at path, or nil.
func (d *VDirectory) GetFile(path string) *VFile {
	parent := d.GetDirectory(common.ParentPath(path))
	if parent == nil {
		return nil
	}
	f, _ := parent.Child(common.BaseName(path)).(*VFile)
	return f
}

// Lookup returns the node at path (file or directory), or nil.
func (d *VDirectory) Lookup(path string) VNode {
	if common.Canonicalize(path) == "" {
		return d
	}
	parent := d.GetDirectory(common.ParentPath(path))
	if parent == nil {
		return nil
	}
	return parent.Child(common.BaseName(path))
}

// VTree is the virtual file tree guarded by a single lock. Readers may run
// concurrently; mutations are exclusive.
type VTree struct {
	mu   sync.RWMutex
	root *VDirectory
}

// NewVTree creates an empty tree.
func NewVTree() *VTree {
	return &VTree{root: NewVDirectory("")}
}

// AddFile inserts a file at path. Every segment is case-folded and missing
// directories are created. Returns the new file, or nil for an empty path.
// Directory nodes stay private to the tree so every mutation holds t.mu.
func (t *VTree) AddFile(path string, data []byte) *VFile {
	parts := common.SplitPath(strings.ToLower(path))
	if len(parts) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dir := t.root.AddDirectory(strings.Join(parts[:len(parts)-1], common.Separator))
	f := NewVFile(parts[len(parts)-1], data)
	dir.Add(f)
	return f
}

// AddDirectory creates the directory at path (idempotent).
func (t *VTree) AddDirectory(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root.AddDirectory(strings.ToLower(path))
}

// Remove deletes the node at path together with its subtree.
func (t *VTree) Remove(path string) bool {
	if common.Canonicalize(path) == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.root.GetDirectory(common.ParentPath(path))
	if parent == nil {
		return false
	}
	node := parent.Child(common.BaseName(path))
	if node == nil {
		return false
	}
	return parent.Remove(node)
}

// File returns the file at path, or nil.
func (t *VTree) File(path string) *VFile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.GetFile(path)
}

// Lookup returns the node at path, or nil.
func (t *VTree) Lookup(path string) VNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.Lookup(path)
}

// List returns the children of the directory at path, or nil when path is
// not a directory.
func (t *VTree) List(path string) []VNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dir := t.root.GetDirectory(path)
	if dir == nil {
		return nil
	}
	return dir.Children()
}

// Clear drops every node.
func (t *VTree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = NewVDirectory("")
}
