package vfs

import "sync"

// HandleID identifies an open local handle inside a HandleManager
type HandleID uint64

// openHandle tracks a local file opened through the Service
type openHandle struct {
	handle *LocalHandle
	path   string // logical path the caller asked for
	write  bool
}

// HandleManager tracks the local handles a Service has handed out so that
// Close can release descriptors that callers leaked
type HandleManager struct {
	mu         sync.RWMutex
	handles    map[HandleID]*openHandle
	nextHandle HandleID
}

// NewHandleManager creates a new handle manager
func NewHandleManager() *HandleManager {
	return &HandleManager{
		handles:    make(map[HandleID]*openHandle),
		nextHandle: 1,
	}
}

// Allocate registers h and arranges for it to be released when it is closed
func (hm *HandleManager) Allocate(h *LocalHandle, path string) HandleID {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	id := hm.nextHandle
	hm.nextHandle++

	hm.handles[id] = &openHandle{
		handle: h,
		path:   path,
		write:  h.Writable(),
	}
	h.onClose = func() { hm.Release(id) }

	return id
}

// Get retrieves a handle's info
func (hm *HandleManager) Get(id HandleID) (*openHandle, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	info, ok := hm.handles[id]
	return info, ok
}

// Release forgets a handle without closing it
func (hm *HandleManager) Release(id HandleID) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.handles, id)
}

// Count returns the number of open handles
func (hm *HandleManager) Count() int {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return len(hm.handles)
}

// OpenWriters returns the logical paths of handles open for writing
func (hm *HandleManager) OpenWriters() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	var out []string
	for _, info := range hm.handles {
		if info.write {
			out = append(out, info.path)
		}
	}
	return out
}

// CloseAll closes every tracked handle, returning the count of handles closed
func (hm *HandleManager) CloseAll() int {
	hm.mu.Lock()
	handles := hm.handles
	hm.handles = make(map[HandleID]*openHandle)
	// Don't reset nextHandle to avoid handle ID reuse issues
	hm.mu.Unlock()

	for _, info := range handles {
		info.handle.onClose = nil
		info.handle.file.Close()
	}
	return len(handles)
}
