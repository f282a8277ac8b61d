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
	"io"
	"os"
	"sync"

	"mountfs/internal/common"
)

// FileHandle is an open file from any backend.
//
// Virtual and package handles are read-only and Write returns
// common.ErrReadOnly. Local handles own their OS file descriptor, which is
// released by Close.
type FileHandle interface {
	io.Reader
	io.ReaderAt
	io.Writer
	io.Seeker
	io.ByteReader
	io.Closer

	// Name is the logical path for virtual and package files and the host
	// path for local files.
	Name() string
	Kind() HandleKind
	Flags() common.FileFlags
	Size() int64
	Tell() int64
	Eof() bool
	Binary() bool
	Writable() bool
}

// MemoryHandle reads a shared byte slice. It backs virtual files and is the
// handle type package managers return.
type MemoryHandle struct {
	mu     sync.Mutex
	name   string
	data   []byte
	off    int64
	kind   HandleKind
	flags  common.FileFlags
	binary bool
	closed bool
}

func newVirtualHandle(name string, f *VFile, binary bool) *MemoryHandle {
	return &MemoryHandle{
		name:   name,
		data:   f.Data(),
		kind:   KindVirtual,
		flags:  common.FileReadOnly | common.FileVirtual,
		binary: binary,
	}
}

// NewPackageHandle creates a read-only handle over data extracted from a
// package. FilePackage and FileReadOnly are always set.
func NewPackageHandle(name string, data []byte, flags common.FileFlags, binary bool) *MemoryHandle {
	return &MemoryHandle{
		name:   name,
		data:   data,
		kind:   KindPackage,
		flags:  flags | common.FileReadOnly | common.FilePackage,
		binary: binary,
	}
}

func (h *MemoryHandle) Name() string            { return h.name }
func (h *MemoryHandle) Kind() HandleKind        { return h.kind }
func (h *MemoryHandle) Flags() common.FileFlags { return h.flags }
func (h *MemoryHandle) Size() int64             { return int64(len(h.data)) }
func (h *MemoryHandle) Binary() bool            { return h.binary }
func (h *MemoryHandle) Writable() bool          { return false }

func (h *MemoryHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, os.ErrClosed
	}
	if h.off >= int64(len(h.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data[h.off:])
	h.off += int64(n)
	return n, nil
}

func (h *MemoryHandle) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read %s: %w", h.name, common.ErrInvalidPath)
	}
	if off >= int64(len(h.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *MemoryHandle) ReadByte() (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.off >= int64(len(h.data)) {
		return 0, io.EOF
	}
	b := h.data[h.off]
	h.off++
	return b, nil
}

func (h *MemoryHandle) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write %s: %w", h.name, common.ErrReadOnly)
}

func (h *MemoryHandle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = h.off + offset
	case io.SeekEnd:
		abs = int64(len(h.data)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	h.off = abs
	return abs, nil
}

func (h *MemoryHandle) Tell() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.off
}

// Eof reports whether the cursor is at or past the end of the data.
func (h *MemoryHandle) Eof() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.off >= int64(len(h.data))
}

func (h *MemoryHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// LocalHandle is an open file on disk.
type LocalHandle struct {
	file     *os.File
	path     string
	size     int64
	binary   bool
	writable bool
	onClose  func()
}

func openLocal(hostPath, mode string) (*LocalHandle, error) {
	m := common.ParseMode(mode)
	flag := os.O_RDONLY
	switch {
	case m.Append:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		if containsPlus(mode) {
			flag = os.O_RDWR | os.O_CREATE | os.O_APPEND
		}
	case m.Write && containsPlus(mode) && !containsW(mode):
		flag = os.O_RDWR // "r+": the file must exist
	case m.Write && containsPlus(mode):
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case m.Write:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(hostPath, flag, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, &os.PathError{Op: "open", Path: hostPath, Err: common.ErrIsDir}
	}
	return &LocalHandle{
		file:     f,
		path:     hostPath,
		size:     fi.Size(),
		binary:   m.Binary,
		writable: m.Write,
	}, nil
}

func containsPlus(mode string) bool {
	for _, c := range mode {
		if c == '+' {
			return true
		}
	}
	return false
}

func containsW(mode string) bool {
	for _, c := range mode {
		if c == 'w' || c == 'W' {
			return true
		}
	}
	return false
}

// Path returns the host path of the open file.
func (h *LocalHandle) Path() string { return h.path }

// File exposes the underlying *os.File.
func (h *LocalHandle) File() *os.File { return h.file }

func (h *LocalHandle) Name() string            { return h.path }
func (h *LocalHandle) Kind() HandleKind        { return KindLocal }
func (h *LocalHandle) Flags() common.FileFlags { return common.FileNone }
func (h *LocalHandle) Binary() bool            { return h.binary }
func (h *LocalHandle) Writable() bool          { return h.writable }

// Size returns the size at open time for read handles and the current size
// for write handles.
func (h *LocalHandle) Size() int64 {
	if !h.writable {
		return h.size
	}
	if fi, err := h.file.Stat(); err == nil {
		return fi.Size()
	}
	return h.size
}

func (h *LocalHandle) Read(p []byte) (int, error)              { return h.file.Read(p) }
func (h *LocalHandle) ReadAt(p []byte, off int64) (int, error) { return h.file.ReadAt(p, off) }
func (h *LocalHandle) Write(p []byte) (int, error)             { return h.file.Write(p) }

func (h *LocalHandle) Seek(offset int64, whence int) (int64, error) {
	return h.file.Seek(offset, whence)
}

func (h *LocalHandle) ReadByte() (byte, error) {
	var b [1]byte
	n, err := h.file.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

func (h *LocalHandle) Tell() int64 {
	off, err := h.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return off
}

func (h *LocalHandle) Eof() bool {
	return h.Tell() >= h.Size()
}

func (h *LocalHandle) Close() error {
	if h.onClose != nil {
		h.onClose()
		h.onClose = nil
	}
	return h.file.Close()
}
