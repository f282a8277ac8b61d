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
	"os"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"mountfs/internal/common"
)

// BillyAdapter adapts a Service to the billy filesystem interface.
// Reads resolve through every backend; writes land in the primary root.
type BillyAdapter struct {
	svc     *Service
	include common.SearchFlags
}

// NewBillyAdapter creates a Billy adapter that searches every backend
func NewBillyAdapter(svc *Service) *BillyAdapter {
	return &BillyAdapter{svc: svc, include: common.SearchAll}
}

var _ billy.Filesystem = (*BillyAdapter)(nil)

// flagMode converts os.OpenFile flags into a mode string.
func flagMode(flag int) string {
	rw := flag&os.O_RDWR != 0
	switch {
	case flag&os.O_APPEND != 0:
		if rw {
			return "a+b"
		}
		return "ab"
	case flag&(os.O_TRUNC|os.O_CREATE) != 0:
		if rw {
			return "w+b"
		}
		return "wb"
	case flag&os.O_WRONLY != 0:
		return "wb"
	case rw:
		return "r+b"
	default:
		return "rb"
	}
}

func (b *BillyAdapter) Create(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
}

func (b *BillyAdapter) Open(filename string) (billy.File, error) {
	return b.OpenFile(filename, os.O_RDONLY, 0)
}

func (b *BillyAdapter) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	h, err := b.svc.OpenFile(filename, flagMode(flag), b.include, common.SearchNone)
	if err != nil {
		return nil, b.pathError("open", filename, err)
	}
	return &BillyFile{handle: h, name: filename}, nil
}

// pathError keeps billy callers able to test with os.IsNotExist.
func (b *BillyAdapter) pathError(op, name string, err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	}
	return err
}

func (b *BillyAdapter) Stat(filename string) (os.FileInfo, error) {
	name := common.Canonicalize(filename)
	flags := b.svc.GetFileFlags(name, b.include, common.SearchNone)
	if !flags.Valid() {
		return nil, &os.PathError{Op: "stat", Path: filename, Err: os.ErrNotExist}
	}
	if !flags.Has(common.FileVirtual) && !flags.Has(common.FilePackage) {
		if host, ok := b.svc.FindAbsolutePath(name, b.include, common.SearchNone); ok {
			fi, err := os.Stat(host)
			if err != nil {
				return nil, err
			}
			return &BillyFileInfo{name: path.Base(filename), size: fi.Size(), mode: fi.Mode(), modTime: fi.ModTime()}, nil
		}
	}

	fi := &BillyFileInfo{name: path.Base(filename), mode: 0o444}
	if flags.IsDir() {
		fi.mode = os.ModeDir | 0o555
	} else if size, err := b.svc.GetFileSize(name, b.include, common.SearchNone); err == nil {
		fi.size = size
	}
	return fi, nil
}

func (b *BillyAdapter) Rename(oldpath, newpath string) error {
	return b.svc.RenameFile(oldpath, newpath)
}

func (b *BillyAdapter) Remove(filename string) error {
	if b.svc.IsDir(filename, common.SearchLocal, common.SearchNone) {
		return b.svc.RemoveDirectory(filename)
	}
	return b.pathError("remove", filename, b.svc.RemoveFile(filename))
}

func (b *BillyAdapter) Join(elem ...string) string {
	return path.Join(elem...)
}

func (b *BillyAdapter) TempFile(dir, prefix string) (billy.File, error) {
	return b.Create(path.Join(dir, prefix+uuid.NewString()))
}

func (b *BillyAdapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	dir := common.Canonicalize(dirname)
	if !b.svc.IsDir(dir, b.include, common.SearchNone) && dir != "" {
		return nil, &os.PathError{Op: "readdir", Path: dirname, Err: os.ErrNotExist}
	}
	files, dirs := b.svc.FindFiles(common.JoinPath(dir, "*"), b.include, common.SearchNone, false)

	result := make([]os.FileInfo, 0, len(files)+len(dirs))
	for _, name := range append(dirs, files...) {
		fi, err := b.Stat(common.JoinPath(dir, name))
		if err != nil {
			continue
		}
		result = append(result, fi)
	}
	return result, nil
}

func (b *BillyAdapter) MkdirAll(filename string, perm os.FileMode) error {
	return b.svc.CreatePath(filename)
}

func (b *BillyAdapter) Lstat(filename string) (os.FileInfo, error) {
	// the resolver follows symlinks, so Lstat and Stat agree
	return b.Stat(filename)
}

func (b *BillyAdapter) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (b *BillyAdapter) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

func (b *BillyAdapter) Chroot(path string) (billy.Filesystem, error) {
	return nil, billy.ErrNotSupported
}

func (b *BillyAdapter) Root() string {
	return "/"
}

func (b *BillyAdapter) Capabilities() billy.Capability {
	return billy.WriteCapability | billy.ReadCapability |
		billy.ReadAndWriteCapability | billy.SeekCapability | billy.TruncateCapability
}

// BillyFile wraps a FileHandle as a billy.File.
type BillyFile struct {
	handle FileHandle
	name   string
}

func (f *BillyFile) Name() string                                 { return f.name }
func (f *BillyFile) Write(p []byte) (int, error)                  { return f.handle.Write(p) }
func (f *BillyFile) Read(p []byte) (int, error)                   { return f.handle.Read(p) }
func (f *BillyFile) ReadAt(p []byte, off int64) (int, error)      { return f.handle.ReadAt(p, off) }
func (f *BillyFile) Seek(offset int64, whence int) (int64, error) { return f.handle.Seek(offset, whence) }
func (f *BillyFile) Close() error                                 { return f.handle.Close() }
func (f *BillyFile) Lock() error                                  { return nil }
func (f *BillyFile) Unlock() error                                { return nil }

func (f *BillyFile) Truncate(size int64) error {
	lh, ok := f.handle.(*LocalHandle)
	if !ok || !lh.Writable() {
		return &os.PathError{Op: "truncate", Path: f.name, Err: common.ErrReadOnly}
	}
	return lh.File().Truncate(size)
}

// BillyFileInfo is the os.FileInfo returned by the adapter.
type BillyFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *BillyFileInfo) Name() string       { return fi.name }
func (fi *BillyFileInfo) Size() int64        { return fi.size }
func (fi *BillyFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *BillyFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *BillyFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *BillyFileInfo) Sys() interface{}   { return nil }
