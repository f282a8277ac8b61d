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

package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// NewCPIOManager creates a manager for cpio archives. Plain, gzip and zstd
// compressed streams are recognized by their magic bytes. A cpio archive
// is read sequentially, so its files are held in memory once loaded.
func NewCPIOManager(locator vfs.PathLocator) *Manager {
	return newManager(FormatCPIO, locator, loadCPIO)
}

func loadCPIO(hostPath string) (*contents, error) {
	f, err := os.Open(hostPath)
	if err != nil {
		return nil, fmt.Errorf("open cpio: %w", err)
	}
	defer f.Close()

	stream, compressed, err := decompress(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("open cpio: %w", err)
	}
	defer stream.Close()

	c := newContents()
	r := cpio.NewReader(stream)
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cpio: %w", err)
		}

		fi := hdr.FileInfo()
		switch {
		case fi.IsDir():
			c.add(&entry{name: hdr.Name, dir: true, flags: common.FileDirectory})
		case fi.Mode().IsRegular():
			data, err := io.ReadAll(r)
			if err != nil {
				return nil, fmt.Errorf("read cpio entry %s: %w", hdr.Name, err)
			}
			var flags common.FileFlags
			if compressed {
				flags |= common.FileCompressed
			}
			c.add(&entry{
				name:  hdr.Name,
				size:  uint64(len(data)),
				flags: flags,
				read:  func() ([]byte, error) { return data, nil },
			})
		}
		// links and device nodes are not served
	}
	return c, nil
}

// decompress wraps r in the decoder matching its magic bytes.
func decompress(r *bufio.Reader) (io.ReadCloser, bool, error) {
	head, _ := r.Peek(4)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, false, err
		}
		return zr, true, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, false, err
		}
		return zr.IOReadCloser(), true, nil
	default:
		return io.NopCloser(r), false, nil
	}
}
