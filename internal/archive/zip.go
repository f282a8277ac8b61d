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
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"mountfs/internal/common"
	"mountfs/internal/vfs"
)

// zip general purpose flag bit for encrypted entries
const zipFlagEncrypted = 0x1

// NewZipManager creates a manager for zip archives (.zip, .pk3).
// Deflate, store and zstd entries are supported.
func NewZipManager(locator vfs.PathLocator) *Manager {
	return newManager(FormatZip, locator, loadZip)
}

func loadZip(hostPath string) (*contents, error) {
	rc, err := zip.OpenReader(hostPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	c := newContents()
	c.closer = rc
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			c.add(&entry{name: f.Name, dir: true, flags: common.FileDirectory})
			continue
		}
		var flags common.FileFlags
		if f.Method != zip.Store {
			flags |= common.FileCompressed
		}
		if f.Flags&zipFlagEncrypted != 0 {
			flags |= common.FileEncrypted
		}
		c.add(&entry{
			name:  f.Name,
			size:  f.UncompressedSize64,
			flags: flags,
			read:  zipReader(f),
		})
	}
	return c, nil
}

func zipReader(f *zip.File) func() ([]byte, error) {
	return func() ([]byte, error) {
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
}
