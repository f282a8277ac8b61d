package vfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountfs/internal/common"
)

func TestMemoryHandle(t *testing.T) {
	t.Parallel()

	t.Run("read seek tell eof", func(t *testing.T) {
		t.Parallel()
		h := newVirtualHandle("a.txt", NewVFile("a.txt", []byte("hello")), true)
		assert.Equal(t, KindVirtual, h.Kind())
		assert.Equal(t, common.FileVirtual|common.FileReadOnly, h.Flags())
		assert.Equal(t, int64(5), h.Size())

		buf := make([]byte, 2)
		n, err := h.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, "he", string(buf))
		assert.Equal(t, int64(2), h.Tell())

		pos, err := h.Seek(-1, io.SeekEnd)
		require.NoError(t, err)
		assert.Equal(t, int64(4), pos)
		b, err := h.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte('o'), b)
		assert.True(t, h.Eof())

		_, err = h.Read(buf)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("read at does not move the cursor", func(t *testing.T) {
		t.Parallel()
		h := NewPackageHandle("p", []byte("abcdef"), common.FileCompressed, false)
		buf := make([]byte, 3)
		n, err := h.ReadAt(buf, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "cde", string(buf))
		assert.Equal(t, int64(0), h.Tell())

		n, err = h.ReadAt(buf, 4)
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("package flags", func(t *testing.T) {
		t.Parallel()
		h := NewPackageHandle("p", nil, common.FileCompressed, false)
		assert.Equal(t, KindPackage, h.Kind())
		assert.True(t, h.Flags().Has(common.FilePackage|common.FileReadOnly|common.FileCompressed))
		assert.False(t, h.Binary())
	})

	t.Run("writes are rejected", func(t *testing.T) {
		t.Parallel()
		h := NewPackageHandle("p", []byte("x"), 0, true)
		_, err := h.Write([]byte("y"))
		assert.ErrorIs(t, err, common.ErrReadOnly)
		assert.False(t, h.Writable())
	})

	t.Run("invalid seek", func(t *testing.T) {
		t.Parallel()
		h := NewPackageHandle("p", []byte("x"), 0, true)
		_, err := h.Seek(-5, io.SeekStart)
		assert.Error(t, err)
		_, err = h.Seek(0, 42)
		assert.Error(t, err)
	})

	t.Run("read after close fails", func(t *testing.T) {
		t.Parallel()
		h := NewPackageHandle("p", []byte("x"), 0, true)
		require.NoError(t, h.Close())
		_, err := h.Read(make([]byte, 1))
		assert.ErrorIs(t, err, os.ErrClosed)
	})
}

func TestLocalHandle(t *testing.T) {
	t.Parallel()

	t.Run("read", func(t *testing.T) {
		t.Parallel()
		p := filepath.Join(t.TempDir(), "f.bin")
		require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))

		h, err := openLocal(p, "rb")
		require.NoError(t, err)
		defer h.Close()

		assert.Equal(t, KindLocal, h.Kind())
		assert.Equal(t, common.FileNone, h.Flags())
		assert.Equal(t, p, h.Path())
		assert.Equal(t, int64(3), h.Size())
		assert.True(t, h.Binary())
		assert.False(t, h.Writable())

		b, err := h.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte('a'), b)
		assert.Equal(t, int64(1), h.Tell())
		assert.False(t, h.Eof())

		rest, err := io.ReadAll(h)
		require.NoError(t, err)
		assert.Equal(t, "bc", string(rest))
		assert.True(t, h.Eof())

		_, err = h.ReadByte()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("write truncates and append keeps", func(t *testing.T) {
		t.Parallel()
		p := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))

		h, err := openLocal(p, "w")
		require.NoError(t, err)
		_, err = h.Write([]byte("new"))
		require.NoError(t, err)
		assert.Equal(t, int64(3), h.Size())
		require.NoError(t, h.Close())

		h, err = openLocal(p, "a")
		require.NoError(t, err)
		_, err = h.Write([]byte("er"))
		require.NoError(t, err)
		require.NoError(t, h.Close())

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "newer", string(data))
	})

	t.Run("r+ requires an existing file", func(t *testing.T) {
		t.Parallel()
		_, err := openLocal(filepath.Join(t.TempDir(), "missing"), "r+")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directories cannot be opened", func(t *testing.T) {
		t.Parallel()
		_, err := openLocal(t.TempDir(), "r")
		assert.ErrorIs(t, err, common.ErrIsDir)
	})
}
