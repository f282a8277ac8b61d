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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeTree creates files (and their parent directories) below root.
// Entries ending in "/" are created as empty directories.
func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if strings.HasSuffix(p, "/") {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(p), 0o644))
	}
}

func newTestCache(t *testing.T, filter Filter) *IndexCache {
	t.Helper()
	c := NewIndexCache(0, filter)
	t.Cleanup(c.Close)
	return c
}

type prefixFilter string

func (p prefixFilter) Hidden(rel string, isDir bool) bool {
	return strings.HasPrefix(strings.ToLower(rel), string(p))
}

func TestIndexCacheEmpty(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, nil)
	assert.Equal(t, StateEmpty, c.State())
	assert.False(t, c.IsComplete(), "a cache without root is never complete")
	assert.Equal(t, TypeInvalid, c.FindFileType("anything"))

	c.QueuePath(t.TempDir())
	assert.Equal(t, StateEmpty, c.State(), "QueuePath without root is ignored")
}

func TestIndexCacheResetAndWait(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root,
		"readme.txt",
		"Maps/Intro.txt",
		"maps/dungeon/level1.map",
		"scripts/ai/brain.lua",
		"empty/",
	)

	c := newTestCache(t, nil)
	c.Reset(root)
	c.Wait()

	require.True(t, c.IsComplete())
	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, root, c.Root())

	t.Run("every file and directory is indexed", func(t *testing.T) {
		files := []string{"readme.txt", "maps/intro.txt", "maps/dungeon/level1.map", "scripts/ai/brain.lua"}
		dirs := []string{"maps", "maps/dungeon", "scripts", "scripts/ai", "empty"}
		for _, f := range files {
			assert.Equal(t, TypeFile, c.FindFileType(f), f)
		}
		for _, d := range dirs {
			assert.Equal(t, TypeDirectory, c.FindFileType(d), d)
		}
		assert.Equal(t, len(files)+len(dirs), c.Len())
	})

	t.Run("lookups ignore case and separator style", func(t *testing.T) {
		assert.True(t, c.Exists("MAPS/INTRO.TXT"))
		assert.True(t, c.Exists(`maps\dungeon\LEVEL1.map`))
		assert.True(t, c.Exists("/scripts/ai/"))
		info, ok := c.FindItemInfo("Scripts")
		require.True(t, ok)
		assert.Equal(t, TypeDirectory, info.Type)
	})

	t.Run("complete cache reports absence", func(t *testing.T) {
		assert.False(t, c.Exists("maps/missing.txt"))
		assert.Equal(t, TypeInvalid, c.FindFileType("nope"))
	})
}

func TestIndexCacheLargeTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var paths []string
	for i := 0; i < 20; i++ {
		for j := 0; j < 10; j++ {
			paths = append(paths, fmt.Sprintf("d%02d/s%02d/file.txt", i, j))
		}
	}
	writeTree(t, root, paths...)

	c := newTestCache(t, nil)
	c.Reset(root)

	g := NewWithT(t)
	g.Eventually(c.IsComplete).WithTimeout(10 * time.Second).Should(BeTrue())

	// 200 files + 20 top-level dirs + 200 subdirs
	assert.Equal(t, 420, c.Len())
	for _, p := range paths {
		assert.True(t, c.Exists(p), p)
	}
}

func TestIndexCacheMidPopulation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "a/b/c/d/e/f.txt", "top.txt")

	c := newTestCache(t, nil)
	c.Reset(root)

	// Entries appear as they are merged; once seen they stay visible.
	g := NewWithT(t)
	g.Eventually(func() bool { return c.Exists("top.txt") }).WithTimeout(5 * time.Second).Should(BeTrue())
	g.Consistently(func() bool { return c.Exists("top.txt") }).WithTimeout(50 * time.Millisecond).Should(BeTrue())

	c.Wait()
	assert.True(t, c.Exists("a/b/c/d/e/f.txt"))
}

func TestIndexCacheAddRemove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "dir/sub/file.txt", "dir/other.txt", "keep.txt")

	c := newTestCache(t, nil)
	c.Reset(root)
	c.Wait()

	t.Run("add is visible without rescanning", func(t *testing.T) {
		c.Add("New/File.txt", TypeFile)
		assert.Equal(t, TypeFile, c.FindFileType("new/file.txt"))
	})

	t.Run("removing a file drops only that entry", func(t *testing.T) {
		c.Remove("dir/other.txt")
		assert.False(t, c.Exists("dir/other.txt"))
		assert.True(t, c.Exists("dir/sub/file.txt"))
	})

	t.Run("removing a directory drops its subtree", func(t *testing.T) {
		c.Remove("DIR")
		assert.False(t, c.Exists("dir"))
		assert.False(t, c.Exists("dir/sub"))
		assert.False(t, c.Exists("dir/sub/file.txt"))
		assert.True(t, c.Exists("keep.txt"))
	})

	t.Run("adding invalid removes", func(t *testing.T) {
		c.Add("keep.txt", TypeInvalid)
		assert.False(t, c.Exists("keep.txt"))
	})

	t.Run("root key is never stored", func(t *testing.T) {
		before := c.Len()
		c.Add("/", TypeDirectory)
		assert.Equal(t, before, c.Len())
	})
}

func TestIndexCacheResetSwitchesRoot(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeTree(t, first, "only-first.txt")
	writeTree(t, second, "only-second.txt")

	c := newTestCache(t, nil)
	c.Reset(first)
	c.Wait()
	require.True(t, c.Exists("only-first.txt"))

	c.Reset(second)
	c.Wait()
	assert.False(t, c.Exists("only-first.txt"))
	assert.True(t, c.Exists("only-second.txt"))

	c.Reset("")
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Len())
}

func TestIndexCacheResetDuringPopulation(t *testing.T) {
	t.Parallel()

	big := t.TempDir()
	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, fmt.Sprintf("n%02d/x/y/z.txt", i))
	}
	writeTree(t, big, paths...)
	small := t.TempDir()
	writeTree(t, small, "one.txt")

	c := newTestCache(t, nil)
	for i := 0; i < 5; i++ {
		c.Reset(big)
		c.Reset(small)
	}
	c.Wait()

	assert.Equal(t, 1, c.Len(), "results of discarded generations must not leak")
	assert.True(t, c.Exists("one.txt"))
}

func TestIndexCacheQueuePath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "base.txt")

	c := newTestCache(t, nil)
	c.Reset(root)
	c.Wait()

	t.Run("new directory below root", func(t *testing.T) {
		writeTree(t, root, "content/maps/late.txt")
		c.QueuePath(filepath.Join(root, "content"))
		c.Wait()
		assert.True(t, c.Exists("content/maps/late.txt"))
		assert.True(t, c.Exists("content/maps"))
	})

	t.Run("directory outside root is ignored", func(t *testing.T) {
		outside := t.TempDir()
		writeTree(t, outside, "stray.txt")
		c.QueuePath(outside)
		c.Wait()
		assert.False(t, c.Exists("stray.txt"))
	})

	t.Run("missing directory is ignored", func(t *testing.T) {
		c.QueuePath(filepath.Join(root, "does-not-exist"))
		assert.True(t, c.IsComplete())
	})
}

func TestIndexCacheFilter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, ".git/config", ".git/objects/aa", "src/main.go")

	c := newTestCache(t, prefixFilter(".git"))
	c.Reset(root)
	c.Wait()

	assert.False(t, c.Exists(".git"))
	assert.False(t, c.Exists(".git/config"))
	assert.True(t, c.Exists("src/main.go"))
}

func TestIndexCacheSkipsUnreadable(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	writeTree(t, root, "locked/secret.txt", "open/file.txt")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c := newTestCache(t, nil)
	c.Reset(root)
	c.Wait()

	assert.True(t, c.IsComplete())
	assert.True(t, c.Exists("locked"), "the directory itself is listed by its parent")
	assert.False(t, c.Exists("locked/secret.txt"))
	assert.True(t, c.Exists("open/file.txt"))
}

func TestIndexCacheSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "real/file.txt")
	if err := os.Symlink(filepath.Join(root, "real", "file.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	c := newTestCache(t, nil)
	c.Reset(root)
	c.Wait()

	assert.Equal(t, TypeFile, c.FindFileType("link.txt"))
	assert.False(t, c.Exists("dangling"))
}

func TestIndexCacheSymlinkLoops(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "a/file.txt", "b/other.txt")
	links := map[string]string{
		"a/self": "a", // points at its own parent
		"a/up":   ".", // points at the root
		"a/l":    "b", // a/l -> b and b/m -> a form a cycle
		"b/m":    "a",
	}
	for link, target := range links {
		if err := os.Symlink(filepath.Join(root, target), filepath.Join(root, filepath.FromSlash(link))); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	c := newTestCache(t, nil)
	c.Reset(root)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.WaitContext(ctx))

	tests := []struct {
		rel  string
		want Type
	}{
		{"a/self", TypeDirectory},
		{"a/up", TypeDirectory},
		{"a/l", TypeDirectory},
		{"a/l/other.txt", TypeFile},
		{"a/l/m/file.txt", TypeFile},
		{"b/m/l/other.txt", TypeFile},
		{"a/self/file.txt", TypeInvalid},
		{"a/l/m/l/other.txt", TypeInvalid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.FindFileType(tt.rel), tt.rel)
	}
}

func TestIndexCacheWaitContext(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "a.txt")

	c := newTestCache(t, nil)
	c.Reset(root)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitContext(ctx))

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	// Already complete, so cancellation does not matter.
	assert.NoError(t, c.WaitContext(cancelled))
}

func TestIndexCacheClose(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, "a/b.txt")

	c := NewIndexCache(2, nil)
	c.Reset(root)
	c.Wait()
	c.Close()
	c.Close()

	assert.True(t, c.Exists("a/b.txt"), "lookups keep working after close")
	c.Reset(t.TempDir())
	assert.True(t, c.Exists("a/b.txt"), "reset after close is a no-op")
	c.Wait()
}

func TestTypeAndStateStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file", TypeFile.String())
	assert.Equal(t, "directory", TypeDirectory.String())
	assert.Equal(t, "invalid", TypeInvalid.String())
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "populating", StatePopulating.String())
	assert.Equal(t, "complete", StateComplete.String())
}
