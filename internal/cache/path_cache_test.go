package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPathCacheGetSet(t *testing.T) {
	if Disabled {
		t.Skip("MOUNTFS_CACHE=0")
	}
	t.Parallel()

	c := NewPathCache(0, 0)
	key := PathKey("/game", "content", "maps/intro.txt")

	_, _, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, "content/maps/intro.txt", "/game/Content/Maps/Intro.txt", false)
	host, isDir, ok := c.Get(key)
	assert.True(t, ok)
	assert.False(t, isDir)
	assert.Equal(t, "/game/Content/Maps/Intro.txt", host)

	c.Delete(key)
	_, _, ok = c.Get(key)
	assert.False(t, ok)
}

func TestPathCacheTTL(t *testing.T) {
	if Disabled {
		t.Skip("MOUNTFS_CACHE=0")
	}
	t.Parallel()

	c := NewPathCache(10*time.Millisecond, 0)
	c.Set("k", "a", "/a", false)
	_, _, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, _, ok = c.Get("k")
	assert.False(t, ok, "expired entries are misses")
}

func TestPathCacheMaxSize(t *testing.T) {
	if Disabled {
		t.Skip("MOUNTFS_CACHE=0")
	}
	t.Parallel()

	c := NewPathCache(0, 2)
	c.Set("a", "a", "/a", false)
	c.Set("b", "b", "/b", false)
	c.Set("c", "c", "/c", false)
	assert.Equal(t, 2, c.Size())

	c.Set("a", "a", "/A", false)
	host, _, _ := c.Get("a")
	assert.Equal(t, "/A", host, "existing keys may still be updated at capacity")

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.MaxSize)
}

func TestPathCacheInvalidation(t *testing.T) {
	if Disabled {
		t.Skip("MOUNTFS_CACHE=0")
	}
	t.Parallel()

	fill := func() *PathCache {
		c := NewPathCache(0, 0)
		c.Set("1", "maps", "/r/maps", true)
		c.Set("2", "maps/intro.txt", "/r/maps/intro.txt", false)
		c.Set("3", "mapsextra/x.txt", "/r/mapsextra/x.txt", false)
		c.Set("4", "readme.txt", "/r/readme.txt", false)
		return c
	}

	t.Run("path and subtree", func(t *testing.T) {
		c := fill()
		c.InvalidatePath("maps")
		assert.Equal(t, 2, c.Size())
		_, _, ok := c.Get("3")
		assert.True(t, ok, "sibling with shared name prefix survives")
	})

	t.Run("rename", func(t *testing.T) {
		c := fill()
		c.InvalidateRename("readme.txt", "maps/intro.txt")
		assert.Equal(t, 2, c.Size())
	})

	t.Run("empty path clears everything", func(t *testing.T) {
		c := fill()
		c.InvalidatePath("")
		assert.Equal(t, 0, c.Size())
	})

	t.Run("full invalidate", func(t *testing.T) {
		c := fill()
		var inv Invalidator = c
		inv.Invalidate()
		assert.Equal(t, 0, c.Size())
	})
}
