package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountfs/internal/common"
)

func newTestManager(t *testing.T) *RootPathCacheManager {
	t.Helper()
	m := NewRootPathCacheManager(0, nil)
	t.Cleanup(m.Close)
	return m
}

func TestRootPathCacheManagerReservedIdentifier(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	err := m.AddRoot(PrimaryIdentifier, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrReservedIdentifier))
	assert.True(t, common.IsInvariantViolation(err))
	assert.Equal(t, []string{PrimaryIdentifier}, m.Identifiers())
}

func TestRootPathCacheManagerDuplicateIdentifier(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	require.NoError(t, m.AddRoot("mods", t.TempDir()))
	err := m.AddRoot("mods", t.TempDir())
	assert.True(t, errors.Is(err, common.ErrDuplicateRoot))
}

func TestRootPathCacheManagerFanOut(t *testing.T) {
	t.Parallel()

	game := t.TempDir()
	mods := t.TempDir()
	writeTree(t, game, "shared.txt", "game-only.txt", "content/")
	writeTree(t, mods, "shared/", "content/maps/intro.txt")

	m := newTestManager(t)
	m.SetPrimaryRoot(game)
	require.NoError(t, m.AddRoot("mods", mods))
	m.Wait()

	require.True(t, m.IsComplete())
	assert.Equal(t, []string{PrimaryIdentifier, "mods"}, m.Identifiers())

	t.Run("first positive hit in registration order", func(t *testing.T) {
		// primary has shared.txt as a file; mods has "shared" as a directory
		assert.Equal(t, TypeFile, m.FindFileType("shared.txt"))
		assert.Equal(t, TypeDirectory, m.FindFileType("shared"))
		info, ok := m.FindItemInfo("content")
		require.True(t, ok)
		assert.Equal(t, TypeDirectory, info.Type)
	})

	t.Run("exists is an OR over caches", func(t *testing.T) {
		assert.True(t, m.Exists("game-only.txt"))
		assert.True(t, m.Exists("content/maps/intro.txt"))
		assert.False(t, m.Exists("nowhere.txt"))
	})

	t.Run("add and remove target the primary cache", func(t *testing.T) {
		m.Add("written.txt", TypeFile)
		assert.True(t, m.Primary().Exists("written.txt"))
		assert.False(t, m.Cache("mods").Exists("written.txt"))

		m.Remove("content/maps/intro.txt")
		assert.True(t, m.Exists("content/maps/intro.txt"), "secondary caches are read-only")
	})
}

func TestRootPathCacheManagerIsCompleteIsAnd(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	assert.False(t, m.IsComplete(), "primary without root is not complete")

	m.SetPrimaryRoot(t.TempDir())
	m.Wait()
	assert.True(t, m.IsComplete())

	require.NoError(t, m.AddRoot("extra", t.TempDir()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.WaitContext(ctx))
	assert.True(t, m.IsComplete())
}

func TestRootPathCacheManagerRemoveRoot(t *testing.T) {
	t.Parallel()

	mods := t.TempDir()
	writeTree(t, mods, "mod.txt")

	m := newTestManager(t)
	m.SetPrimaryRoot(t.TempDir())
	require.NoError(t, m.AddRoot("mods", mods))
	m.Wait()
	require.True(t, m.Exists("mod.txt"))

	assert.False(t, m.RemoveRoot(PrimaryIdentifier))
	assert.True(t, m.RemoveRoot("mods"))
	assert.False(t, m.RemoveRoot("mods"))
	assert.Nil(t, m.Cache("mods"))
	assert.False(t, m.Exists("mod.txt"))
}

func TestRootPathCacheManagerQueueMount(t *testing.T) {
	t.Parallel()

	game := t.TempDir()
	mods := t.TempDir()

	m := newTestManager(t)
	m.SetPrimaryRoot(game)
	require.NoError(t, m.AddRoot("mods", mods))
	m.Wait()

	writeTree(t, game, "addon/a.txt")
	writeTree(t, mods, "addon/b.txt")
	m.QueueMount("addon")
	m.Wait()

	assert.True(t, m.Primary().Exists("addon/a.txt"))
	assert.True(t, m.Cache("mods").Exists("addon/b.txt"))
	assert.Equal(t, 2, m.Len(), "queued directories index their children")
}
