package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountfs/internal/common"
)

func identifiers(roots []RootPathInfo) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.Identifier
	}
	return out
}

func TestRootRegistry(t *testing.T) {
	t.Parallel()

	t.Run("primary is first registered and writable", func(t *testing.T) {
		t.Parallel()
		r := NewRootRegistry()
		_, err := r.AddSecondary("mods", "/mods", 10)
		require.NoError(t, err)
		r.SetPrimary("/game", 0)

		entries := r.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, PrimaryRootIdentifier, entries[0].Identifier)
		assert.True(t, entries[0].Writable())
		assert.False(t, entries[1].Writable())

		p, ok := r.Primary()
		require.True(t, ok)
		assert.Equal(t, "/game", p.Path)
	})

	t.Run("replacing primary keeps one entry", func(t *testing.T) {
		t.Parallel()
		r := NewRootRegistry()
		r.SetPrimary("/a", 0)
		r.SetPrimary("/b", 5)
		assert.Len(t, r.Entries(), 1)
		p, _ := r.Primary()
		assert.Equal(t, "/b", p.Path)
		assert.Equal(t, int32(5), p.Priority)
	})

	t.Run("ordered by descending priority, ties by registration", func(t *testing.T) {
		t.Parallel()
		r := NewRootRegistry()
		r.SetPrimary("/game", 0)
		r.AddSecondary("low", "/low", -1)
		r.AddSecondary("tie1", "/t1", 5)
		r.AddSecondary("high", "/high", 10)
		r.AddSecondary("tie2", "/t2", 5)

		assert.Equal(t, []string{"high", "tie1", "tie2", "root", "low"}, identifiers(r.Ordered()))
		assert.Equal(t, []string{"root", "low", "tie1", "high", "tie2"}, identifiers(r.Entries()))
	})

	t.Run("reserved and duplicate identifiers", func(t *testing.T) {
		t.Parallel()
		r := NewRootRegistry()
		for _, id := range []string{"root", "primary", ""} {
			_, err := r.AddSecondary(id, "/x", 0)
			assert.ErrorIs(t, err, common.ErrReservedIdentifier, id)
		}

		_, err := r.AddSecondary("mods", "/mods", 0)
		require.NoError(t, err)
		_, err = r.AddSecondary("mods", "/other", 1)
		assert.ErrorIs(t, err, common.ErrDuplicateRoot)
		assert.True(t, common.IsInvariantViolation(err))
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		r := NewRootRegistry()
		r.SetPrimary("/game", 0)
		r.AddSecondary("mods", "/mods", 10)

		assert.False(t, r.Remove(PrimaryRootIdentifier))
		assert.True(t, r.Remove("mods"))
		assert.False(t, r.Remove("mods"))
		assert.Equal(t, []string{"root"}, identifiers(r.Ordered()))

		_, ok := r.Get("mods")
		assert.False(t, ok)
	})
}
