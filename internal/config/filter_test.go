package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHiddenFilter(t *testing.T) {
	t.Parallel()

	t.Run("nothing to hide", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, NewHiddenFilter(t.TempDir(), HiddenConfig{}))
		var f *HiddenFilter
		assert.False(t, f.Hidden("anything", false))
	})

	t.Run("patterns and includes", func(t *testing.T) {
		t.Parallel()
		f := NewHiddenFilter("", HiddenConfig{
			Patterns: []string{".git", "*.tmp", "build/"},
			Includes: []string{"build/keep"},
		})
		require.NotNil(t, f)

		tests := []struct {
			rel    string
			isDir  bool
			hidden bool
		}{
			{".git", true, true},
			{".git/config", false, true},
			{"src/.git", true, true},
			{"notes.tmp", false, true},
			{"docs/a.tmp", false, true},
			{"build", true, true},
			{"build/keep", true, false},
			{"BUILD/Keep/x.o", false, false},
			{"src/main.go", false, false},
			{"", true, false},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.hidden, f.Hidden(tt.rel, tt.isDir), tt.rel)
		}
	})

	t.Run("gitignore files", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("cache/\n"), 0o644))

		f := NewHiddenFilter(root, HiddenConfig{Gitignore: true})
		require.NotNil(t, f)
		assert.True(t, f.Hidden("server.log", false))
		assert.True(t, f.Hidden("sub/deep/debug.log", false))
		assert.True(t, f.Hidden("sub/cache", true))
		assert.False(t, f.Hidden("cache", true), "nested rules are scoped to their directory")
		assert.False(t, f.Hidden("main.go", false))
	})

	t.Run("gitignore disabled", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
		assert.Nil(t, NewHiddenFilter(root, HiddenConfig{}))
	})
}
