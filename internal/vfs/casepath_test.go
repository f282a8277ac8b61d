package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountfs/internal/common"
)

func TestNativize(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "Data", "Maps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "Data", "Maps", "Intro.BSP"), nil, 0o644))

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"exact", "Data/Maps/Intro.BSP", filepath.Join(base, "Data", "Maps", "Intro.BSP")},
		{"folded", "data/maps/intro.bsp", filepath.Join(base, "Data", "Maps", "Intro.BSP")},
		{"missing tail kept", "data/MAPS/none/x.bsp", filepath.Join(base, "Data", "Maps", "none", "x.bsp")},
		{"empty", "", base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nativize(base, tt.rel))
		})
	}
}

func TestStatFlags(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, common.FileDirectory, statFlags(dir))
	assert.Equal(t, common.FileNone, statFlags(file))
	assert.Equal(t, common.FileInvalid, statFlags(filepath.Join(dir, "x")))
}
