// file: internal/organizer/organizer_test.go
// version: 1.0.0
// guid: 8a9b0c1d-2e3f-4a4b-5c6d-7e8f9a0b1c2d

package organizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
)

func TestAllocateSpreadsAcrossFolders(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	p := NewPlacer(dev)

	folders := map[string]bool{}
	for i := 0; i < 10; i++ {
		path, location, err := p.Allocate("mp3")
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(path, ".mp3"))
		require.True(t, strings.HasPrefix(location, ":iPod_Control:Music:F"))

		base := filepath.Base(path)
		require.Len(t, base, len("XXXX.mp3"))
		folders[filepath.Dir(path)] = true
	}
	require.Len(t, folders, 10, "consecutive allocations rotate folders")
}

func TestPlaceCopiesFile(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	p := NewPlacer(dev)

	src := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio bytes"), 0o644))

	placed, location, err := p.Place(src, "mp3")
	require.NoError(t, err)
	require.Equal(t, placed, dev.LocationToPath(location))

	data, err := os.ReadFile(placed)
	require.NoError(t, err)
	require.Equal(t, []byte("audio bytes"), data)
}
