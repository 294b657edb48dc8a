// file: internal/integrity/integrity_test.go
// version: 1.0.0
// guid: 4c5d6e7f-8a9b-4c0d-1e2f-3a4b5c6d7e8f

package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
)

func writeDeviceFile(t *testing.T, dev *deviceio.Device, location string) {
	t.Helper()
	path := dev.LocationToPath(location)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
}

func TestCheckHealsAllThreeDirections(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	store, err := mapping.Load(filepath.Join(t.TempDir(), "map.json"))
	require.NoError(t, err)

	// A healthy track with its file in place.
	okLoc := ":iPod_Control:Music:F00:GOOD.mp3"
	writeDeviceFile(t, dev, okLoc)
	// A track whose file is missing.
	goneLoc := ":iPod_Control:Music:F01:GONE.mp3"
	// An orphaned file no track references.
	orphan := filepath.Join(dev.MusicFolder(7), "ORPH.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("junk"), 0o644))

	db := &itunesdb.Database{
		Tracks: []*itunesdb.Track{
			{DBID: 1, TrackID: 1, Location: okLoc},
			{DBID: 2, TrackID: 2, Location: goneLoc},
		},
		Playlists: []*itunesdb.Playlist{
			{Name: "All", Items: []itunesdb.PlaylistItem{{TrackID: 1}, {TrackID: 2}}},
		},
	}
	store.Upsert("FPOK", mapping.Entry{DBID: 1, AlbumKey: "a"})
	store.Upsert("FPGONE", mapping.Entry{DBID: 2, AlbumKey: "b"})
	store.Upsert("FPDANGLE", mapping.Entry{DBID: 99, AlbumKey: "c"})

	report, err := Check(dev, db, store)
	require.NoError(t, err)

	// The missing-file track is gone from the working set and playlists.
	require.Len(t, db.Tracks, 1)
	require.Equal(t, uint64(1), db.Tracks[0].DBID)
	require.Len(t, db.Playlists[0].Items, 1)
	require.Len(t, report.MissingFiles, 1)

	// Both the dangling entry and the entry for the dropped track are gone.
	require.Len(t, report.DanglingEntries, 2)
	require.Empty(t, store.Entries("FPGONE"))
	require.Empty(t, store.Entries("FPDANGLE"))
	require.Len(t, store.Entries("FPOK"), 1)

	// The orphan is deleted from disk.
	require.Len(t, report.OrphanedFiles, 1)
	_, statErr := os.Stat(orphan)
	require.True(t, os.IsNotExist(statErr))

	require.Equal(t, 4, report.FixCount())
	require.Len(t, report.Lines(), 4)
}

func TestCheckIsIdempotent(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	store, err := mapping.Load(filepath.Join(t.TempDir(), "map.json"))
	require.NoError(t, err)

	loc := ":iPod_Control:Music:F00:GOOD.mp3"
	writeDeviceFile(t, dev, loc)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{{DBID: 1, TrackID: 1, Location: loc}}}
	store.Upsert("FP", mapping.Entry{DBID: 1, AlbumKey: "a"})
	store.Upsert("FPBAD", mapping.Entry{DBID: 77, AlbumKey: "b"})

	first, err := Check(dev, db, store)
	require.NoError(t, err)
	require.Equal(t, 1, first.FixCount())

	second, err := Check(dev, db, store)
	require.NoError(t, err)
	require.Zero(t, second.FixCount())
}

func TestCheckIgnoresNonAudioOrphans(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	store, err := mapping.Load(filepath.Join(t.TempDir(), "map.json"))
	require.NoError(t, err)

	stray := filepath.Join(dev.MusicFolder(3), "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stray), 0o755))
	require.NoError(t, os.WriteFile(stray, []byte("keep me"), 0o644))

	report, err := Check(dev, &itunesdb.Database{}, store)
	require.NoError(t, err)
	require.Empty(t, report.OrphanedFiles)
	_, statErr := os.Stat(stray)
	require.NoError(t, statErr)
}
