// file: internal/mapping/mapping_test.go
// version: 1.0.0
// guid: e5f6a7b8-9c0d-4e1f-2a3b-4c5d6e7f8a9b

package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)
	require.Equal(t, 0, s.TrackCount())
	require.False(t, s.Dirty())
}

func TestUpsertThenSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")

	s, err := Load(path)
	require.NoError(t, err)

	s.Upsert("fp-1", Entry{DBID: 100, AlbumKey: "artist|album", SourceSize: 4096})
	s.Upsert("fp-1", Entry{DBID: 101, AlbumKey: "artist|album", SourceSize: 8192})
	require.True(t, s.Dirty())
	require.NoError(t, s.Save())
	require.False(t, s.Dirty())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Entries("fp-1"), 2)
	require.Equal(t, 2, reloaded.TrackCount())
}

func TestUpsertReplacesExistingDBID(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)

	s.Upsert("fp-1", Entry{DBID: 5, SourceSize: 1})
	s.Upsert("fp-1", Entry{DBID: 5, SourceSize: 2})

	entries := s.Entries("fp-1")
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].SourceSize)
}

func TestByDBIDScansAllFingerprints(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)

	s.Upsert("fp-a", Entry{DBID: 1})
	s.Upsert("fp-b", Entry{DBID: 2})

	fp, entry, ok := s.ByDBID(2)
	require.True(t, ok)
	require.Equal(t, "fp-b", fp)
	require.Equal(t, uint64(2), entry.DBID)

	_, _, ok = s.ByDBID(999)
	require.False(t, ok)
}

func TestRemoveByDBIDDeletesAcrossFingerprints(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)

	s.Upsert("fp-a", Entry{DBID: 1})
	require.True(t, s.RemoveByDBID(1))
	require.Empty(t, s.Entries("fp-a"))
	require.Empty(t, s.AllFingerprints())
	require.False(t, s.RemoveByDBID(1))
}

func TestRemoveLeavesOtherEntriesForSameFingerprint(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)

	s.Upsert("fp-a", Entry{DBID: 1})
	s.Upsert("fp-a", Entry{DBID: 2})
	require.True(t, s.Remove("fp-a", 1))
	require.Len(t, s.Entries("fp-a"), 1)
	require.Equal(t, uint64(2), s.Entries("fp-a")[0].DBID)
}

func TestLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
