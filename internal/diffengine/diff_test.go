// file: internal/diffengine/diff_test.go
// version: 1.0.0
// guid: 3b4c5d6e-7f8a-4b9c-0d1e-2f3a4b5c6d7e

package diffengine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
)

func newStore(t *testing.T) *mapping.Store {
	t.Helper()
	store, err := mapping.Load(filepath.Join(t.TempDir(), "iOpenPod.json"))
	require.NoError(t, err)
	return store
}

func pcTrack(fp, album, rel string) *metadataprovider.PCTrack {
	return &metadataprovider.PCTrack{
		Path:        "/library/" + rel,
		RelPath:     rel,
		Ext:         "mp3",
		Size:        5_000_000,
		MTime:       time.Unix(1_700_000_000, 0),
		Fingerprint: fp,
		Title:       "Song",
		Artist:      "Artist",
		Album:       album,
		Genre:       "Rock",
		Year:        1999,
		TrackNumber: 1,
		DiscNumber:  1,
	}
}

// matchedFixture builds a store entry and device track consistent with pc,
// so an unmodified diff yields no actions.
func matchedFixture(store *mapping.Store, pc *metadataprovider.PCTrack, dbid uint64) *itunesdb.Track {
	store.Upsert(pc.Fingerprint, mapping.Entry{
		DBID:           dbid,
		AlbumKey:       AlbumKey(pc.Album),
		SourcePathHint: pc.RelPath,
		SourceSize:     pc.Size,
		SourceMTime:    pc.MTime.Unix(),
		ArtHash:        pc.ArtHash,
	})
	return &itunesdb.Track{
		DBID:         dbid,
		TrackID:      uint32(dbid),
		Title:        pc.Title,
		Artist:       pc.Artist,
		Album:        pc.Album,
		AlbumArtist:  pc.AlbumArtist,
		Genre:        pc.Genre,
		Year:         uint16(pc.Year),
		TrackNumber:  uint16(pc.TrackNumber),
		DiscNumber:   uint16(pc.DiscNumber),
		Rating:       pc.Rating,
		Size:         uint32(pc.Size),
		MhiiLink:     1,
		ArtworkCount: 1,
		Location:     ":iPod_Control:Music:F00:ABCD.mp3",
	}
}

func TestAlbumKeyNormalization(t *testing.T) {
	require.Equal(t, "greatest hits", AlbumKey("  Greatest Hits "))
	require.Equal(t, "albüm", AlbumKey("ALBÜM"))
	require.Equal(t, AlbumKey("Ａｌｂｕｍ"), AlbumKey("album"))
}

func TestNewTrackProducesAdd(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")

	plan := Diff([]*metadataprovider.PCTrack{pc}, &itunesdb.Database{}, store)
	require.Len(t, plan.Adds, 1)
	require.Equal(t, "studio", plan.Adds[0].AlbumKey)
	require.Equal(t, pc.Size, plan.Storage.BytesToAdd)
	require.Empty(t, plan.Removes)
}

func TestUnchangedLibraryProducesEmptyPlan(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	track := matchedFixture(store, pc, 11)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}, NextID: 100}

	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.True(t, plan.Empty(), "expected empty plan, got %v", Describe(plan))
}

func TestSameRecordingOnTwoAlbums(t *testing.T) {
	store := newStore(t)
	one := pcTrack("FP1", "Studio", "a/one.flac")
	two := pcTrack("FP1", "Greatest Hits", "b/two.m4a")

	plan := Diff([]*metadataprovider.PCTrack{one, two}, &itunesdb.Database{}, store)
	require.Len(t, plan.Adds, 2)
	require.NotEqual(t, plan.Adds[0].AlbumKey, plan.Adds[1].AlbumKey)
	require.Empty(t, plan.DuplicateGroups)
}

func TestTrueDuplicateReportedNotSynced(t *testing.T) {
	store := newStore(t)
	one := pcTrack("FP1", "Studio", "a/one.mp3")
	two := pcTrack("FP1", "Studio", "b/copy.mp3")

	plan := Diff([]*metadataprovider.PCTrack{one, two}, &itunesdb.Database{}, store)
	require.Len(t, plan.Adds, 1)
	require.Equal(t, "a/one.mp3", plan.Adds[0].Source.RelPath)
	require.Len(t, plan.DuplicateGroups, 1)
	require.Equal(t, []string{"a/one.mp3", "b/copy.mp3"}, plan.DuplicateGroups[0])
}

func TestRetagProducesMetadataUpdateOnly(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	track := matchedFixture(store, pc, 11)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	// Retag: title changed, mtime bumped, size moved by a few tag bytes.
	pc.Title = "Song (Remastered)"
	pc.MTime = pc.MTime.Add(time.Hour)
	pc.Size += 300

	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Empty(t, plan.FileUpdates)
	require.Len(t, plan.MetadataUpdates, 1)
	require.Equal(t, []string{"title"}, plan.MetadataUpdates[0].ChangedFields)
}

func TestFileChangeNeedsBothSizeAndMtime(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	track := matchedFixture(store, pc, 11)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	// Size moved well past the threshold but mtime is unchanged.
	pc.Size += 1_000_000
	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Empty(t, plan.FileUpdates)

	// Now the mtime moved too.
	pc.MTime = pc.MTime.Add(time.Hour)
	plan = Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Len(t, plan.FileUpdates, 1)
}

func TestArtworkChangeDetected(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	track := matchedFixture(store, pc, 11)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	pc.ArtHash = "d41d8cd98f00b204e9800998ecf8427e"
	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Len(t, plan.ArtworkUpdates, 1)
	require.Equal(t, pc.ArtHash, plan.ArtworkUpdates[0].NewArtHash)
	require.True(t, plan.RewriteArtwork)
}

func TestPlayCountAndRatingSync(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	pc.Rating = 40
	track := matchedFixture(store, pc, 11)
	track.PlayCount = 5
	track.PlayCount2 = 3
	track.Rating = 80
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Len(t, plan.PlayCountSyncs, 1)
	require.Equal(t, uint32(3), plan.PlayCountSyncs[0].PlayCountDelta)
	require.Len(t, plan.RatingSyncs, 1)
	require.Equal(t, uint8(80), plan.RatingSyncs[0].ResolvedRating, "device rating wins")
}

func TestRemovalPerMappingEntry(t *testing.T) {
	store := newStore(t)
	gone := pcTrack("FPGONE", "Old Album", "a/gone.mp3")
	track := matchedFixture(store, gone, 42)
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	plan := Diff(nil, db, store)
	require.Len(t, plan.Removes, 1)
	require.Equal(t, uint64(42), plan.Removes[0].DBID)
	require.Equal(t, int64(track.Size), plan.Storage.BytesToRemove)
}

func TestCollisionResolvedByPathHint(t *testing.T) {
	store := newStore(t)
	// Two entries share fingerprint and album key, as happens when the
	// same rip was added twice from different folders.
	store.Upsert("FP1", mapping.Entry{DBID: 1, AlbumKey: "studio", SourcePathHint: "a/one.mp3", SourceSize: 5_000_000, SourceMTime: 1_700_000_000})
	store.Upsert("FP1", mapping.Entry{DBID: 2, AlbumKey: "studio", SourcePathHint: "b/two.mp3", SourceSize: 5_000_000, SourceMTime: 1_700_000_000})
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{
		{DBID: 1, TrackID: 1, Title: "Song", Artist: "Artist", Album: "Studio", Genre: "Rock", Year: 1999, TrackNumber: 1, DiscNumber: 1, MhiiLink: 1, ArtworkCount: 1},
		{DBID: 2, TrackID: 2, Title: "Song", Artist: "Artist", Album: "Studio", Genre: "Rock", Year: 1999, TrackNumber: 1, DiscNumber: 1, MhiiLink: 1, ArtworkCount: 1},
	}}

	pc := pcTrack("FP1", "Studio", "a/one.mp3")
	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Empty(t, plan.UnresolvedCollisions)
	// The hint matched dbid 1; dbid 2's file is no longer in the library.
	require.Len(t, plan.Removes, 1)
	require.Equal(t, uint64(2), plan.Removes[0].DBID)
}

func TestUnresolvedCollisionEmitsNoActions(t *testing.T) {
	store := newStore(t)
	store.Upsert("FP1", mapping.Entry{DBID: 1, AlbumKey: "studio", SourcePathHint: "x/one.mp3"})
	store.Upsert("FP1", mapping.Entry{DBID: 2, AlbumKey: "studio", SourcePathHint: "y/two.mp3"})
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{
		{DBID: 1, TrackID: 1}, {DBID: 2, TrackID: 2},
	}}

	pc := pcTrack("FP1", "Studio", "somewhere/else.mp3")
	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Len(t, plan.UnresolvedCollisions, 1)
	require.Len(t, plan.UnresolvedCollisions[0].CandidateHints, 2)
	// Contested entries are held back from removal.
	require.Empty(t, plan.Removes)
	require.Empty(t, plan.Adds)
}

func TestMissingArtworkFlagsRewrite(t *testing.T) {
	store := newStore(t)
	pc := pcTrack("FP1", "Studio", "a/song.mp3")
	track := matchedFixture(store, pc, 11)
	track.MhiiLink = 0
	track.ArtworkCount = 0
	db := &itunesdb.Database{Tracks: []*itunesdb.Track{track}}

	plan := Diff([]*metadataprovider.PCTrack{pc}, db, store)
	require.Equal(t, []uint64{11}, plan.MissingArtwork)
	require.True(t, plan.RewriteArtwork)
}
