// file: internal/itunesdb/codec_test.go
// version: 1.0.0
// guid: e9f7b1a2-3d4e-4f5a-6b7c-8d9e0f1a2b3c

package itunesdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDatabase() *Database {
	return &Database{
		Version: 0x0A,
		ID:      0x1122334455667788,
		NextID:  1,
		Albums: []*Album{
			{AlbumID: 1, Title: "Greatest Hits", Artist: "A Band"},
		},
		Tracks: []*Track{
			{
				AlbumID: 1, FileType: "MP3", Rating: 100, Size: 4096,
				DurationMS: 180000, BitrateKbps: 256, SampleRateHz: 44100,
				TrackNumber: 1, DiscNumber: 1, Year: 1999, MediaType: MediaTypeAudio,
				Title: "Song One", Artist: "A Band", Album: "Greatest Hits",
				AlbumArtist: "A Band", Genre: "Rock", Location: ":iPod_Control:Music:F00:ABCD.mp3",
			},
			{
				AlbumID: 1, FileType: "M4A", Rating: 80, Size: 2048,
				DurationMS: 90000, BitrateKbps: 192, SampleRateHz: 48000,
				TrackNumber: 2, DiscNumber: 1, Year: 2001, MediaType: MediaTypeAudio,
				Title: "ソング二", Artist: "バンド", Album: "Greatest Hits",
				Location: ":iPod_Control:Music:F01:WXYZ.m4a",
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	db := newTestDatabase()
	emitted, assigned, err := Emit(db)
	require.NoError(t, err)
	require.Len(t, assigned, 2)

	parsed, err := Parse(emitted)
	require.NoError(t, err)
	require.Len(t, parsed.Tracks, 2)
	require.Equal(t, "Song One", parsed.Tracks[0].Title)
	require.Equal(t, "A Band", parsed.Tracks[0].Artist)
	require.Equal(t, "ソング二", parsed.Tracks[1].Title)
	require.Equal(t, ":iPod_Control:Music:F00:ABCD.mp3", parsed.Tracks[0].Location)
	require.Len(t, parsed.Albums, 1)
	require.Equal(t, "Greatest Hits", parsed.Albums[0].Title)
	require.Len(t, parsed.Playlists, 1)
	require.True(t, parsed.Playlists[0].IsMaster)
	require.Len(t, parsed.Playlists[0].Items, 2)

	reEmitted, _, err := Emit(parsed)
	require.NoError(t, err)
	reparsed, err := Parse(reEmitted)
	require.NoError(t, err)
	require.Equal(t, parsed.Tracks[0].Title, reparsed.Tracks[0].Title)
	require.Equal(t, parsed.Tracks[1].Title, reparsed.Tracks[1].Title)
}

func TestLengthClosure(t *testing.T) {
	db := newTestDatabase()
	emitted, _, err := Emit(db)
	require.NoError(t, err)

	parsed, err := Parse(emitted)
	require.NoError(t, err)
	_ = parsed
	// Parse itself walks every container's total_length boundary; a
	// mismatch would surface as a TruncatedError above.
	require.Equal(t, len(emitted), int(totalLengthOf(emitted)))
}

func totalLengthOf(data []byte) uint32 {
	return uint32(data[8]) | uint32(data[9])<<8 | uint32(data[10])<<16 | uint32(data[11])<<24
}

func TestUniqueDBIDs(t *testing.T) {
	db := newTestDatabase()
	_, _, err := Emit(db)
	require.NoError(t, err)

	seen := map[uint64]bool{}
	for _, tr := range db.Tracks {
		require.False(t, seen[tr.DBID], "dbid reused")
		require.NotZero(t, tr.DBID)
		seen[tr.DBID] = true
	}
}

func TestNextIDMonotone(t *testing.T) {
	db := newTestDatabase()
	_, _, err := Emit(db)
	require.NoError(t, err)

	require.Greater(t, db.NextID, db.MaxTrackID())
}

func TestPlaylistIntegrityRejectsDanglingReference(t *testing.T) {
	db := newTestDatabase()
	db.Playlists = []*Playlist{
		{Name: "Favorites", Items: []PlaylistItem{{TrackID: 9999}}},
	}
	_, _, err := Emit(db)
	require.Error(t, err)
	require.IsType(t, &CodecInvariantViolation{}, err)
}

func TestDuplicateDBIDRejected(t *testing.T) {
	db := newTestDatabase()
	db.Tracks[0].TrackID = 1
	db.Tracks[0].DBID = 42
	db.Tracks[1].TrackID = 2
	db.Tracks[1].DBID = 42
	_, _, err := Emit(db)
	require.Error(t, err)
}

func TestASCIIStringsEncodeAsUTF8(t *testing.T) {
	require.True(t, isPureASCII("Greatest Hits"))
	require.False(t, isPureASCII("ソング"))

	payload := encodeStringPayload("abc")
	require.Equal(t, []byte("abc"), payload)
	require.Equal(t, "abc", decodeStringPayload(payload))

	wide := encodeStringPayload("ソング")
	require.Equal(t, "ソング", decodeStringPayload(wide))
}

func TestSmartPlaylistRoundTrip(t *testing.T) {
	db := newTestDatabase()
	db.SmartPlaylists = []*SmartPlaylist{
		{PersistentID: 7, Name: "Recently Added", RulesPayload: []byte{0x01, 0x02, 0x03, 0x04}},
	}
	emitted, _, err := Emit(db)
	require.NoError(t, err)

	parsed, err := Parse(emitted)
	require.NoError(t, err)
	require.Len(t, parsed.SmartPlaylists, 1)
	require.Equal(t, "Recently Added", parsed.SmartPlaylists[0].Name)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, parsed.SmartPlaylists[0].RulesPayload)
}
