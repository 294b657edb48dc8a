// file: internal/itunesdb/types.go
// version: 1.0.0
// guid: e3f1c5a6-7d8b-4c9e-0f1a-2b3c4d5e6f7a

// Package itunesdb implements the reader and writer for the iPod's
// proprietary iTunesDB binary database: a tree of tagged, length-prefixed
// chunks (mhbd/mhsd/mhlt/mhit/mhod/...).
package itunesdb

// MhodType discriminates the payload held by an mhod chunk.
type MhodType uint32

// String mhod types. Values follow the commonly documented iTunesDB layout;
// this engine only needs to round-trip them, not interpret every one.
const (
	MhodTitle         MhodType = 1
	MhodLocation      MhodType = 2
	MhodAlbum         MhodType = 3
	MhodArtist        MhodType = 4
	MhodGenre         MhodType = 5
	MhodFileTypeWords MhodType = 6
	MhodComment       MhodType = 8
	MhodComposer      MhodType = 12
	MhodGrouping      MhodType = 13
	MhodAlbumArtist   MhodType = 52
	MhodSortTitle     MhodType = 27
	MhodSortArtist    MhodType = 28
	MhodSortAlbum     MhodType = 29
)

// Binary/opaque mhod types; payload bytes are carried through untouched.
const (
	MhodSmartPlaylistRules MhodType = 50
	MhodLibraryPlaylistJS  MhodType = 51
)

// MediaType codes written into mhit's media-type field.
const (
	MediaTypeAudio     uint32 = 0x1
	MediaTypeAudiobook uint32 = 0x8
	MediaTypePodcast   uint32 = 0x4
	MediaTypeMovie     uint32 = 0x2
)

// DatasetType discriminates an mhsd envelope.
type DatasetType uint32

const (
	DatasetTracks         DatasetType = 1
	DatasetPlaylists      DatasetType = 2
	DatasetPodcasts       DatasetType = 3
	DatasetAlbums         DatasetType = 4
	DatasetSmartPlaylists DatasetType = 5
)

// StringChild is one mhod string or opaque-binary payload attached to a
// track, album, or playlist record.
type StringChild struct {
	Type    MhodType
	Text    string // valid when the type is a known string type
	Binary  []byte // valid for opaque/unknown or smart-playlist-rule payloads
	IsASCII bool   // set by the reader from Text; the writer ignores it and picks the encoding from Text
}

// Track is the in-memory form of one mhit record plus its string children.
type Track struct {
	DBID      uint64 // 64-bit globally unique identifier, never reused
	TrackID   uint32 // 32-bit, scoped to this database
	AlbumID   uint32 // links to the album list; 0 if none
	MhiiLink  uint32 // points at the artwork mhii record; 0 if none

	FileType       string // four-character ASCII word, e.g. "MP3 "
	Rating         uint8  // 0-100, representable as stars*20
	PlayCount      uint32 // cumulative
	PlayCount2     uint32 // play-count-since-last-sync; the executor folds it into PlayCount and zeroes it before emit
	LastPlayedMac  uint32 // seconds since 1904-01-01, 0 if never played
	Size           uint32 // bytes
	DurationMS     uint32
	BitrateKbps    uint32
	SampleRateHz   uint32 // writer encodes as hz*65536 on emit
	TrackNumber    uint16
	TrackCount     uint16
	DiscNumber     uint16
	DiscCount      uint16
	Year           uint16
	MediaType      uint32
	ArtworkCount   uint32 // 0 if no artwork
	DateAddedMac   uint32

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Composer    string
	Comment     string
	Location    string // on-device path in the database's own notation, colon-separated from the mount root

	extraChildren []StringChild // round-tripped unknown/opaque mhod children
}

// Album is one mhia record: an album identified by name + artist, linking
// the tracks that belong to it via Track.AlbumID.
type Album struct {
	AlbumID uint32
	Title   string
	Artist  string
}

// PlaylistItem is one mhip entry: a reference to a track by its
// database-scoped TrackID.
type PlaylistItem struct {
	TrackID uint32
}

// Playlist is one mhyp record.
type Playlist struct {
	PersistentID uint64
	Name         string
	IsMaster     bool
	Items        []PlaylistItem
}

// SmartPlaylist is one mhyp record inside the smart-playlists dataset. The
// rule payload is carried as opaque bytes and re-emitted unmodified, so
// databases containing smart playlists round-trip without this codec
// understanding the rule grammar.
type SmartPlaylist struct {
	PersistentID uint64
	Name         string
	RulesPayload []byte
}

// Database is the full in-memory parse/emit tree for one iTunesDB file.
type Database struct {
	Version uint32 // mhbd.version
	ID      uint64 // mhbd file id, randomly generated on first creation
	NextID  uint32 // must be > every assigned TrackID

	Unk0x32 [20]byte // opaque device field at offset 50; round-tripped, excluded from hash input

	HashingScheme uint16 // written by the signer: 0 = none, 1 = HASH58 (also when both are applied), 2 = HASH72 alone
	Signature     [46]byte

	Albums         []*Album
	Tracks         []*Track
	Playlists      []*Playlist // index 0, if IsMaster, is the master playlist
	SmartPlaylists []*SmartPlaylist

	// UnknownTopLevelChunks preserves unrecognized top-level chunk bytes
	// (tag + raw bytes) seen by the reader so an unmodified round-trip
	// doesn't silently drop data the codec doesn't understand.
	UnknownTopLevelChunks [][]byte
}

// FindTrackByID returns the track whose TrackID matches id, or nil.
func (d *Database) FindTrackByID(id uint32) *Track {
	for _, t := range d.Tracks {
		if t.TrackID == id {
			return t
		}
	}
	return nil
}

// MaxTrackID returns the highest TrackID assigned across all tracks, or 0
// if there are none.
func (d *Database) MaxTrackID() uint32 {
	var max uint32
	for _, t := range d.Tracks {
		if t.TrackID > max {
			max = t.TrackID
		}
	}
	return max
}
