// file: internal/itunesdb/writer.go
// version: 1.0.0
// guid: d8e6a0f1-2c3d-4e4f-5a6b-7c8d9e0f1a2b

package itunesdb

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/TheRealSavi/iOpenPod/internal/bytebuffer"
)

// AssignedID is the (dbid, trackID) pair the writer mints for a track that
// had no trackID yet. The executor uses these to create mapping entries
// for freshly added tracks after the emit.
type AssignedID struct {
	DBID    uint64
	TrackID uint32
}

// Emit serializes db into a complete iTunesDB byte buffer and returns the
// set of freshly assigned (dbid, trackID) pairs keyed by the track's index
// in db.Tracks. Every container's total_length covers its descendants,
// every list's child count matches its children, NextID ends up above
// every trackID, and each playlist item resolves to an emitted track.
//
// Emit mutates db: it assigns TrackID/DBID to new tracks and rebuilds the
// master playlist's item list to mirror the current track set. PlayCount2
// is left untouched; callers fold play counts before calling Emit.
func Emit(db *Database) ([]byte, map[int]AssignedID, error) {
	assigned, err := assignNewTrackIDs(db)
	if err != nil {
		return nil, nil, err
	}
	ensureMasterPlaylist(db)
	if err := validateBeforeEmit(db); err != nil {
		return nil, nil, err
	}

	b := bytebuffer.New(len(db.Tracks)*512 + 4096)

	start := b.Append([]byte(tagDatabase))
	b.WriteU32LE(mhbdHeaderLength)
	totalPos := b.WriteU32LE(0)
	b.WriteU32LE(db.Version)
	numDatasetsPos := b.WriteU32LE(0)
	b.WriteU32LE(db.NextID)
	b.WriteU64LE(db.ID)
	b.WriteZeros(mhbdOffsetUnk0x32 - (mhbdOffsetDBID + 8))
	b.Append(db.Unk0x32[:])
	b.WriteZeros(mhbdOffsetHashingScheme - (mhbdOffsetUnk0x32 + 20))
	b.WriteU16LE(db.HashingScheme)
	b.WriteZeros(mhbdOffsetSignature - (mhbdOffsetHashingScheme + 2))
	b.Append(db.Signature[:])
	b.WriteZeros(mhbdHeaderLength - (mhbdOffsetSignature + 46))

	numDatasets := uint32(0)

	writeSet := func(dsType DatasetType, listTag string, childCount int, writeChildren func()) {
		dsStart := b.Append([]byte(tagDataset))
		b.WriteU32LE(mhsdHeaderLength)
		dsTotalPos := b.WriteU32LE(0)
		b.WriteU32LE(uint32(dsType))

		b.Append([]byte(listTag))
		b.WriteU32LE(mhlHeaderLength)
		b.WriteU32LE(uint32(childCount))

		writeChildren()

		b.PatchU32LE(dsTotalPos, uint32(b.CurrentPosition()-dsStart))
		numDatasets++
	}

	writeSet(DatasetAlbums, tagAlbumList, len(db.Albums), func() {
		for _, a := range db.Albums {
			writeAlbum(b, a)
		}
	})
	writeSet(DatasetTracks, tagTrackList, len(db.Tracks), func() {
		for _, t := range db.Tracks {
			writeTrack(b, t)
		}
	})
	writeSet(DatasetPodcasts, tagTrackList, 0, func() {})
	writeSet(DatasetPlaylists, tagPlaylistList, len(db.Playlists), func() {
		for _, p := range db.Playlists {
			writePlaylist(b, p)
		}
	})
	writeSet(DatasetSmartPlaylists, tagPlaylistList, len(db.SmartPlaylists), func() {
		for _, sp := range db.SmartPlaylists {
			writeSmartPlaylist(b, sp)
		}
	})

	for _, raw := range db.UnknownTopLevelChunks {
		b.Append(raw)
	}

	b.PatchU32LE(numDatasetsPos, numDatasets)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))

	out := b.Bytes()
	if err := selfCheck(db, out); err != nil {
		return nil, nil, err
	}
	return out, assigned, nil
}

func writeAlbum(b *bytebuffer.Buffer, a *Album) {
	start := b.Append([]byte(tagAlbum))
	b.WriteU32LE(mhiaHeaderLength)
	totalPos := b.WriteU32LE(0)
	b.WriteU32LE(a.AlbumID)
	numStringsPos := b.WriteU32LE(0)

	n := uint32(0)
	if a.Title != "" {
		writeMhod(b, StringChild{Type: MhodTitle, Text: a.Title})
		n++
	}
	if a.Artist != "" {
		writeMhod(b, StringChild{Type: MhodArtist, Text: a.Artist})
		n++
	}
	b.PatchU32LE(numStringsPos, n)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

func writeTrack(b *bytebuffer.Buffer, t *Track) {
	start := b.Append([]byte(tagTrack))
	b.WriteU32LE(mhitHeaderLength)
	totalPos := b.WriteU32LE(0)
	numStringsPos := b.WriteU32LE(0)
	b.WriteU32LE(t.TrackID)
	b.WriteU64LE(t.DBID)
	b.WriteU32LE(t.AlbumID)
	b.WriteU32LE(t.MhiiLink)
	b.WriteU32LE(t.Size)
	b.WriteU32LE(t.DurationMS)
	b.WriteU32LE(t.BitrateKbps)
	b.WriteU32LE(t.SampleRateHz * 65536)
	b.WriteU16LE(t.TrackNumber)
	b.WriteU16LE(t.TrackCount)
	b.WriteU16LE(t.DiscNumber)
	b.WriteU16LE(t.DiscCount)
	b.WriteU16LE(t.Year)
	b.WriteU8(t.Rating)
	b.WriteU8(0)
	b.WriteU32LE(t.PlayCount)
	b.WriteU32LE(t.PlayCount2)
	b.WriteU32LE(t.LastPlayedMac)
	b.WriteU32LE(t.DateAddedMac)
	b.WriteU32LE(t.MediaType)
	b.WriteU32LE(t.ArtworkCount)
	b.Append(fileTypeWord(t.FileType))
	// Pad the fixed fields out to the declared header length.
	b.WriteZeros(mhitHeaderLength - 92)

	n := uint32(0)
	writeStr := func(mt MhodType, v string) {
		if v == "" {
			return
		}
		writeMhod(b, StringChild{Type: mt, Text: v})
		n++
	}
	writeStr(MhodTitle, t.Title)
	writeStr(MhodArtist, t.Artist)
	writeStr(MhodAlbum, t.Album)
	writeStr(MhodAlbumArtist, t.AlbumArtist)
	writeStr(MhodGenre, t.Genre)
	writeStr(MhodComposer, t.Composer)
	writeStr(MhodComment, t.Comment)
	writeStr(MhodLocation, t.Location)
	for _, c := range t.extraChildren {
		writeMhod(b, c)
		n++
	}

	b.PatchU32LE(numStringsPos, n)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

func fileTypeWord(s string) []byte {
	out := []byte("    ")
	copy(out, s)
	return out[:4]
}

func writePlaylist(b *bytebuffer.Buffer, p *Playlist) {
	start := b.Append([]byte(tagPlaylist))
	b.WriteU32LE(mhypHeaderLength)
	totalPos := b.WriteU32LE(0)
	numItemsPos := b.WriteU32LE(0)
	numStringsPos := b.WriteU32LE(0)
	masterByte := byte(0)
	if p.IsMaster {
		masterByte = 1
	}
	b.WriteU8(masterByte)
	b.WriteZeros(7)
	b.WriteU64LE(p.PersistentID)

	n := uint32(0)
	if p.Name != "" {
		writeMhod(b, StringChild{Type: MhodTitle, Text: p.Name})
		n++
	}
	b.PatchU32LE(numStringsPos, n)

	for _, item := range p.Items {
		writePlaylistItem(b, item)
	}
	b.PatchU32LE(numItemsPos, uint32(len(p.Items)))
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

func writePlaylistItem(b *bytebuffer.Buffer, item PlaylistItem) {
	start := b.Append([]byte(tagPlaylistItem))
	b.WriteU32LE(mhipHeaderLength)
	totalPos := b.WriteU32LE(0)
	b.WriteU32LE(item.TrackID)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

func writeSmartPlaylist(b *bytebuffer.Buffer, sp *SmartPlaylist) {
	start := b.Append([]byte(tagPlaylist))
	b.WriteU32LE(mhypHeaderLength)
	totalPos := b.WriteU32LE(0)
	numItemsPos := b.WriteU32LE(0)
	numStringsPos := b.WriteU32LE(0)
	b.WriteU8(0)
	b.WriteZeros(7)
	b.WriteU64LE(sp.PersistentID)

	n := uint32(0)
	if sp.Name != "" {
		writeMhod(b, StringChild{Type: MhodTitle, Text: sp.Name})
		n++
	}
	if sp.RulesPayload != nil {
		writeMhod(b, StringChild{Type: MhodSmartPlaylistRules, Binary: sp.RulesPayload})
		n++
	}
	b.PatchU32LE(numStringsPos, n)
	b.PatchU32LE(numItemsPos, 0)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

// assignNewTrackIDs mints a fresh 64-bit dbid and a 32-bit trackID (scoped
// to this database, taken from db.NextID) for every track that doesn't yet
// have one, and bumps db.NextID past the highest trackID in use.
func assignNewTrackIDs(db *Database) (map[int]AssignedID, error) {
	assigned := map[int]AssignedID{}
	seenDBID := map[uint64]bool{}
	maxID := db.NextID

	for _, t := range db.Tracks {
		if t.TrackID != 0 {
			if t.TrackID+1 > maxID {
				maxID = t.TrackID + 1
			}
		}
		if t.DBID != 0 {
			if seenDBID[t.DBID] {
				return nil, &CodecInvariantViolation{Detail: fmt.Sprintf("duplicate dbid %d", t.DBID)}
			}
			seenDBID[t.DBID] = true
		}
	}

	for i, t := range db.Tracks {
		if t.TrackID != 0 && t.DBID != 0 {
			continue
		}
		if t.TrackID == 0 {
			t.TrackID = maxID
			maxID++
		}
		if t.DBID == 0 {
			dbid, err := randomDBID(seenDBID)
			if err != nil {
				return nil, err
			}
			t.DBID = dbid
		}
		assigned[i] = AssignedID{DBID: t.DBID, TrackID: t.TrackID}
	}

	db.NextID = maxID
	return assigned, nil
}

func randomDBID(seen map[uint64]bool) (uint64, error) {
	for attempt := 0; attempt < 64; attempt++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("itunesdb: generating dbid: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v == 0 || seen[v] {
			continue
		}
		seen[v] = true
		return v, nil
	}
	return 0, fmt.Errorf("itunesdb: could not generate a unique dbid")
}

// ensureMasterPlaylist guarantees the playlist dataset's first entry is a
// master playlist whose items mirror every track currently in the
// database; the device shows it as the whole library.
func ensureMasterPlaylist(db *Database) {
	var master *Playlist
	idx := -1
	for i, p := range db.Playlists {
		if p.IsMaster {
			master = p
			idx = i
			break
		}
	}
	if master == nil {
		master = &Playlist{Name: "Library", IsMaster: true}
		db.Playlists = append([]*Playlist{master}, db.Playlists...)
	} else if idx != 0 {
		db.Playlists = append(db.Playlists[:idx], db.Playlists[idx+1:]...)
		db.Playlists = append([]*Playlist{master}, db.Playlists...)
	}

	items := make([]PlaylistItem, 0, len(db.Tracks))
	for _, t := range db.Tracks {
		items = append(items, PlaylistItem{TrackID: t.TrackID})
	}
	master.Items = items
}

func validateBeforeEmit(db *Database) error {
	dbids := map[uint64]bool{}
	trackIDs := map[uint32]bool{}
	for _, t := range db.Tracks {
		if dbids[t.DBID] {
			return &CodecInvariantViolation{Detail: fmt.Sprintf("duplicate dbid %d after assignment", t.DBID)}
		}
		dbids[t.DBID] = true
		trackIDs[t.TrackID] = true
		if t.TrackID >= db.NextID {
			return &CodecInvariantViolation{Detail: fmt.Sprintf("next_id %d not greater than trackID %d", db.NextID, t.TrackID)}
		}
	}
	for _, p := range db.Playlists {
		for _, item := range p.Items {
			if !trackIDs[item.TrackID] {
				return &CodecInvariantViolation{Detail: fmt.Sprintf("playlist %q references missing trackID %d", p.Name, item.TrackID)}
			}
		}
	}
	return nil
}

// selfCheck confirms the freshly emitted buffer's root length field
// closes over the whole file, catching a backpatch bug before the buffer
// ever reaches disk.
func selfCheck(db *Database, emitted []byte) error {
	if len(emitted) < 12 {
		return &CodecInvariantViolation{Detail: "emitted buffer shorter than mhbd header"}
	}
	total := binary.LittleEndian.Uint32(emitted[8:12])
	if int(total) != len(emitted) {
		return &CodecInvariantViolation{Detail: fmt.Sprintf("mhbd.total_length %d != emitted length %d", total, len(emitted))}
	}
	return nil
}
