// file: internal/itunesdb/reader.go
// version: 1.0.0
// guid: c7d5f9e0-1b2c-4d3e-4f5a-6b7c8d9e0f1a

package itunesdb

import (
	"encoding/binary"
	"fmt"
)

// Parse reads a complete iTunesDB byte buffer and produces its in-memory
// tree. Parsing is recursive by chunk type, every chunk parser returns the
// next sibling offset so callers never trust child counts for iteration,
// and unknown chunks are skipped by total length rather than rejected.
func Parse(data []byte) (*Database, error) {
	tag, err := tagAt(data, 0)
	if err != nil {
		return nil, err
	}
	if tag != tagDatabase {
		return nil, &BadMagicError{Offset: 0}
	}
	if len(data) < mhbdHeaderLength {
		return nil, &TruncatedError{Tag: tag, Offset: 0, Need: mhbdHeaderLength, Have: len(data)}
	}

	totalLength := binary.LittleEndian.Uint32(data[8:12])
	if int(totalLength) > len(data) {
		return nil, &TruncatedError{Tag: tag, Offset: 0, Need: int(totalLength), Have: len(data)}
	}
	end := int(totalLength)

	db := &Database{
		Version: binary.LittleEndian.Uint32(data[mhbdOffsetVersion : mhbdOffsetVersion+4]),
		NextID:  binary.LittleEndian.Uint32(data[mhbdOffsetNextID : mhbdOffsetNextID+4]),
		ID:      binary.LittleEndian.Uint64(data[mhbdOffsetDBID : mhbdOffsetDBID+8]),
	}
	copy(db.Unk0x32[:], data[mhbdOffsetUnk0x32:mhbdOffsetUnk0x32+20])
	db.HashingScheme = binary.LittleEndian.Uint16(data[mhbdOffsetHashingScheme : mhbdOffsetHashingScheme+2])
	copy(db.Signature[:], data[mhbdOffsetSignature:mhbdOffsetSignature+46])

	if db.Version != 0 && !recognizedVersion(db.Version) {
		// Unrecognized versions still parse; newer firmware only appends
		// fields this codec doesn't need.
		fmt.Printf("Warning: %v\n", &BadVersionError{Version: db.Version})
	}

	albumsByID := map[uint32]*Album{}
	trackByID := map[uint32]*Track{}

	pos := mhbdHeaderLength
	for pos < end {
		childTag, terr := tagAt(data, pos)
		if terr != nil {
			return nil, terr
		}
		if childTag != tagDataset {
			// Unrecognized top-level chunk: record raw bytes and skip by its
			// own total_length so the reader tolerates unknown siblings.
			if pos+12 > len(data) {
				return nil, &TruncatedError{Tag: childTag, Offset: pos, Need: 12, Have: len(data) - pos}
			}
			unkTotal := binary.LittleEndian.Uint32(data[pos+8 : pos+12])
			if pos+int(unkTotal) > len(data) {
				return nil, &TruncatedError{Tag: childTag, Offset: pos, Need: int(unkTotal), Have: len(data) - pos}
			}
			db.UnknownTopLevelChunks = append(db.UnknownTopLevelChunks, append([]byte(nil), data[pos:pos+int(unkTotal)]...))
			pos += int(unkTotal)
			continue
		}
		next, derr := readDataset(data, pos, db, albumsByID, trackByID)
		if derr != nil {
			return nil, derr
		}
		pos = next
	}

	return db, nil
}

func recognizedVersion(v uint32) bool {
	switch v {
	case 0x09, 0x0A, 0x0B, 0x0C, 0x13, 0x19:
		return true
	default:
		return false
	}
}

func readDataset(data []byte, offset int, db *Database, albumsByID map[uint32]*Album, trackByID map[uint32]*Track) (int, error) {
	if offset+mhsdHeaderLength > len(data) {
		return 0, &TruncatedError{Tag: tagDataset, Offset: offset, Need: mhsdHeaderLength, Have: len(data) - offset}
	}
	totalLength := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	datasetType := DatasetType(binary.LittleEndian.Uint32(data[offset+12 : offset+16]))
	end := offset + int(totalLength)
	if end > len(data) {
		return 0, &TruncatedError{Tag: tagDataset, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}

	pos := offset + mhsdHeaderLength
	if pos >= end {
		return end, nil
	}
	listTag, err := tagAt(data, pos)
	if err != nil {
		return 0, err
	}
	if pos+mhlHeaderLength > len(data) {
		return 0, &TruncatedError{Tag: listTag, Offset: pos, Need: mhlHeaderLength, Have: len(data) - pos}
	}
	childCount := binary.LittleEndian.Uint32(data[pos+8 : pos+12])
	itemPos := pos + mhlHeaderLength

	switch datasetType {
	case DatasetAlbums:
		for i := uint32(0); i < childCount; i++ {
			album, next, err := readAlbum(data, itemPos)
			if err != nil {
				return 0, err
			}
			db.Albums = append(db.Albums, album)
			albumsByID[album.AlbumID] = album
			itemPos = next
		}
	case DatasetTracks, DatasetPodcasts:
		for i := uint32(0); i < childCount; i++ {
			track, next, err := readTrack(data, itemPos)
			if err != nil {
				return 0, err
			}
			db.Tracks = append(db.Tracks, track)
			trackByID[track.TrackID] = track
			itemPos = next
		}
	case DatasetPlaylists:
		for i := uint32(0); i < childCount; i++ {
			pl, next, err := readPlaylist(data, itemPos)
			if err != nil {
				return 0, err
			}
			db.Playlists = append(db.Playlists, pl)
			itemPos = next
		}
	case DatasetSmartPlaylists:
		for i := uint32(0); i < childCount; i++ {
			sp, next, err := readSmartPlaylist(data, itemPos)
			if err != nil {
				return 0, err
			}
			db.SmartPlaylists = append(db.SmartPlaylists, sp)
			itemPos = next
		}
	default:
		return 0, fmt.Errorf("itunesdb: unrecognized dataset type %d at offset %d", datasetType, offset)
	}

	return end, nil
}

func readAlbum(data []byte, offset int) (*Album, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if tag != tagAlbum {
		return nil, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhiaHeaderLength > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhiaHeaderLength, Have: len(data) - offset}
	}
	totalLength := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	albumID := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
	numStrings := binary.LittleEndian.Uint32(data[offset+16 : offset+20])
	end := offset + int(totalLength)
	if end > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}

	album := &Album{AlbumID: albumID}
	pos := offset + mhiaHeaderLength
	for i := uint32(0); i < numStrings; i++ {
		child, next, err := readMhod(data, pos)
		if err != nil {
			return nil, 0, err
		}
		switch child.Type {
		case MhodTitle:
			album.Title = child.Text
		case MhodArtist:
			album.Artist = child.Text
		}
		pos = next
	}
	return album, end, nil
}

func readTrack(data []byte, offset int) (*Track, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if tag != tagTrack {
		return nil, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhitHeaderLength > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhitHeaderLength, Have: len(data) - offset}
	}
	f := data[offset:]
	totalLength := binary.LittleEndian.Uint32(f[8:12])
	end := offset + int(totalLength)
	if end > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}

	t := &Track{
		TrackID:       binary.LittleEndian.Uint32(f[16:20]),
		DBID:          binary.LittleEndian.Uint64(f[20:28]),
		AlbumID:       binary.LittleEndian.Uint32(f[28:32]),
		MhiiLink:      binary.LittleEndian.Uint32(f[32:36]),
		Size:          binary.LittleEndian.Uint32(f[36:40]),
		DurationMS:    binary.LittleEndian.Uint32(f[40:44]),
		BitrateKbps:   binary.LittleEndian.Uint32(f[44:48]),
		SampleRateHz:  binary.LittleEndian.Uint32(f[48:52]) / 65536,
		TrackNumber:   binary.LittleEndian.Uint16(f[52:54]),
		TrackCount:    binary.LittleEndian.Uint16(f[54:56]),
		DiscNumber:    binary.LittleEndian.Uint16(f[56:58]),
		DiscCount:     binary.LittleEndian.Uint16(f[58:60]),
		Year:          binary.LittleEndian.Uint16(f[60:62]),
		Rating:        f[62],
		PlayCount:     binary.LittleEndian.Uint32(f[64:68]),
		PlayCount2:    binary.LittleEndian.Uint32(f[68:72]),
		LastPlayedMac: binary.LittleEndian.Uint32(f[72:76]),
		DateAddedMac:  binary.LittleEndian.Uint32(f[76:80]),
		MediaType:     binary.LittleEndian.Uint32(f[80:84]),
		ArtworkCount:  binary.LittleEndian.Uint32(f[84:88]),
		FileType:      trimFileType(f[88:92]),
	}
	numStrings := binary.LittleEndian.Uint32(f[12:16])

	pos := offset + mhitHeaderLength
	for i := uint32(0); i < numStrings; i++ {
		child, next, err := readMhod(data, pos)
		if err != nil {
			return nil, 0, err
		}
		assignTrackString(t, child)
		pos = next
	}
	return t, end, nil
}

func assignTrackString(t *Track, child StringChild) {
	switch child.Type {
	case MhodTitle:
		t.Title = child.Text
	case MhodArtist:
		t.Artist = child.Text
	case MhodAlbum:
		t.Album = child.Text
	case MhodAlbumArtist:
		t.AlbumArtist = child.Text
	case MhodGenre:
		t.Genre = child.Text
	case MhodComposer:
		t.Composer = child.Text
	case MhodComment:
		t.Comment = child.Text
	case MhodLocation:
		t.Location = child.Text
	default:
		t.extraChildren = append(t.extraChildren, child)
	}
}

func trimFileType(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return string(b[:n])
}

func readPlaylist(data []byte, offset int) (*Playlist, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if tag != tagPlaylist {
		return nil, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhypHeaderLength > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhypHeaderLength, Have: len(data) - offset}
	}
	f := data[offset:]
	totalLength := binary.LittleEndian.Uint32(f[8:12])
	numItems := binary.LittleEndian.Uint32(f[12:16])
	numStrings := binary.LittleEndian.Uint32(f[16:20])
	isMaster := f[20] != 0
	persistentID := binary.LittleEndian.Uint64(f[28:36])
	end := offset + int(totalLength)
	if end > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}

	pl := &Playlist{PersistentID: persistentID, IsMaster: isMaster}
	pos := offset + mhypHeaderLength
	for i := uint32(0); i < numStrings; i++ {
		child, next, err := readMhod(data, pos)
		if err != nil {
			return nil, 0, err
		}
		if child.Type == MhodTitle {
			pl.Name = child.Text
		}
		pos = next
	}
	for i := uint32(0); i < numItems; i++ {
		item, next, err := readPlaylistItem(data, pos)
		if err != nil {
			return nil, 0, err
		}
		pl.Items = append(pl.Items, item)
		pos = next
	}
	return pl, end, nil
}

func readPlaylistItem(data []byte, offset int) (PlaylistItem, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return PlaylistItem{}, 0, err
	}
	if tag != tagPlaylistItem {
		return PlaylistItem{}, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhipHeaderLength > len(data) {
		return PlaylistItem{}, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhipHeaderLength, Have: len(data) - offset}
	}
	totalLength := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	trackID := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
	end := offset + int(totalLength)
	if end > len(data) {
		return PlaylistItem{}, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}
	return PlaylistItem{TrackID: trackID}, end, nil
}

func readSmartPlaylist(data []byte, offset int) (*SmartPlaylist, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if tag != tagPlaylist {
		return nil, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhypHeaderLength > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhypHeaderLength, Have: len(data) - offset}
	}
	f := data[offset:]
	totalLength := binary.LittleEndian.Uint32(f[8:12])
	numStrings := binary.LittleEndian.Uint32(f[16:20])
	persistentID := binary.LittleEndian.Uint64(f[28:36])
	end := offset + int(totalLength)
	if end > len(data) {
		return nil, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}

	sp := &SmartPlaylist{PersistentID: persistentID}
	pos := offset + mhypHeaderLength
	for i := uint32(0); i < numStrings; i++ {
		child, next, err := readMhod(data, pos)
		if err != nil {
			return nil, 0, err
		}
		switch child.Type {
		case MhodTitle:
			sp.Name = child.Text
		case MhodSmartPlaylistRules:
			sp.RulesPayload = child.Binary
		}
		pos = next
	}
	return sp, end, nil
}
