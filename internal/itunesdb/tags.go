// file: internal/itunesdb/tags.go
// version: 1.0.0
// guid: a5b3e7c8-9f0d-4e1a-2b3c-4d5e6f7a8b9c

package itunesdb

// Chunk tags.
const (
	tagDatabase        = "mhbd"
	tagDataset         = "mhsd"
	tagTrackList       = "mhlt"
	tagAlbumList       = "mhla"
	tagPlaylistList    = "mhlp"
	tagTrack           = "mhit"
	tagStringOrBinary  = "mhod"
	tagAlbum           = "mhia"
	tagPlaylist        = "mhyp"
	tagPlaylistItem    = "mhip"
	tagPlaylistItemLst = "mhlp"
)

// Fixed-field header sizes (bytes from the tag to the first byte of the
// first child / payload). These lay out this codec's own chunk framing;
// they need only be internally consistent, not byte-compatible with any
// particular device firmware revision.
const (
	mhbdHeaderLength = 244
	mhsdHeaderLength = 16 // tag + header_length + total_length + type
	mhlHeaderLength  = 12 // tag + header_length + child_count (no total_length)
	mhitHeaderLength = 96
	mhiaHeaderLength = 20
	mhypHeaderLength = 36
	mhipHeaderLength = 16
	mhodHeaderLength = 24 // declared value only; the payload starts at mhodFixedSize (32), see mhod.go
)

// Fixed offsets inside mhbd. The signer depends on these: db_id and the
// 20 bytes at offset 50 are excluded from hash input, and the signature
// lands in the slot at 0x58.
const (
	mhbdOffsetVersion       = 12
	mhbdOffsetNumDatasets   = 16
	mhbdOffsetNextID        = 20
	mhbdOffsetDBID          = 24 // 8 bytes
	mhbdOffsetUnk0x32       = 50 // 20 bytes
	mhbdOffsetHashingScheme = 0x46
	mhbdOffsetSignature     = 0x58 // 46 bytes
)

func isASCIIPrintable(b byte) bool {
	return b >= 0x20 && b < 0x7F
}

func tagAt(data []byte, offset int) (string, error) {
	if offset+4 > len(data) {
		return "", &TruncatedError{Tag: "?", Offset: offset, Need: 4, Have: len(data) - offset}
	}
	raw := data[offset : offset+4]
	for _, b := range raw {
		if !isASCIIPrintable(b) {
			var arr [4]byte
			copy(arr[:], raw)
			return "", &BadMagicError{Offset: offset, Bytes: arr}
		}
	}
	return string(raw), nil
}
