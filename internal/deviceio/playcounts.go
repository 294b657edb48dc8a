// file: internal/deviceio/playcounts.go
// version: 1.0.0
// guid: 6f7a8b9c-0d1e-4f2a-3b4c-5d6e7f8a9b0c

package deviceio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// PlayCountEntry is one record from the Play Counts file. Entries are
// positional: entry i describes the i-th track in the database's track list.
type PlayCountEntry struct {
	PlayCount   uint32
	LastPlayed  uint32 // device epoch
	Bookmark    uint32
	Rating      uint32
	SkipCount   uint32
	LastSkipped uint32
}

const (
	playCountsHeaderLen = 96
	playCountsEntryLen  = 0x1C
)

var playCountsMagic = []byte("mhdp")

// ParsePlayCounts decodes the Play Counts file the device appends to while
// unplugged. A missing file yields an empty slice: the device simply hasn't
// played anything since the last sync.
func ParsePlayCounts(path string) ([]PlayCountEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("deviceio: reading Play Counts: %w", err)
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("deviceio: Play Counts too short (%d bytes)", len(data))
	}
	for i := 0; i < 4; i++ {
		if data[i] != playCountsMagic[i] {
			return nil, fmt.Errorf("deviceio: Play Counts has bad magic %q", data[:4])
		}
	}
	headerLen := binary.LittleEndian.Uint32(data[4:8])
	entryLen := binary.LittleEndian.Uint32(data[8:12])
	entryCount := binary.LittleEndian.Uint32(data[12:16])
	if entryLen < playCountsEntryLen {
		return nil, fmt.Errorf("deviceio: Play Counts entry length %d too small", entryLen)
	}

	entries := make([]PlayCountEntry, 0, entryCount)
	pos := int(headerLen)
	for i := uint32(0); i < entryCount; i++ {
		if pos+int(entryLen) > len(data) {
			return nil, fmt.Errorf("deviceio: Play Counts truncated at entry %d", i)
		}
		e := data[pos:]
		entries = append(entries, PlayCountEntry{
			PlayCount:   binary.LittleEndian.Uint32(e[0:4]),
			LastPlayed:  binary.LittleEndian.Uint32(e[4:8]),
			Bookmark:    binary.LittleEndian.Uint32(e[8:12]),
			Rating:      binary.LittleEndian.Uint32(e[12:16]),
			SkipCount:   binary.LittleEndian.Uint32(e[20:24]),
			LastSkipped: binary.LittleEndian.Uint32(e[24:28]),
		})
		pos += int(entryLen)
	}
	return entries, nil
}

// ResetPlayCounts rewrites the Play Counts file with zero entries so the
// device does not report the same plays again on the next mount. Folding
// the old counts into the database and truncating this file happen in the
// same sync; a missing file needs no reset.
func ResetPlayCounts(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	out := make([]byte, playCountsHeaderLen)
	copy(out, playCountsMagic)
	binary.LittleEndian.PutUint32(out[4:8], playCountsHeaderLen)
	binary.LittleEndian.PutUint32(out[8:12], playCountsEntryLen)
	binary.LittleEndian.PutUint32(out[12:16], 0)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("deviceio: resetting Play Counts: %w", err)
	}
	return nil
}
