// file: internal/itunesdb/mhod.go
// version: 1.0.0
// guid: b6c4f8d9-0a1e-4f2b-3c4d-5e6f7a8b9c0d

package itunesdb

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/TheRealSavi/iOpenPod/internal/bytebuffer"
)

// mhodFixedSize is the number of bytes from the tag to the first payload
// byte: tag, header_length, total_length, type, zero, zero, payload_length,
// zero — eight little-endian words.
const mhodFixedSize = 32

// isPureASCII reports whether every rune in s fits in a single ASCII byte,
// which is this codec's trigger for UTF-8 rather than UTF-16LE payload
// encoding.
func isPureASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func encodeStringPayload(s string) []byte {
	if isPureASCII(s) {
		return []byte(s)
	}
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

// decodeStringPayload detects the encoding from the byte pattern: if any
// byte in the first four bytes of the payload is zero, it is UTF-16LE;
// otherwise UTF-8, unless the bytes are not valid UTF-8, in which case
// they are decoded as UTF-16LE as well.
func decodeStringPayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	isUTF16 := false
	limit := len(payload)
	if limit > 4 {
		limit = 4
	}
	for i := 0; i < limit; i++ {
		if payload[i] == 0 {
			isUTF16 = true
			break
		}
	}
	if !isUTF16 {
		if utf8.Valid(payload) {
			return string(payload)
		}
	}
	n := len(payload) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(payload[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// writeMhod emits one mhod chunk for a string or opaque-binary child.
func writeMhod(b *bytebuffer.Buffer, c StringChild) {
	var payload []byte
	if len(c.Binary) > 0 {
		payload = c.Binary
	} else {
		payload = encodeStringPayload(c.Text)
	}

	start := b.Append([]byte(tagStringOrBinary))
	b.WriteU32LE(mhodHeaderLength)
	totalPos := b.WriteU32LE(0)
	b.WriteU32LE(uint32(c.Type))
	b.WriteZeros(4)
	b.WriteZeros(4)
	b.WriteU32LE(uint32(len(payload)))
	b.WriteZeros(4)
	b.Append(payload)

	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

// readMhod parses one mhod chunk starting at offset and returns the child
// plus the offset immediately after it.
func readMhod(data []byte, offset int) (StringChild, int, error) {
	tag, err := tagAt(data, offset)
	if err != nil {
		return StringChild{}, 0, err
	}
	if tag != tagStringOrBinary {
		return StringChild{}, 0, &BadMagicError{Offset: offset}
	}
	if offset+mhodFixedSize > len(data) {
		return StringChild{}, 0, &TruncatedError{Tag: tag, Offset: offset, Need: mhodFixedSize, Have: len(data) - offset}
	}
	totalLength := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	mhodType := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
	payloadLength := binary.LittleEndian.Uint32(data[offset+24 : offset+28])

	end := offset + int(totalLength)
	if end > len(data) || end < offset+mhodFixedSize {
		return StringChild{}, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(totalLength), Have: len(data) - offset}
	}
	payloadStart := offset + mhodFixedSize
	payloadEnd := payloadStart + int(payloadLength)
	if payloadEnd > len(data) || payloadEnd > end {
		return StringChild{}, 0, &TruncatedError{Tag: tag, Offset: offset, Need: int(payloadLength), Have: end - payloadStart}
	}
	payload := data[payloadStart:payloadEnd]

	child := StringChild{Type: MhodType(mhodType)}
	switch MhodType(mhodType) {
	case MhodSmartPlaylistRules, MhodLibraryPlaylistJS:
		child.Binary = append([]byte(nil), payload...)
	default:
		child.Text = decodeStringPayload(payload)
		child.IsASCII = isPureASCII(child.Text)
	}
	return child, end, nil
}
