// file: internal/bytebuffer/buffer.go
// version: 1.0.0
// guid: c1d9a3e4-5b6f-4a7c-8d9e-0f1a2b3c4d5e

// Package bytebuffer implements the append-only, backpatchable byte buffer
// that the iTunesDB codec uses to emit nested, length-prefixed chunks
// without building a heap-resident tree before emit.
package bytebuffer

import "encoding/binary"

// Buffer is a growable byte slice that supports capturing a position and
// later overwriting a little-endian integer at that position once the
// bytes that follow it are known.
type Buffer struct {
	data []byte
}

// New returns an empty Buffer with room for at least `capacity` bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Bytes returns the buffer's contents. The slice is owned by the buffer;
// callers must not retain it across further writes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.data)
}

// CurrentPosition returns the offset the next Append/Write call will land at.
func (b *Buffer) CurrentPosition() int {
	return len(b.data)
}

// Append writes raw bytes to the end of the buffer and returns their offset.
func (b *Buffer) Append(p []byte) int {
	pos := len(b.data)
	b.data = append(b.data, p...)
	return pos
}

// WriteU8 appends a single byte.
func (b *Buffer) WriteU8(v uint8) int {
	return b.Append([]byte{v})
}

// WriteU16LE appends a little-endian uint16.
func (b *Buffer) WriteU16LE(v uint16) int {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return b.Append(tmp[:])
}

// WriteU32LE appends a little-endian uint32.
func (b *Buffer) WriteU32LE(v uint32) int {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return b.Append(tmp[:])
}

// WriteU64LE appends a little-endian uint64.
func (b *Buffer) WriteU64LE(v uint64) int {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return b.Append(tmp[:])
}

// WriteZeros appends n zero bytes; used for placeholder length/count fields
// and for fields the codec does not yet assign meaning to.
func (b *Buffer) WriteZeros(n int) int {
	if n <= 0 {
		return len(b.data)
	}
	pos := len(b.data)
	b.data = append(b.data, make([]byte, n)...)
	return pos
}

// PatchU32LE overwrites a little-endian uint32 already written at pos.
// pos must have been returned by an earlier write into this buffer; pos+4
// must not exceed the buffer's current length.
func (b *Buffer) PatchU32LE(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[pos:pos+4], v)
}

// PatchU16LE overwrites a little-endian uint16 already written at pos.
func (b *Buffer) PatchU16LE(pos int, v uint16) {
	binary.LittleEndian.PutUint16(b.data[pos:pos+2], v)
}

// PatchU64LE overwrites a little-endian uint64 already written at pos.
func (b *Buffer) PatchU64LE(pos int, v uint64) {
	binary.LittleEndian.PutUint64(b.data[pos:pos+8], v)
}

// PatchBytes overwrites len(p) bytes already written starting at pos.
func (b *Buffer) PatchBytes(pos int, p []byte) {
	copy(b.data[pos:pos+len(p)], p)
}

// ChunkHandle tracks a single open container chunk so its total-length
// (and, for list chunks, its child count) can be backpatched once every
// descendant has been emitted.
type ChunkHandle struct {
	start            int // offset of the chunk's tag
	totalLenFieldPos int // offset of the total_length field, or -1 if this chunk has none
	countFieldPos    int // offset of a child-count field, or -1 if not applicable
	childCount       uint32
}

// OpenChunk writes a four-character tag followed by a header-length field
// and, if hasTotalLength is true, a zero-placeholder total-length field.
// It returns a handle used to close the chunk once its children are written.
func (b *Buffer) OpenChunk(tag string, headerLength uint32, hasTotalLength bool) *ChunkHandle {
	start := b.Append([]byte(tag))
	b.WriteU32LE(headerLength)
	h := &ChunkHandle{start: start, totalLenFieldPos: -1, countFieldPos: -1}
	if hasTotalLength {
		h.totalLenFieldPos = b.CurrentPosition()
		b.WriteZeros(4)
	}
	return h
}

// ReserveChildCount appends a zero-placeholder child-count field and
// remembers its position so Close can fill it in later. Call this
// only for list-header chunks (mhlt/mhla/mhlp) which have no total_length.
func (b *Buffer) ReserveChildCount() *ChunkHandle {
	h := &ChunkHandle{totalLenFieldPos: -1}
	h.countFieldPos = b.CurrentPosition()
	b.WriteZeros(4)
	return h
}

// NoteChild increments the handle's child counter. Callers invoke this once
// per direct child emitted inside the chunk.
func (h *ChunkHandle) NoteChild() {
	h.childCount++
}

// Close backpatches the chunk's total_length (distance from its tag to the
// current write position) and, if a child-count field was reserved, the
// number of children noted via NoteChild.
func (b *Buffer) Close(h *ChunkHandle) {
	if h.totalLenFieldPos >= 0 {
		b.PatchU32LE(h.totalLenFieldPos, uint32(b.CurrentPosition()-h.start))
	}
	if h.countFieldPos >= 0 {
		b.PatchU32LE(h.countFieldPos, h.childCount)
	}
}
