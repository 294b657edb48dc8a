// file: internal/bytebuffer/buffer_test.go
// version: 1.0.0
// guid: d2e0b4f5-6c7a-4b8d-9e0f-1a2b3c4d5e6f

package bytebuffer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndPatch(t *testing.T) {
	b := New(16)
	pos := b.WriteU32LE(0)
	b.WriteU8(0xAB)
	b.PatchU32LE(pos, 42)

	require.Equal(t, uint32(42), binary.LittleEndian.Uint32(b.Bytes()[0:4]))
	require.Equal(t, byte(0xAB), b.Bytes()[4])
}

func TestNestedChunkBackpatch(t *testing.T) {
	b := New(64)

	outer := b.OpenChunk("mhbd", 8, true)
	inner := b.OpenChunk("mhsd", 8, true)
	b.Append([]byte("payload-bytes"))
	b.Close(inner)
	b.Close(outer)

	data := b.Bytes()
	// Each open chunk is tag + header_length + total_length placeholder:
	// outer spans [0,12), inner spans [12,24), payload follows.
	outerTotal := binary.LittleEndian.Uint32(data[8:12])
	innerTotal := binary.LittleEndian.Uint32(data[20:24])

	require.Equal(t, uint32(len(data)), outerTotal)
	require.Equal(t, uint32(12+len("payload-bytes")), innerTotal)
}

func TestListChunkChildCount(t *testing.T) {
	b := New(32)
	list := b.ReserveChildCount()
	for i := 0; i < 3; i++ {
		b.Append([]byte("mhit"))
		list.NoteChild()
	}
	b.Close(list)

	count := binary.LittleEndian.Uint32(b.Bytes()[0:4])
	require.Equal(t, uint32(3), count)
}
