// file: internal/signer/signer_test.go
// version: 1.0.0
// guid: c3d4e5f6-7a8b-4c9d-0e1f-2a3b4c5d6e7f

package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeDatabase(n int) []byte {
	buf := make([]byte, offsetSignature+signatureLen+32)
	copy(buf, []byte("mhbd"))
	for i := range buf {
		buf[i] = byte((i * 7) % 251)
	}
	copy(buf, []byte("mhbd"))
	return buf
}

func TestHash58Deterministic(t *testing.T) {
	guid := [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	buf1 := fakeDatabase(1)
	buf2 := fakeDatabase(1)

	require.NoError(t, SignHash58(buf1, guid))
	require.NoError(t, SignHash58(buf2, guid))
	require.Equal(t, buf1, buf2)
	require.Equal(t, byte(SchemeHash58), buf1[offsetHashingScheme])
}

func TestHash58RestoresNormalizationRanges(t *testing.T) {
	guid := [8]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	buf := fakeDatabase(1)

	var wantDBID [8]byte
	copy(wantDBID[:], buf[offsetDBID:offsetDBID+8])
	var wantUnk [unk0x32Len]byte
	copy(wantUnk[:], buf[offsetUnk0x32:offsetUnk0x32+unk0x32Len])

	require.NoError(t, SignHash58(buf, guid))

	require.Equal(t, wantDBID[:], buf[offsetDBID:offsetDBID+8])
	require.Equal(t, wantUnk[:], buf[offsetUnk0x32:offsetUnk0x32+unk0x32Len])
}

func TestHash72Deterministic(t *testing.T) {
	iv := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	rnd := [12]byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2}

	buf1 := fakeDatabase(1)
	buf2 := fakeDatabase(1)
	require.NoError(t, SignHash72(buf1, iv, rnd))
	require.NoError(t, SignHash72(buf2, iv, rnd))
	require.Equal(t, buf1, buf2)
	require.Equal(t, byte(0x01), buf1[offsetSignature])
	require.Equal(t, byte(0x00), buf1[offsetSignature+1])
	require.Equal(t, rnd[:], buf1[offsetSignature+2:offsetSignature+14])
}

func TestSignClassicOrderAndSchemeSelector(t *testing.T) {
	guid := [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	iv := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	rnd := [12]byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2}

	buf := fakeDatabase(1)
	require.NoError(t, SignClassic(buf, guid, iv, rnd))

	require.Equal(t, byte(SchemeHash58), buf[offsetHashingScheme])

	standalone := fakeDatabase(1)
	require.NoError(t, SignHash58(standalone, guid))
	require.NotEqual(t, standalone[offsetSignature:offsetSignature+20], buf[offsetSignature:offsetSignature+20],
		"HASH58 over the combined buffer (which includes HASH72's bytes) must differ from HASH58 computed alone")
}

func TestLCMSpecialCase(t *testing.T) {
	require.Equal(t, 1, lcm(0, 0))
	require.Equal(t, 1, lcm(0, 5))
	require.Equal(t, 1, lcm(5, 0))
	require.Equal(t, 6, lcm(2, 3))
	require.Equal(t, 4, lcm(4, 4))
}

func TestBufferTooSmall(t *testing.T) {
	require.ErrorIs(t, SignHash58(make([]byte, 4), [8]byte{}), ErrBufferTooSmall)
}
