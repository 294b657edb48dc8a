// file: internal/deviceio/deviceio_test.go
// version: 1.0.0
// guid: 2a3b4c5d-6e7f-4a8b-9c0d-1e2f3a4b5c6e

package deviceio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocationRoundTrip(t *testing.T) {
	dev := New(t.TempDir())
	path := filepath.Join(dev.Root, "iPod_Control", "Music", "F07", "ABCD.mp3")

	location, err := dev.PathToLocation(path)
	require.NoError(t, err)
	require.Equal(t, ":iPod_Control:Music:F07:ABCD.mp3", location)
	require.Equal(t, path, dev.LocationToPath(location))
}

func TestLocationToPathAcceptsBackslashes(t *testing.T) {
	dev := New(t.TempDir())
	want := filepath.Join(dev.Root, "iPod_Control", "Music", "F01", "WXYZ.m4a")
	require.Equal(t, want, dev.LocationToPath(":iPod_Control\\Music\\F01\\WXYZ.m4a"))
}

func TestPathToLocationRejectsOutsideRoot(t *testing.T) {
	dev := New(filepath.Join(t.TempDir(), "mount"))
	_, err := dev.PathToLocation("/somewhere/else/file.mp3")
	require.Error(t, err)
}

func TestMacTimeConversion(t *testing.T) {
	require.True(t, MacTime(0).IsZero())
	require.Zero(t, ToMacTime(time.Time{}))

	now := time.Unix(1700000000, 0).UTC()
	require.Equal(t, now, MacTime(ToMacTime(now)))
}

func TestParseSysInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SysInfo")
	content := "BoardHwName: iPod Q\n" +
		"ModelNumStr: xB147\n" +
		"FirewireGuid: 0x0123456789ABCDEF\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	info, err := ParseSysInfo(path)
	require.NoError(t, err)
	require.True(t, info.HasGUID)
	require.Equal(t, [8]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}, info.FirewireGUID)
	require.Equal(t, "xB147", info.ModelNumStr)
	require.Equal(t, "iPod Q", info.Fields["BoardHwName"])
}

func TestChecksumTypeForModel(t *testing.T) {
	require.Equal(t, ChecksumBoth, ChecksumTypeForModel("xB147LL"))
	require.Equal(t, ChecksumHash58, ChecksumTypeForModel("xA978"))
	require.Equal(t, ChecksumHash72, ChecksumTypeForModel("C027ZP"))
	require.Equal(t, ChecksumHashAB, ChecksumTypeForModel("xD478"))
	require.Equal(t, ChecksumNone, ChecksumTypeForModel(""))
	// Unknown models over-sign rather than under-sign.
	require.Equal(t, ChecksumBoth, ChecksumTypeForModel("xZ999"))
}

func TestParseHashInfoRoundTrip(t *testing.T) {
	hi := &HashInfo{}
	for i := range hi.UUID {
		hi.UUID[i] = byte(i)
	}
	for i := range hi.RndPart {
		hi.RndPart[i] = byte(0x40 + i)
	}
	for i := range hi.IV {
		hi.IV[i] = byte(0x80 + i)
	}

	parsed, err := ParseHashInfo(hi.Encode())
	require.NoError(t, err)
	require.Equal(t, hi, parsed)
}

func TestParseHashInfoRejectsBadMagic(t *testing.T) {
	data := make([]byte, 54)
	copy(data, "BOGUS!")
	_, err := ParseHashInfo(data)
	require.Error(t, err)
}

func TestPlayCountsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Play Counts")

	data := make([]byte, 96+2*0x1C)
	copy(data, "mhdp")
	binary.LittleEndian.PutUint32(data[4:8], 96)
	binary.LittleEndian.PutUint32(data[8:12], 0x1C)
	binary.LittleEndian.PutUint32(data[12:16], 2)
	e0 := data[96:]
	binary.LittleEndian.PutUint32(e0[0:4], 3)      // play count
	binary.LittleEndian.PutUint32(e0[4:8], 123456) // last played
	binary.LittleEndian.PutUint32(e0[12:16], 80)   // rating
	e1 := data[96+0x1C:]
	binary.LittleEndian.PutUint32(e1[20:24], 1) // skip count
	require.NoError(t, os.WriteFile(path, data, 0o644))

	entries, err := ParsePlayCounts(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint32(3), entries[0].PlayCount)
	require.Equal(t, uint32(123456), entries[0].LastPlayed)
	require.Equal(t, uint32(80), entries[0].Rating)
	require.Equal(t, uint32(1), entries[1].SkipCount)

	require.NoError(t, ResetPlayCounts(path))
	entries, err = ParsePlayCounts(path)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestParsePlayCountsMissingFile(t *testing.T) {
	entries, err := ParsePlayCounts(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	require.Nil(t, entries)
}
