// file: internal/artwork/artwork_test.go
// version: 1.0.0
// guid: 6e7f8a9b-0c1d-4e2f-3a4b-5c6d7e8f9a0b

package artwork

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/imageencoder"
)

// flatEncoder fills every format slot with a repeating byte derived from
// the source, enough to verify sizing and offsets without real resampling.
type flatEncoder struct{}

func (flatEncoder) Encode(src []byte, format imageencoder.Format) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("empty source")
	}
	out := make([]byte, format.ByteSize)
	for i := range out {
		out[i] = src[0]
	}
	return out, nil
}

var testFormats = []imageencoder.Format{
	{FormatID: 1, Width: 4, Height: 4, ByteSize: 32},
	{FormatID: 2, Width: 2, Height: 2, ByteSize: 8},
}

func TestWriteDeduplicatesByContent(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	w := &Writer{Device: dev, Encoder: flatEncoder{}, Formats: testFormats}

	cover := []byte{0xAA, 0x01, 0x02}
	other := []byte{0xBB, 0x03}
	links, skipped, err := w.Write([]Source{
		{DBID: 1, ImageData: cover},
		{DBID: 2, ImageData: cover}, // same album art, different track
		{DBID: 3, ImageData: other},
	})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, links, 3)
	require.Equal(t, links[1].ImageID, links[2].ImageID, "identical images share one record")
	require.NotEqual(t, links[1].ImageID, links[3].ImageID)
	require.Equal(t, uint32(len(cover)), links[1].SourceSize)

	// Two unique images, so each pixel file holds exactly two slots.
	for _, f := range testFormats {
		data, err := os.ReadFile(dev.IthmbPath(f.FormatID))
		require.NoError(t, err)
		require.Len(t, data, 2*f.ByteSize)
	}

	// Three records in the database, one per owning track.
	data, err := os.ReadFile(dev.ArtworkDBPath())
	require.NoError(t, err)
	images, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, images, 3)
}

func TestWriteParseRoundTrip(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	w := &Writer{Device: dev, Encoder: flatEncoder{}, Formats: testFormats}

	links, _, err := w.Write([]Source{
		{DBID: 0x1111, ImageData: []byte{0x10}},
		{DBID: 0x2222, ImageData: []byte{0x20}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dev.ArtworkDBPath())
	require.NoError(t, err)
	images, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, images, 2)

	byDBID := map[uint64]Image{}
	for _, img := range images {
		byDBID[img.DBID] = img
	}
	require.Equal(t, links[0x1111].ImageID, byDBID[0x1111].ImageID)
	require.Len(t, byDBID[0x1111].Thumbs, 2)
	require.Equal(t, uint32(32), byDBID[0x1111].Thumbs[0].Size)

	// The second unique image's pixels start one slot in.
	first, second := byDBID[0x1111], byDBID[0x2222]
	require.NotEqual(t, first.Thumbs[0].Offset, second.Thumbs[0].Offset)
}

func TestWriteSkipsSourcesWithoutArtwork(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	w := &Writer{Device: dev, Encoder: flatEncoder{}, Formats: testFormats}

	links, skipped, err := w.Write([]Source{
		{DBID: 1, ImageData: nil}, // no artwork at all: silently absent
		{DBID: 2, ImageData: []byte{0x42}},
	})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.NotContains(t, links, uint64(1))
	require.Contains(t, links, uint64(2))
}

func TestWriteReportsEncoderErrors(t *testing.T) {
	dev := deviceio.New(t.TempDir())
	w := &Writer{Device: dev, Encoder: imageencoder.Unavailable{}, Formats: testFormats}

	links, skipped, err := w.Write([]Source{{DBID: 9, ImageData: []byte{0x01}}})
	require.NoError(t, err)
	require.Empty(t, links)
	require.Len(t, skipped, 1)
}
