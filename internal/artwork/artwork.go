// file: internal/artwork/artwork.go
// version: 1.0.0
// guid: 4b5c6d7e-8f9a-4b0c-1d2e-3f4a5b6c7d8e

// Package artwork emits the device's ArtworkDB and its companion .ithmb
// pixel files. The ArtworkDB is a smaller cousin of the main database: the
// same tagged, length-prefixed chunk nesting, emitted through the same
// backpatching buffer. Images are deduplicated by content hash before
// encoding, so ten tracks of one album share one set of thumbnails.
package artwork

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TheRealSavi/iOpenPod/internal/bytebuffer"
	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/imageencoder"
)

// Chunk tags of the artwork database.
const (
	tagRoot      = "mhfd"
	tagDataset   = "mhsd"
	tagImageList = "mhli"
	tagImage     = "mhii"
	tagThumb     = "mhni"
)

const (
	mhfdHeaderLength = 132
	mhsdHeaderLength = 16
	mhliHeaderLength = 12
	mhiiHeaderLength = 60
	mhniHeaderLength = 44
)

// firstImageID is where image ids start; ids below this range are reserved
// by the device firmware.
const firstImageID = 100

// Source is one track's embedded artwork to put on the device.
type Source struct {
	DBID      uint64
	ImageData []byte
}

// Link is what the track database needs to reference an image: the mhii
// record id and the byte size of the source image.
type Link struct {
	ImageID    uint32
	SourceSize uint32
}

// Writer produces the ArtworkDB and pixel files for one device.
type Writer struct {
	Device  *deviceio.Device
	Encoder imageencoder.Encoder
	Formats []imageencoder.Format // ClassicFormats when nil
}

// Write encodes and stores every source image, emits the ArtworkDB, and
// returns a dbid -> Link map for the track writer. Images whose encoding
// fails are skipped and reported in the returned skip list; the database
// still covers every image that succeeded.
func (w *Writer) Write(sources []Source) (map[uint64]Link, []string, error) {
	formats := w.Formats
	if len(formats) == 0 {
		formats = imageencoder.ClassicFormats
	}

	type uniqueImage struct {
		imageID    uint32
		sourceSize uint32
		dbids      []uint64
		// per-format offset into that format's ithmb file
		offsets map[int]uint32
	}

	var skipped []string
	byHash := map[string]*uniqueImage{}
	var order []*uniqueImage
	ithmb := map[int]*bytebuffer.Buffer{}
	for _, f := range formats {
		ithmb[f.FormatID] = bytebuffer.New(len(sources) * f.ByteSize)
	}

	nextID := uint32(firstImageID)
	for _, src := range sources {
		if len(src.ImageData) == 0 {
			continue
		}
		sum := md5.Sum(src.ImageData)
		key := hex.EncodeToString(sum[:])
		if img, ok := byHash[key]; ok {
			img.dbids = append(img.dbids, src.DBID)
			continue
		}

		offsets := map[int]uint32{}
		encoded := map[int][]byte{}
		ok := true
		for _, f := range formats {
			pixels, err := w.Encoder.Encode(src.ImageData, f)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("dbid %016x: %v", src.DBID, err))
				ok = false
				break
			}
			if len(pixels) != f.ByteSize {
				skipped = append(skipped, fmt.Sprintf("dbid %016x: encoder returned %d bytes for a %d-byte format", src.DBID, len(pixels), f.ByteSize))
				ok = false
				break
			}
			encoded[f.FormatID] = pixels
		}
		if !ok {
			continue
		}
		for _, f := range formats {
			offsets[f.FormatID] = uint32(ithmb[f.FormatID].Len())
			ithmb[f.FormatID].Append(encoded[f.FormatID])
		}

		img := &uniqueImage{
			imageID:    nextID,
			sourceSize: uint32(len(src.ImageData)),
			dbids:      []uint64{src.DBID},
			offsets:    offsets,
		}
		nextID++
		byHash[key] = img
		order = append(order, img)
	}

	// Pixel files first: a database pointing at offsets that aren't on
	// disk yet would show garbage art if we crashed between the two.
	for _, f := range formats {
		path := w.Device.IthmbPath(f.FormatID)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, skipped, fmt.Errorf("artwork: creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, ithmb[f.FormatID].Bytes(), 0o644); err != nil {
			return nil, skipped, fmt.Errorf("artwork: writing %s: %w", path, err)
		}
	}

	b := bytebuffer.New(4096 + len(order)*256)
	root := b.Append([]byte(tagRoot))
	b.WriteU32LE(mhfdHeaderLength)
	rootTotalPos := b.WriteU32LE(0)
	b.WriteU32LE(2) // version
	b.WriteU32LE(1) // dataset count
	b.WriteU32LE(nextID)
	b.WriteZeros(mhfdHeaderLength - 24)

	dsStart := b.Append([]byte(tagDataset))
	b.WriteU32LE(mhsdHeaderLength)
	dsTotalPos := b.WriteU32LE(0)
	b.WriteU32LE(1) // image-list dataset

	// One mhii per (image, track): the track database references the image
	// by id, and each record carries the owning track's dbid.
	imageRecords := 0
	for _, img := range order {
		imageRecords += len(img.dbids)
	}

	b.Append([]byte(tagImageList))
	b.WriteU32LE(mhliHeaderLength)
	b.WriteU32LE(uint32(imageRecords))

	links := map[uint64]Link{}
	for _, img := range order {
		for _, dbid := range img.dbids {
			writeImage(b, formats, img.imageID, dbid, img.sourceSize, img.offsets)
			links[dbid] = Link{ImageID: img.imageID, SourceSize: img.sourceSize}
		}
	}

	b.PatchU32LE(dsTotalPos, uint32(b.CurrentPosition()-dsStart))
	b.PatchU32LE(rootTotalPos, uint32(b.CurrentPosition()-root))

	if err := os.WriteFile(w.Device.ArtworkDBPath(), b.Bytes(), 0o644); err != nil {
		return nil, skipped, fmt.Errorf("artwork: writing ArtworkDB: %w", err)
	}
	return links, skipped, nil
}

func writeImage(b *bytebuffer.Buffer, formats []imageencoder.Format, imageID uint32, dbid uint64, sourceSize uint32, offsets map[int]uint32) {
	start := b.Append([]byte(tagImage))
	b.WriteU32LE(mhiiHeaderLength)
	totalPos := b.WriteU32LE(0)
	childCountPos := b.WriteU32LE(0)
	b.WriteU32LE(imageID)
	b.WriteU64LE(dbid)
	b.WriteU32LE(sourceSize)
	b.WriteZeros(mhiiHeaderLength - 32)

	children := uint32(0)
	for _, f := range formats {
		writeThumb(b, f, offsets[f.FormatID])
		children++
	}
	b.PatchU32LE(childCountPos, children)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

func writeThumb(b *bytebuffer.Buffer, f imageencoder.Format, offset uint32) {
	start := b.Append([]byte(tagThumb))
	b.WriteU32LE(mhniHeaderLength)
	totalPos := b.WriteU32LE(0)
	b.WriteU32LE(uint32(f.FormatID))
	b.WriteU32LE(offset)
	b.WriteU32LE(uint32(f.ByteSize))
	b.WriteU16LE(uint16(f.Width))
	b.WriteU16LE(uint16(f.Height))
	b.WriteZeros(mhniHeaderLength - 28)
	b.PatchU32LE(totalPos, uint32(b.CurrentPosition()-start))
}

// Image is one parsed mhii record.
type Image struct {
	ImageID    uint32
	DBID       uint64
	SourceSize uint32
	Thumbs     []Thumb
}

// Thumb is one parsed mhni record.
type Thumb struct {
	FormatID uint32
	Offset   uint32
	Size     uint32
	Width    uint16
	Height   uint16
}

// Parse reads an ArtworkDB buffer back into its image records.
func Parse(data []byte) ([]Image, error) {
	if len(data) < mhfdHeaderLength || string(data[:4]) != tagRoot {
		return nil, fmt.Errorf("artwork: not an ArtworkDB")
	}
	total := binary.LittleEndian.Uint32(data[8:12])
	if int(total) > len(data) {
		return nil, fmt.Errorf("artwork: truncated ArtworkDB")
	}

	pos := mhfdHeaderLength
	var images []Image
	for pos < int(total) {
		if string(data[pos:pos+4]) != tagDataset {
			return nil, fmt.Errorf("artwork: expected dataset at offset %d", pos)
		}
		dsTotal := binary.LittleEndian.Uint32(data[pos+8 : pos+12])
		dsEnd := pos + int(dsTotal)
		listPos := pos + mhsdHeaderLength
		if listPos+mhliHeaderLength > len(data) || string(data[listPos:listPos+4]) != tagImageList {
			return nil, fmt.Errorf("artwork: expected image list at offset %d", listPos)
		}
		count := binary.LittleEndian.Uint32(data[listPos+8 : listPos+12])
		itemPos := listPos + mhliHeaderLength
		for i := uint32(0); i < count; i++ {
			img, next, err := parseImage(data, itemPos)
			if err != nil {
				return nil, err
			}
			images = append(images, img)
			itemPos = next
		}
		pos = dsEnd
	}
	return images, nil
}

func parseImage(data []byte, offset int) (Image, int, error) {
	if offset+mhiiHeaderLength > len(data) || string(data[offset:offset+4]) != tagImage {
		return Image{}, 0, fmt.Errorf("artwork: expected image record at offset %d", offset)
	}
	f := data[offset:]
	total := binary.LittleEndian.Uint32(f[8:12])
	childCount := binary.LittleEndian.Uint32(f[12:16])
	img := Image{
		ImageID:    binary.LittleEndian.Uint32(f[16:20]),
		DBID:       binary.LittleEndian.Uint64(f[20:28]),
		SourceSize: binary.LittleEndian.Uint32(f[28:32]),
	}
	end := offset + int(total)
	if end > len(data) {
		return Image{}, 0, fmt.Errorf("artwork: truncated image record at offset %d", offset)
	}
	pos := offset + mhiiHeaderLength
	for i := uint32(0); i < childCount; i++ {
		if pos+mhniHeaderLength > len(data) || string(data[pos:pos+4]) != tagThumb {
			return Image{}, 0, fmt.Errorf("artwork: expected thumb record at offset %d", pos)
		}
		t := data[pos:]
		img.Thumbs = append(img.Thumbs, Thumb{
			FormatID: binary.LittleEndian.Uint32(t[12:16]),
			Offset:   binary.LittleEndian.Uint32(t[16:20]),
			Size:     binary.LittleEndian.Uint32(t[20:24]),
			Width:    binary.LittleEndian.Uint16(t[24:26]),
			Height:   binary.LittleEndian.Uint16(t[26:28]),
		})
		pos += int(binary.LittleEndian.Uint32(t[8:12]))
	}
	return img, end, nil
}
