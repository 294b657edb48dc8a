// file: internal/imageencoder/encoder.go
// version: 1.0.0
// guid: 3a4b5c6d-7e8f-4a9b-0c1d-2e3f4a5b6c7d

// Package imageencoder abstracts the pixel side of artwork handling. The
// sync core decides which images go to the device and at which sizes; the
// encoder turns source image bytes into the raw RGB565 pixel data the
// device's .ithmb files hold.
package imageencoder

import "fmt"

// Format describes one thumbnail rendition the device expects. Every image
// written to the device is encoded once per format, and each format's
// pixels accumulate in their own .ithmb file.
type Format struct {
	// FormatID selects the .ithmb bucket (F<id>_1.ithmb).
	FormatID int
	Width    int
	Height   int
	// ByteSize is Width*Height*2: every slot in the pixel file is exactly
	// this long, so offsets are always a multiple of it.
	ByteSize int
}

// ClassicFormats are the renditions a Classic/Nano expects: full-screen
// album view, list thumbnail, and now-playing.
var ClassicFormats = []Format{
	{FormatID: 1, Width: 140, Height: 140, ByteSize: 39200},
	{FormatID: 2, Width: 56, Height: 56, ByteSize: 6272},
	{FormatID: 3, Width: 100, Height: 100, ByteSize: 20000},
}

// Encoder converts source image bytes (any container the implementation
// understands) into exactly format.ByteSize bytes of RGB565 pixel data.
type Encoder interface {
	Encode(src []byte, format Format) ([]byte, error)
}

// Unavailable is the Encoder used when no pixel backend is wired in; every
// call fails, which the artwork writer reports per image rather than
// aborting the sync.
type Unavailable struct{}

func (Unavailable) Encode(src []byte, format Format) ([]byte, error) {
	return nil, fmt.Errorf("imageencoder: no encoder available")
}
