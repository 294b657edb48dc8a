// file: internal/metadataprovider/provider.go
// version: 1.0.0
// guid: 9c0d1e2f-3a4b-4c5d-6e7f-8a9b0c1d2e3f

// Package metadataprovider abstracts tag reading and writing for PC-side
// audio files. The sync pipeline consumes typed values from a Provider and
// hands write-back values to a TagWriter; neither side of the pipeline
// parses container formats itself.
package metadataprovider

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

// PCTrack is everything the diff engine needs to know about one PC-side
// audio file: identity inputs, the compared metadata fields, and the
// format facts copied into the device database on add.
type PCTrack struct {
	Path    string // absolute
	RelPath string // relative to the library root; stored as the path hint
	Ext     string // lowercase, no dot
	Size    int64
	MTime   time.Time

	Fingerprint string // acoustic fingerprint; empty until computed

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Year        int
	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int
	Composer    string
	Comment     string

	Rating uint8 // 0-100; zero when the container carries no rating

	DurationMS   int
	BitrateKbps  int
	SampleRateHz int

	ArtHash string // md5 of the embedded image bytes; empty if none
	artData []byte
}

// ArtworkBytes returns the embedded image bytes read alongside the tags,
// or nil when the file has no embedded artwork.
func (t *PCTrack) ArtworkBytes() []byte { return t.artData }

// Provider reads typed metadata from an audio file.
type Provider interface {
	Read(path string) (*PCTrack, error)
}

// TagWriter writes play-count and rating values back into a PC file's
// tags. Rating is on the 0-100 scale; implementations rescale to the
// convention of the file's container.
type TagWriter interface {
	WritePlayCount(path string, count int) error
	WriteRating(path string, rating uint8) error
}

// TagProvider is the default Provider, backed by dhowden/tag.
type TagProvider struct{}

// Read extracts tags, embedded artwork, and file facts from path. RelPath
// is left empty; the scanner fills it in relative to the library root.
func (p *TagProvider) Read(path string) (*PCTrack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("metadataprovider: stat %s: %w", path, err)
	}

	t := &PCTrack{
		Path:  path,
		Ext:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Size:  info.Size(),
		MTime: info.ModTime(),
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadataprovider: opening %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files still sync; title falls back to the filename.
		t.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return t, nil
	}

	t.Title = m.Title()
	if t.Title == "" {
		t.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	t.Artist = m.Artist()
	t.Album = m.Album()
	t.AlbumArtist = m.AlbumArtist()
	t.Genre = m.Genre()
	t.Year = m.Year()
	t.Composer = m.Composer()
	t.Comment = m.Comment()
	t.TrackNumber, t.TrackTotal = m.Track()
	t.DiscNumber, t.DiscTotal = m.Disc()

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		sum := md5.Sum(pic.Data)
		t.ArtHash = hex.EncodeToString(sum[:])
		t.artData = pic.Data
	}
	return t, nil
}
