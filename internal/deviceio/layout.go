// file: internal/deviceio/layout.go
// version: 1.0.0
// guid: 3c4d5e6f-7a8b-4c9d-0e1f-2a3b4c5d6e7f

// Package deviceio knows the iPod's on-disk layout: where the databases,
// music folders, and device identity files live under the mount point, and
// how the device's own path notation and timestamps convert to Go's.
package deviceio

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MusicFolderCount is the number of hashed music folders (F00..F49).
const MusicFolderCount = 50

// macEpochOffset converts between Unix time and the 1904-01-01 epoch the
// device stores all timestamps in.
const macEpochOffset = 2082844800

// Device is a mounted iPod. All paths are derived from the mount root.
type Device struct {
	Root string
}

// New returns a Device rooted at the given mount point.
func New(root string) *Device {
	return &Device{Root: root}
}

func (d *Device) control(parts ...string) string {
	return filepath.Join(append([]string{d.Root, "iPod_Control"}, parts...)...)
}

// DatabasePath is the primary binary database, replaced atomically on sync.
func (d *Device) DatabasePath() string { return d.control("iTunes", "iTunesDB") }

// DatabaseBackupPath is written beside the database before each replace.
func (d *Device) DatabaseBackupPath() string { return d.control("iTunes", "iTunesDB.backup") }

// PlayCountsPath is the file the device appends play events to between syncs.
func (d *Device) PlayCountsPath() string { return d.control("iTunes", "Play Counts") }

// MappingPath is this tool's fingerprint mapping document.
func (d *Device) MappingPath() string { return d.control("iTunes", "iOpenPod.json") }

// ArtworkDBPath is the binary artwork metadata database.
func (d *Device) ArtworkDBPath() string { return d.control("Artwork", "ArtworkDB") }

// IthmbPath returns the raw pixel file for one thumbnail format.
func (d *Device) IthmbPath(formatID int) string {
	return d.control("Artwork", fmt.Sprintf("F%d_1.ithmb", formatID))
}

// MusicFolder returns the hashed music folder with the given index (0..49).
func (d *Device) MusicFolder(i int) string {
	return d.control("Music", fmt.Sprintf("F%02d", i))
}

// SysInfoPath is the key:value device identity file.
func (d *Device) SysInfoPath() string { return d.control("Device", "SysInfo") }

// HashInfoPath is the per-device signing artifact captured from a genuine
// sync; absent on devices that only need HASH58.
func (d *Device) HashInfoPath() string { return d.control("Device", "HashInfo") }

// LocationToPath converts a database location string (colon-separated,
// rooted at the mount point, e.g. ":iPod_Control:Music:F07:XKCD.mp3") to a
// filesystem path under the device root. Backslash separators from
// foreign-written databases are accepted too.
func (d *Device) LocationToPath(location string) string {
	parts := strings.FieldsFunc(location, func(r rune) bool {
		return r == ':' || r == '\\'
	})
	return filepath.Join(append([]string{d.Root}, parts...)...)
}

// PathToLocation converts a filesystem path under the device root to the
// colon-separated location notation stored in the database.
func (d *Device) PathToLocation(path string) (string, error) {
	rel, err := filepath.Rel(d.Root, path)
	if err != nil {
		return "", fmt.Errorf("deviceio: %s is not under device root %s: %w", path, d.Root, err)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", fmt.Errorf("deviceio: %s is not under device root %s", path, d.Root)
	}
	return ":" + strings.ReplaceAll(rel, "/", ":"), nil
}

// MacTime converts a device timestamp to Go time. Zero stays zero ("never").
func MacTime(v uint32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(int64(v)-macEpochOffset, 0).UTC()
}

// ToMacTime converts Go time to a device timestamp.
func ToMacTime(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix() + macEpochOffset)
}

// AudioExtensions is the set of file extensions treated as audio when
// walking the device's music folders. Lowercase, without the dot.
var AudioExtensions = map[string]bool{
	"mp3": true, "m4a": true, "m4b": true, "m4p": true, "mp4": true,
	"aac": true, "wav": true, "aif": true, "aiff": true, "alac": true,
}

// IsAudioPath reports whether a path has one of the device audio extensions.
func IsAudioPath(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return AudioExtensions[ext]
}
