// file: internal/organizer/organizer.go
// version: 2.0.0
// guid: 5e6f7a8b-9c0d-1e2f-3a4b-5c6d7e8f9a0b

// Package organizer places audio files into the device's hashed music
// folders. The device spreads its library across F00..F49 and names files
// with short opaque stems; the placer balances new files round-robin
// across the folders and picks a random 4-character stem per file.
package organizer

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/fileops"
)

const stemLength = 4

// stemAlphabet matches the device's own naming: uppercase plus digits.
const stemAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Placer allocates on-device paths and copies files into them.
type Placer struct {
	dev  *deviceio.Device
	next int // next folder index in the round-robin
}

// NewPlacer returns a Placer for the device. The round-robin pointer
// starts at the least-occupied folder so long-lived libraries stay
// balanced across syncs.
func NewPlacer(dev *deviceio.Device) *Placer {
	p := &Placer{dev: dev}
	minCount, minIdx := -1, 0
	for i := 0; i < deviceio.MusicFolderCount; i++ {
		entries, err := os.ReadDir(dev.MusicFolder(i))
		count := len(entries)
		if err != nil {
			count = 0
		}
		if minCount < 0 || count < minCount {
			minCount, minIdx = count, i
		}
	}
	p.next = minIdx
	return p
}

// Allocate reserves a fresh on-device path for a file with the given
// extension (lowercase, no dot) and returns it together with its database
// location string. The file does not exist yet; the caller creates it.
func (p *Placer) Allocate(ext string) (string, string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		folder := p.dev.MusicFolder(p.next)
		p.next = (p.next + 1) % deviceio.MusicFolderCount

		stem, err := randomStem()
		if err != nil {
			return "", "", err
		}
		path := filepath.Join(folder, stem+"."+ext)
		if _, err := os.Stat(path); err == nil {
			continue // stem collision, rare
		}
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return "", "", fmt.Errorf("organizer: creating %s: %w", folder, err)
		}
		location, err := p.dev.PathToLocation(path)
		if err != nil {
			return "", "", err
		}
		return path, location, nil
	}
	return "", "", fmt.Errorf("organizer: could not allocate a free filename")
}

func randomStem() (string, error) {
	var buf [stemLength]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("organizer: generating stem: %w", err)
	}
	for i := range buf {
		buf[i] = stemAlphabet[int(buf[i])%len(stemAlphabet)]
	}
	return string(buf[:]), nil
}

// Place copies src onto the device at a freshly allocated path and
// returns the path and location. Tries a copy-on-write clone first when
// the platform supports one; the device's FAT filesystem usually doesn't,
// so the plain copy is the common path.
func (p *Placer) Place(src, ext string) (string, string, error) {
	path, location, err := p.Allocate(ext)
	if err != nil {
		return "", "", err
	}
	if err := p.reflinkFilePlatform(src, path); err == nil {
		return path, location, nil
	}
	if err := fileops.CopyVerified(src, path); err != nil {
		_ = os.Remove(path)
		return "", "", err
	}
	return path, location, nil
}
