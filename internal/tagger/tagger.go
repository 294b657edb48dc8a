// file: internal/tagger/tagger.go
// version: 2.0.0
// guid: 3b4c5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e

// Package tagger writes play-count and rating values back into PC library
// files after a sync, each in the convention of its container: an ID3 POPM
// frame scaled 0-255 for MP3, a freeform atom scaled 0-100 for M4A/M4B,
// and a Vorbis comment scaled 0-100 for FLAC and Ogg. Tag writing goes
// through external command-line tools; a missing tool fails that one
// write-back, never the sync.
package tagger

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// popmEmail identifies this tool's POPM frame among other raters'.
const popmEmail = "iOpenPod"

// WriteBack routes tag write-backs by container. The zero value is ready
// to use.
type WriteBack struct{}

// WriteRating stores rating (0-100) in path's tags, scaled to the
// container's own convention.
func (w *WriteBack) WriteRating(path string, rating uint8) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		// POPM rates 0-255.
		scaled := int(rating) * 255 / 100
		return runTool("eyeD3", "--add-popularity",
			fmt.Sprintf("%s:%d:0", popmEmail, scaled), path)
	case ".m4a", ".m4b", ".aac", ".mp4":
		return runTool("AtomicParsley", path,
			"--rDNSatom", strconv.Itoa(int(rating)),
			"name=rating", "domain=org.iopenpod", "--overWrite")
	case ".flac":
		if err := runTool("metaflac", "--remove-tag=RATING", path); err != nil {
			return err
		}
		return runTool("metaflac", fmt.Sprintf("--set-tag=RATING=%d", rating), path)
	case ".ogg", ".opus":
		return runTool("vorbiscomment", "-a", "-t",
			fmt.Sprintf("RATING=%d", rating), path)
	default:
		return fmt.Errorf("tagger: no rating write-back for %s files", ext)
	}
}

// WritePlayCount stores the cumulative play count in path's tags.
func (w *WriteBack) WritePlayCount(path string, count int) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		// The POPM frame carries the counter; rating 0 here means "leave
		// the rating column alone" to every reader that honors the email.
		return runTool("eyeD3", "--add-popularity",
			fmt.Sprintf("%s:0:%d", popmEmail, count), path)
	case ".m4a", ".m4b", ".aac", ".mp4":
		return runTool("AtomicParsley", path,
			"--rDNSatom", strconv.Itoa(count),
			"name=play_count", "domain=org.iopenpod", "--overWrite")
	case ".flac":
		if err := runTool("metaflac", "--remove-tag=PLAY_COUNT", path); err != nil {
			return err
		}
		return runTool("metaflac", fmt.Sprintf("--set-tag=PLAY_COUNT=%d", count), path)
	case ".ogg", ".opus":
		return runTool("vorbiscomment", "-a", "-t",
			fmt.Sprintf("PLAY_COUNT=%d", count), path)
	default:
		return fmt.Errorf("tagger: no play-count write-back for %s files", ext)
	}
}

func runTool(name string, args ...string) error {
	toolPath, err := findTool(name)
	if err != nil {
		return err
	}
	cmd := exec.Command(toolPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tagger: %s failed: %w\noutput: %s", name, err, string(output))
	}
	return nil
}
