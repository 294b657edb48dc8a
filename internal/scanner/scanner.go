// file: internal/scanner/scanner.go
// version: 1.0.0
// guid: 5c6d7e8f-9a0b-4c1d-2e3f-4a5b6c7d8e9f

// Package scanner walks the PC music library, reads each file's tags, and
// computes its acoustic fingerprint. The result is the PC-side view the
// diff engine compares against the device.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/TheRealSavi/iOpenPod/internal/fingerprint"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
)

// libraryExtensions are the source formats the pipeline knows how to get
// onto the device, directly or through the transcoder.
var libraryExtensions = map[string]bool{
	"mp3": true, "m4a": true, "m4b": true, "aac": true,
	"flac": true, "wav": true, "aif": true, "aiff": true,
	"ogg": true, "opus": true, "wma": true,
}

// Result is one scanned library.
type Result struct {
	Tracks []*metadataprovider.PCTrack
	// FingerprintErrors lists files skipped because their tags could not be
	// read or fpcalc failed on them.
	FingerprintErrors []string
}

// Scanner ties together the walk, the tag reader, and the fingerprinter.
type Scanner struct {
	Provider    metadataprovider.Provider
	Fingerprint *fingerprint.Computer
	// Workers bounds concurrent tag reads and fpcalc child processes.
	Workers int
	// ShowProgress draws a terminal progress bar during fingerprinting.
	ShowProgress bool
}

// ScanRoots walks every library root and returns the fingerprinted PC
// tracks. Files fpcalc cannot handle are skipped and reported, not fatal.
func (s *Scanner) ScanRoots(ctx context.Context, roots []string) (*Result, error) {
	var paths []string
	rootOf := map[string]string{}
	for _, root := range roots {
		found, err := walkRoot(root)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			rootOf[p] = root
		}
		paths = append(paths, found...)
	}
	sort.Strings(paths)

	workers := s.Workers
	if workers < 1 {
		workers = 4
	}
	fmt.Printf("Scanning %d files (using %d workers)...\n", len(paths), workers)

	var bar *progressbar.ProgressBar
	if s.ShowProgress {
		bar = progressbar.Default(int64(len(paths)))
	}

	tracks := make([]*metadataprovider.PCTrack, len(paths))
	fpErrors := make([]string, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, workers)

	for i := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				if bar != nil {
					_ = bar.Add(1)
				}
			}()

			path := paths[idx]
			track, err := s.Provider.Read(path)
			if err != nil {
				mu.Lock()
				fpErrors = append(fpErrors, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return
			}
			if rel, err := filepath.Rel(rootOf[path], path); err == nil {
				track.RelPath = filepath.ToSlash(rel)
			} else {
				track.RelPath = filepath.Base(path)
			}

			fp, err := s.Fingerprint.Compute(ctx, path)
			if err != nil {
				mu.Lock()
				fpErrors = append(fpErrors, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return
			}
			track.Fingerprint = fp
			tracks[idx] = track
		}(i)
	}
	wg.Wait()

	result := &Result{FingerprintErrors: fpErrors}
	for _, t := range tracks {
		if t != nil {
			result.Tracks = append(result.Tracks, t)
		}
	}
	return result, nil
}

func walkRoot(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if libraryExtensions[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walking %s: %w", root, err)
	}
	return paths, nil
}
