// file: internal/integrity/integrity.go
// version: 1.0.0
// guid: 9a0b1c2d-3e4f-4a5b-6c7d-8e9f0a1b2c3d

// Package integrity reconciles the three sources of truth on the device —
// audio files, database records, and mapping entries — before any diff
// runs. A crashed or cancelled sync can leave the three disagreeing; this
// pass restores agreement, so repair logic lives here and nowhere else.
package integrity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
	"github.com/TheRealSavi/iOpenPod/internal/itunesdb"
	"github.com/TheRealSavi/iOpenPod/internal/mapping"
)

// Report lists what each check found and fixed. It is informational: the
// fixes are already applied by the time the caller sees it.
type Report struct {
	// MissingFiles are tracks dropped because their audio file is gone.
	MissingFiles []string
	// DanglingEntries are mapping entries dropped because their dbid no
	// longer exists in the database.
	DanglingEntries []string
	// OrphanedFiles are audio files deleted because no track references
	// them.
	OrphanedFiles []string
}

// FixCount is the total number of repairs applied.
func (r *Report) FixCount() int {
	return len(r.MissingFiles) + len(r.DanglingEntries) + len(r.OrphanedFiles)
}

// Lines renders the report for the plan's informational section.
func (r *Report) Lines() []string {
	var lines []string
	for _, f := range r.MissingFiles {
		lines = append(lines, "dropped track with missing file: "+f)
	}
	for _, e := range r.DanglingEntries {
		lines = append(lines, "dropped dangling mapping entry: "+e)
	}
	for _, f := range r.OrphanedFiles {
		lines = append(lines, "deleted orphaned file: "+f)
	}
	return lines
}

// Check runs the three reconciliation passes in order, mutating the
// working set and the mapping in memory and deleting orphaned files on
// disk. Run twice in a row, the second pass finds nothing.
func Check(dev *deviceio.Device, db *itunesdb.Database, store *mapping.Store) (*Report, error) {
	report := &Report{}

	checkMissingFiles(dev, db, report)
	checkDanglingEntries(db, store, report)
	if err := checkOrphanedFiles(dev, db, report); err != nil {
		return report, err
	}
	return report, nil
}

// checkMissingFiles drops every track whose location points at a file
// that is not on the device. The diff engine never sees these tracks: as
// far as the plan is concerned they were never there.
func checkMissingFiles(dev *deviceio.Device, db *itunesdb.Database, report *Report) {
	kept := db.Tracks[:0]
	removedIDs := map[uint32]bool{}
	for _, t := range db.Tracks {
		if t.Location == "" {
			kept = append(kept, t)
			continue
		}
		path := dev.LocationToPath(t.Location)
		if _, err := os.Stat(path); err != nil {
			report.MissingFiles = append(report.MissingFiles, t.Location)
			removedIDs[t.TrackID] = true
			continue
		}
		kept = append(kept, t)
	}
	db.Tracks = kept

	if len(removedIDs) == 0 {
		return
	}
	for _, p := range db.Playlists {
		items := p.Items[:0]
		for _, item := range p.Items {
			if !removedIDs[item.TrackID] {
				items = append(items, item)
			}
		}
		p.Items = items
	}
}

// checkDanglingEntries drops mapping entries whose dbid is absent from the
// (already pruned) track set.
func checkDanglingEntries(db *itunesdb.Database, store *mapping.Store, report *Report) {
	known := map[uint64]bool{}
	for _, t := range db.Tracks {
		known[t.DBID] = true
	}
	for _, fp := range store.AllFingerprints() {
		// Snapshot: Remove shifts the live slice under the iteration.
		entries := append([]mapping.Entry(nil), store.Entries(fp)...)
		for _, e := range entries {
			if !known[e.DBID] {
				store.Remove(fp, e.DBID)
				report.DanglingEntries = append(report.DanglingEntries,
					fmt.Sprintf("%s (dbid %016x)", fp, e.DBID))
			}
		}
	}
}

// checkOrphanedFiles walks the hashed music folders and deletes audio
// files no track references.
func checkOrphanedFiles(dev *deviceio.Device, db *itunesdb.Database, report *Report) error {
	referenced := map[string]bool{}
	for _, t := range db.Tracks {
		if t.Location != "" {
			referenced[dev.LocationToPath(t.Location)] = true
		}
	}

	for i := 0; i < deviceio.MusicFolderCount; i++ {
		folder := dev.MusicFolder(i)
		entries, err := os.ReadDir(folder)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("integrity: reading %s: %w", folder, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(folder, entry.Name())
			if !deviceio.IsAudioPath(path) || referenced[path] {
				continue
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("integrity: deleting orphan %s: %w", path, err)
			}
			report.OrphanedFiles = append(report.OrphanedFiles, path)
		}
	}
	return nil
}
