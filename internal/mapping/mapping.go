// file: internal/mapping/mapping.go
// version: 1.0.0
// guid: d4e5f6a7-8b9c-4d0e-1f2a-3b4c5d6e7f8a

// Package mapping implements the persistent fingerprint -> dbid mapping
// store: a single JSON document, loaded once per sync, mutated in memory,
// and saved exactly once after the database has been emitted, signed, and
// atomically replaced.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one mapping record. A fingerprint may own several entries when
// the same recording appears on multiple albums; AlbumKey disambiguates.
type Entry struct {
	DBID           uint64 `json:"dbid"`
	AlbumKey       string `json:"album_key"`
	SourcePathHint string `json:"source_path_hint,omitempty"`
	SourceSize     int64  `json:"source_size"`
	SourceMTime    int64  `json:"source_mtime_unix"`
	ArtHash        string `json:"art_hash,omitempty"`
	FormatInfo     string `json:"format_info,omitempty"`
}

// document is the on-disk JSON shape.
type document struct {
	Version  int                `json:"version"`
	Created  time.Time          `json:"created"`
	Modified time.Time          `json:"modified"`
	Tracks   map[string][]Entry `json:"tracks"`
}

const currentVersion = 1

// Store holds the in-memory mapping for the duration of one sync run. It is
// loaded once, mutated freely, and saved exactly once at the end of a
// successful sync — see internal/executor Stage 7.
type Store struct {
	path string
	doc  document
	dirty bool
}

// Load reads the mapping file at path. A missing file is not an error: it
// yields an empty store, which is exactly the state of a device synced for
// the first time.
func Load(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Version: currentVersion, Tracks: map[string][]Entry{}}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			now := timeNow()
			s.doc.Created = now
			s.doc.Modified = now
			return s, nil
		}
		return nil, fmt.Errorf("mapping: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("mapping: parsing %s: %w", path, err)
	}
	if s.doc.Tracks == nil {
		s.doc.Tracks = map[string][]Entry{}
	}
	return s, nil
}

// timeNow is a seam so tests can avoid relying on wall-clock time; callers
// never need to override it in production.
var timeNow = time.Now

// Entries returns every mapping entry for fingerprint, or nil.
func (s *Store) Entries(fingerprint string) []Entry {
	return s.doc.Tracks[fingerprint]
}

// AllFingerprints returns every fingerprint currently in the store.
func (s *Store) AllFingerprints() []string {
	out := make([]string, 0, len(s.doc.Tracks))
	for fp := range s.doc.Tracks {
		out = append(out, fp)
	}
	return out
}

// ByDBID scans the whole store for the entry with the given dbid. It
// returns the owning fingerprint, the entry, and whether it was found.
func (s *Store) ByDBID(dbid uint64) (string, Entry, bool) {
	for fp, entries := range s.doc.Tracks {
		for _, e := range entries {
			if e.DBID == dbid {
				return fp, e, true
			}
		}
	}
	return "", Entry{}, false
}

// Upsert adds a new entry for fingerprint, or replaces the existing entry
// with the same dbid if one is present.
func (s *Store) Upsert(fingerprint string, entry Entry) {
	entries := s.doc.Tracks[fingerprint]
	for i, e := range entries {
		if e.DBID == entry.DBID {
			entries[i] = entry
			s.doc.Tracks[fingerprint] = entries
			s.dirty = true
			return
		}
	}
	s.doc.Tracks[fingerprint] = append(entries, entry)
	s.dirty = true
}

// Remove deletes the entry with the given dbid under fingerprint. It
// reports whether anything was removed.
func (s *Store) Remove(fingerprint string, dbid uint64) bool {
	entries := s.doc.Tracks[fingerprint]
	for i, e := range entries {
		if e.DBID == dbid {
			entries = append(entries[:i], entries[i+1:]...)
			if len(entries) == 0 {
				delete(s.doc.Tracks, fingerprint)
			} else {
				s.doc.Tracks[fingerprint] = entries
			}
			s.dirty = true
			return true
		}
	}
	return false
}

// RemoveByDBID deletes whichever entry across all fingerprints carries the
// given dbid. Used by the integrity checker, which only knows a dangling
// dbid, not its fingerprint.
func (s *Store) RemoveByDBID(dbid uint64) bool {
	if fp, _, ok := s.ByDBID(dbid); ok {
		return s.Remove(fp, dbid)
	}
	return false
}

// Dirty reports whether the store has unsaved mutations.
func (s *Store) Dirty() bool { return s.dirty }

// Save persists the store to its path using temp-file-plus-rename with an
// fsync before the rename, the same atomic-write discipline the database
// replace uses. Save must be called exactly once, after the database has
// been successfully written; on any earlier failure the caller discards
// the store instead of calling Save.
func (s *Store) Save() error {
	s.doc.Modified = timeNow()
	if s.doc.Created.IsZero() {
		s.doc.Created = s.doc.Modified
	}
	s.doc.Version = currentVersion

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: marshaling: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mapping: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".iOpenPod-mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("mapping: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("mapping: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("mapping: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mapping: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("mapping: renaming into place: %w", err)
	}

	s.dirty = false
	return nil
}

// TrackCount returns the total number of entries across every fingerprint.
func (s *Store) TrackCount() int {
	n := 0
	for _, entries := range s.doc.Tracks {
		n += len(entries)
	}
	return n
}
