// file: internal/transcode/cache.go
// version: 1.0.0
// guid: 1e2f3a4b-5c6d-4e7f-8a9b-0c1d2e3f4a5b

package transcode

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache is the content-addressed transcode cache. Outputs are keyed by
// fingerprint plus target format (never by source path) so the same
// recording under two filenames shares one cached output. The manifest
// lives in a SQLite database beside the cached files.
type Cache struct {
	db  *sql.DB
	dir string
}

// OpenCache opens (or creates) the cache rooted at dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcode: creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "manifest.db"))
	if err != nil {
		return nil, fmt.Errorf("transcode: opening cache manifest: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcode: pinging cache manifest: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS outputs (
		key         TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		filename    TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_fingerprint ON outputs(fingerprint);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("transcode: creating cache schema: %w", err)
	}
	return &Cache{db: db, dir: dir}, nil
}

// Close releases the manifest database.
func (c *Cache) Close() error { return c.db.Close() }

// CacheKey builds the lookup key for one (fingerprint, target) pair.
func CacheKey(fingerprint string, target Target, bitrateKbps int) string {
	switch target {
	case TargetAAC:
		return fmt.Sprintf("%s:aac:%d", fingerprint, bitrateKbps)
	case TargetALAC:
		return fingerprint + ":alac"
	default:
		return fingerprint + ":copy"
	}
}

// Lookup returns the cached output path for key, if present on disk.
func (c *Cache) Lookup(key string) (string, bool) {
	var filename string
	err := c.db.QueryRow(`SELECT filename FROM outputs WHERE key = ?`, key).Scan(&filename)
	if err != nil {
		return "", false
	}
	path := filepath.Join(c.dir, filename)
	if _, err := os.Stat(path); err != nil {
		// Stale manifest row; the file was removed out from under us.
		_, _ = c.db.Exec(`DELETE FROM outputs WHERE key = ?`, key)
		return "", false
	}
	return path, true
}

// Reserve returns the path a new output for key should be written to. The
// caller writes the file there and then calls Commit.
func (c *Cache) Reserve(key, ext string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+"."+ext)
}

// Commit records a finished output file in the manifest.
func (c *Cache) Commit(key, fingerprint, path string) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO outputs (key, fingerprint, filename, created_at) VALUES (?, ?, ?, ?)`,
		key, fingerprint, filepath.Base(path), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("transcode: recording cache entry: %w", err)
	}
	return nil
}

// Invalidate drops every cached output for a fingerprint; called when the
// source file changed so a stale transcode is never reused.
func (c *Cache) Invalidate(fingerprint string) error {
	rows, err := c.db.Query(`SELECT filename FROM outputs WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("transcode: invalidating %s: %w", fingerprint, err)
	}
	var filenames []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			rows.Close()
			return fmt.Errorf("transcode: invalidating %s: %w", fingerprint, err)
		}
		filenames = append(filenames, fn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("transcode: invalidating %s: %w", fingerprint, err)
	}

	for _, fn := range filenames {
		_ = os.Remove(filepath.Join(c.dir, fn))
	}
	if _, err := c.db.Exec(`DELETE FROM outputs WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("transcode: invalidating %s: %w", fingerprint, err)
	}
	return nil
}
