// file: internal/fileops/safe_operations.go
// version: 2.0.0
// guid: 8f7e6d5c-4b3a-2918-7f6e-5d4c3b2a1908

// Package fileops provides the careful file primitives the sync pipeline
// commits with: verified copies, and the temp-file-plus-fsync-plus-rename
// discipline that makes the database and mapping replace atomic.
package fileops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst, creating parent directories and syncing the
// destination to disk before returning.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("fileops: opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("fileops: creating %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fileops: creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("fileops: copying %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("fileops: syncing %s: %w", dst, err)
	}
	return out.Close()
}

// CopyVerified copies src to dst and confirms the destination's checksum
// matches the source. A mismatch removes the destination and fails.
func CopyVerified(src, dst string) error {
	srcHash, err := ComputeFileHash(src)
	if err != nil {
		return fmt.Errorf("fileops: hashing %s: %w", src, err)
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	dstHash, err := ComputeFileHash(dst)
	if err != nil {
		return fmt.Errorf("fileops: hashing %s: %w", dst, err)
	}
	if srcHash != dstHash {
		_ = os.Remove(dst)
		return fmt.Errorf("fileops: checksum mismatch copying %s to %s", src, dst)
	}
	return nil
}

// AtomicWriteFile writes data to path via a temp file in the same
// directory, fsyncing before the rename so a crash leaves either the old
// contents or the new, never a torn file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fileops: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("fileops: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fileops: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fileops: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fileops: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("fileops: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fileops: renaming into place: %w", err)
	}
	return nil
}

// ReplaceWithBackup saves a copy of path at backupPath (when path exists),
// then atomically replaces path with data. The backup lands on disk
// before the rename, so the previous contents are always recoverable.
func ReplaceWithBackup(path, backupPath string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		if err := CopyFile(path, backupPath); err != nil {
			return fmt.Errorf("fileops: backing up %s: %w", path, err)
		}
	}
	return AtomicWriteFile(path, data, 0o644)
}
