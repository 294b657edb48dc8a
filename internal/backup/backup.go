// file: internal/backup/backup.go
// version: 2.0.0
// guid: 8f9e0a1b-2c3d-4e5f-6a7b-8c9d0e1f2a3b

// Package backup archives and restores the device's database state. The
// sync itself keeps a plain .backup copy of the last database; snapshots
// here bundle the database, the artwork database, the play-counts file,
// and the mapping into one compressed archive that survives many syncs.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TheRealSavi/iOpenPod/internal/deviceio"
)

// SnapshotInfo contains information about a snapshot archive
type SnapshotInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotConfig holds snapshot configuration
type SnapshotConfig struct {
	SnapshotDir      string
	MaxSnapshots     int
	CompressionLevel int
}

// DefaultSnapshotConfig returns default snapshot configuration
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		SnapshotDir:      "snapshots",
		MaxSnapshots:     10,
		CompressionLevel: gzip.BestCompression,
	}
}

// snapshotMembers returns the device files worth archiving, as
// (path, archive name) pairs. Missing members are skipped: a device that
// has never synced has no database yet.
func snapshotMembers(dev *deviceio.Device) [][2]string {
	return [][2]string{
		{dev.DatabasePath(), "iTunesDB"},
		{dev.DatabaseBackupPath(), "iTunesDB.backup"},
		{dev.MappingPath(), "iOpenPod.json"},
		{dev.ArtworkDBPath(), "ArtworkDB"},
		{dev.PlayCountsPath(), "Play Counts"},
	}
}

// CreateSnapshot archives the device's database state into a new
// compressed snapshot.
func CreateSnapshot(dev *deviceio.Device, config SnapshotConfig) (*SnapshotInfo, error) {
	if err := os.MkdirAll(config.SnapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("iopenpod_%s.tar.gz", timestamp)
	path := filepath.Join(config.SnapshotDir, filename)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer out.Close()

	gzipWriter, err := gzip.NewWriterLevel(out, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	archived := 0
	for _, member := range snapshotMembers(dev) {
		src, name := member[0], member[1]
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := addToArchive(tarWriter, src, name); err != nil {
			tarWriter.Close()
			gzipWriter.Close()
			os.Remove(path)
			return nil, fmt.Errorf("failed to archive %s: %w", name, err)
		}
		archived++
	}
	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if archived == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("nothing to snapshot: device has no database state")
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot file: %w", err)
	}
	checksum, err := calculateFileChecksum(path)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	info := &SnapshotInfo{
		Filename:  filename,
		Path:      path,
		Size:      fileInfo.Size(),
		Checksum:  checksum,
		CreatedAt: time.Now(),
	}

	if err := cleanupOldSnapshots(config.SnapshotDir, config.MaxSnapshots); err != nil {
		fmt.Printf("Warning: failed to clean up old snapshots: %v\n", err)
	}
	return info, nil
}

// RestoreSnapshot extracts a snapshot back onto the device, overwriting
// the current database state.
func RestoreSnapshot(snapshotPath string, dev *deviceio.Device) error {
	in, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer in.Close()

	gzipReader, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	targets := map[string]string{}
	for _, member := range snapshotMembers(dev) {
		targets[member[1]] = member[0]
	}

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		target, ok := targets[header.Name]
		if !ok {
			fmt.Printf("Warning: skipping unknown snapshot member %s\n", header.Name)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", target, err)
		}
		outFile, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", target, err)
		}
		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return fmt.Errorf("failed to write file %s: %w", target, err)
		}
		if err := outFile.Close(); err != nil {
			return fmt.Errorf("failed to close file %s: %w", target, err)
		}
	}
	return nil
}

// ListSnapshots lists all available snapshots, newest first
func ListSnapshots(snapshotDir string) ([]SnapshotInfo, error) {
	var snapshots []SnapshotInfo

	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshots, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(snapshotDir, entry.Name())
		checksum, _ := calculateFileChecksum(path)
		snapshots = append(snapshots, SnapshotInfo{
			Filename:  entry.Name(),
			Path:      path,
			Size:      info.Size(),
			Checksum:  checksum,
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// addToArchive adds a single file to a tar archive under the given name
func addToArchive(tarWriter *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(tarWriter, file)
	return err
}

// calculateFileChecksum calculates SHA256 checksum of a file
func calculateFileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// cleanupOldSnapshots removes old snapshots exceeding the maximum count
func cleanupOldSnapshots(snapshotDir string, maxSnapshots int) error {
	if maxSnapshots <= 0 {
		return nil
	}
	snapshots, err := ListSnapshots(snapshotDir)
	if err != nil {
		return err
	}
	if len(snapshots) <= maxSnapshots {
		return nil
	}
	// Newest first; everything past the cap goes.
	for _, s := range snapshots[maxSnapshots:] {
		if err := os.Remove(s.Path); err != nil {
			fmt.Printf("Warning: failed to delete old snapshot %s: %v\n", s.Filename, err)
		}
	}
	return nil
}
