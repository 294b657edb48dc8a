// file: internal/fileops/fileops_test.go
// version: 1.0.0
// guid: 9b0c1d2e-3f4a-4b5c-6d7e-8f9a0b1c2d3e

package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "db.bin")
	require.NoError(t, AtomicWriteFile(path, []byte("v1"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), data)

	require.NoError(t, AtomicWriteFile(path, []byte("v2"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	// No temp debris left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReplaceWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iTunesDB")
	backupPath := filepath.Join(dir, "iTunesDB.backup")

	// First write: nothing to back up yet.
	require.NoError(t, ReplaceWithBackup(path, backupPath, []byte("first")))
	_, err := os.Stat(backupPath)
	require.True(t, os.IsNotExist(err))

	// Second write: the previous contents survive as the backup.
	require.NoError(t, ReplaceWithBackup(path, backupPath, []byte("second")))
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), current)
	backed, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), backed)
}

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "nested", "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, CopyVerified(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	hash1, err := ComputeFileHash(src)
	require.NoError(t, err)
	hash2, err := ComputeFileHash(dst)
	require.NoError(t, err)
	require.Equal(t, hash1, hash2)
}
