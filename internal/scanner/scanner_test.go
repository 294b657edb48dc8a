// file: internal/scanner/scanner_test.go
// version: 1.0.0
// guid: 1d2e3f4a-5b6c-4d7e-8f9a-0b1c2d3e4f5a

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/fingerprint"
	"github.com/TheRealSavi/iOpenPod/internal/metadataprovider"
)

func stubFpcalc(t *testing.T) *fingerprint.Computer {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not available on windows")
	}
	path := filepath.Join(t.TempDir(), "fpcalc")
	script := "#!/bin/sh\necho FINGERPRINT=FP-$(basename \"$2\")\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return fingerprint.New(path)
}

func writeLibrary(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	}
	return root
}

func TestScanRootsFindsAudioAndSkipsRest(t *testing.T) {
	root := writeLibrary(t,
		"a/one.mp3",
		"a/two.FLAC",
		"b/cover.jpg",
		"b/notes.txt",
		".hidden/secret.mp3",
	)

	s := &Scanner{Provider: fakeProvider{}, Fingerprint: stubFpcalc(t), Workers: 2}
	result, err := s.ScanRoots(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, result.Tracks, 2)

	rels := []string{result.Tracks[0].RelPath, result.Tracks[1].RelPath}
	require.ElementsMatch(t, []string{"a/one.mp3", "a/two.FLAC"}, rels)
	for _, track := range result.Tracks {
		require.NotEmpty(t, track.Fingerprint)
	}
}

func TestScanRootsReportsFingerprintFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not available on windows")
	}
	root := writeLibrary(t, "one.mp3")

	failPath := filepath.Join(t.TempDir(), "fpcalc")
	require.NoError(t, os.WriteFile(failPath, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	s := &Scanner{Provider: fakeProvider{}, Fingerprint: fingerprint.New(failPath), Workers: 1}
	result, err := s.ScanRoots(context.Background(), []string{root})
	require.NoError(t, err)
	require.Empty(t, result.Tracks)
	require.Len(t, result.FingerprintErrors, 1)
}

// fakeProvider avoids depending on real tag parsing in scanner tests.
type fakeProvider struct{}

func (fakeProvider) Read(path string) (*metadataprovider.PCTrack, error) {
	return &metadataprovider.PCTrack{
		Path:  path,
		Ext:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Title: filepath.Base(path),
	}, nil
}
