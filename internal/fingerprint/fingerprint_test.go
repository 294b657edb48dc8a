// file: internal/fingerprint/fingerprint_test.go
// version: 1.0.0
// guid: 0c1d2e3f-4a5b-4c6d-7e8f-9a0b1c2d3e4f

package fingerprint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheRealSavi/iOpenPod/internal/syncerr"
)

// stubFpcalc writes a shell script that mimics fpcalc's output.
func stubFpcalc(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not available on windows")
	}
	path := filepath.Join(t.TempDir(), "fpcalc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestParseOutput(t *testing.T) {
	out := []byte("DURATION=123\nFINGERPRINT=1234,5678,9012\n")
	fp, err := parseOutput(out)
	require.NoError(t, err)
	require.Equal(t, "1234,5678,9012", fp)

	_, err = parseOutput([]byte("DURATION=123\n"))
	require.Error(t, err)
}

func TestComputeParsesAndMemoizes(t *testing.T) {
	// The stub counts invocations through a side file so the memoization
	// is observable.
	dir := t.TempDir()
	counter := filepath.Join(dir, "count")
	c := New(stubFpcalc(t, "echo x >> "+counter+"\necho FINGERPRINT=ABC"))

	audio := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))

	fp, err := c.Compute(context.Background(), audio)
	require.NoError(t, err)
	require.Equal(t, "ABC", fp)

	_, err = c.Compute(context.Background(), audio)
	require.NoError(t, err)

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	require.Equal(t, "x\n", string(data), "second call must hit the memo")
}

func TestComputeFailureIsPerFile(t *testing.T) {
	c := New(stubFpcalc(t, "exit 3"))
	audio := filepath.Join(t.TempDir(), "bad.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))

	_, err := c.Compute(context.Background(), audio)
	require.Error(t, err)
	var serr *syncerr.Error
	require.True(t, errors.As(err, &serr))
	require.Equal(t, syncerr.KindFingerprintFailed, serr.Kind)
	require.False(t, serr.Kind.Fatal())
}

func TestPreflightMissingToolAborts(t *testing.T) {
	c := New("definitely-not-a-real-binary-name")
	err := c.Preflight()
	require.Error(t, err)
	var serr *syncerr.Error
	require.True(t, errors.As(err, &serr))
	require.Equal(t, syncerr.KindPreflightMissingTool, serr.Kind)
	require.True(t, serr.Kind.Fatal())
}
