// file: internal/transcode/transcode_test.go
// version: 1.0.0
// guid: 7f8a9b0c-1d2e-4f3a-4b5c-6d7e8f9a0b1c

package transcode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	for _, ext := range []string{"mp3", "m4a", "m4b", "aac"} {
		target, err := Route(ext)
		require.NoError(t, err)
		require.Equal(t, TargetCopy, target, ext)
	}
	for _, ext := range []string{"flac", "wav", "aif", "aiff"} {
		target, err := Route(ext)
		require.NoError(t, err)
		require.Equal(t, TargetALAC, target, ext)
	}
	for _, ext := range []string{"ogg", "opus", "wma"} {
		target, err := Route(ext)
		require.NoError(t, err)
		require.Equal(t, TargetAAC, target, ext)
	}
	_, err := Route("mkv")
	require.Error(t, err)
}

func TestOutputExtAndFormatInfo(t *testing.T) {
	require.Equal(t, "mp3", OutputExt(TargetCopy, "mp3"))
	require.Equal(t, "m4a", OutputExt(TargetALAC, "flac"))
	require.Equal(t, "m4a", OutputExt(TargetAAC, "ogg"))

	require.Equal(t, "mp3", FormatInfo(TargetCopy, "mp3", 192))
	require.Equal(t, "alac", FormatInfo(TargetALAC, "flac", 192))
	require.Equal(t, "aac@160", FormatInfo(TargetAAC, "ogg", 160))
}

func TestCacheKeyIncludesBitrateOnlyForAAC(t *testing.T) {
	require.Equal(t, "FP:alac", CacheKey("FP", TargetALAC, 192))
	require.Equal(t, "FP:aac:192", CacheKey("FP", TargetAAC, 192))
	require.NotEqual(t, CacheKey("FP", TargetAAC, 128), CacheKey("FP", TargetAAC, 256))
}

func TestPrepareCopyReturnsSource(t *testing.T) {
	e := &Engine{}
	src := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	path, target, err := e.Prepare(context.Background(), src, "mp3", "FP")
	require.NoError(t, err)
	require.Equal(t, TargetCopy, target)
	require.Equal(t, src, path)
}

func TestCacheLifecycle(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	key := CacheKey("FP", TargetALAC, 0)
	_, ok := cache.Lookup(key)
	require.False(t, ok)

	out := cache.Reserve(key, "m4a")
	require.NoError(t, os.WriteFile(out, []byte("alac bytes"), 0o644))
	require.NoError(t, cache.Commit(key, "FP", out))

	got, ok := cache.Lookup(key)
	require.True(t, ok)
	require.Equal(t, out, got)

	require.NoError(t, cache.Invalidate("FP"))
	_, ok = cache.Lookup(key)
	require.False(t, ok)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestCacheLookupDropsStaleRows(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	key := CacheKey("FP", TargetAAC, 192)
	out := cache.Reserve(key, "m4a")
	require.NoError(t, os.WriteFile(out, []byte("aac"), 0o644))
	require.NoError(t, cache.Commit(key, "FP", out))

	require.NoError(t, os.Remove(out))
	_, ok := cache.Lookup(key)
	require.False(t, ok, "entry whose file vanished must miss")
}
