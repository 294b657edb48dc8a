// file: internal/transcode/transcode.go
// version: 1.0.0
// guid: 2f3a4b5c-6d7e-4f8a-9b0c-1d2e3f4a5b6c

// Package transcode routes PC audio files to the device: formats the
// device plays natively are copied as-is, everything else goes through an
// external transcoder into an ALAC or AAC container, with outputs cached
// by fingerprint so re-syncs and renamed files never transcode twice.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/TheRealSavi/iOpenPod/internal/syncerr"
)

// Target is what happens to a source file on its way to the device.
type Target int

const (
	// TargetCopy files are bit-identical on the device.
	TargetCopy Target = iota
	// TargetALAC sources are lossless; transcode to an ALAC .m4a.
	TargetALAC
	// TargetAAC sources are lossy in a container the device can't play;
	// transcode to AAC at the configured bitrate.
	TargetAAC
)

// DefaultTimeout bounds one transcoder invocation.
const DefaultTimeout = 10 * time.Minute

// Route decides the target for a source file extension (lowercase, no dot).
func Route(ext string) (Target, error) {
	switch ext {
	case "mp3", "m4a", "m4b", "aac":
		return TargetCopy, nil
	case "flac", "wav", "aif", "aiff":
		return TargetALAC, nil
	case "ogg", "opus", "wma":
		return TargetAAC, nil
	default:
		return TargetCopy, fmt.Errorf("transcode: no route for .%s files", ext)
	}
}

// OutputExt returns the device-side file extension for a routed source.
func OutputExt(target Target, srcExt string) string {
	if target == TargetCopy {
		return srcExt
	}
	return "m4a"
}

// FormatInfo is the short format description stored in the mapping so a
// later sync can tell whether the on-device rendition is still the one
// this configuration would produce.
func FormatInfo(target Target, srcExt string, bitrateKbps int) string {
	switch target {
	case TargetALAC:
		return "alac"
	case TargetAAC:
		return fmt.Sprintf("aac@%d", bitrateKbps)
	default:
		return srcExt
	}
}

// Engine runs the external transcoder and consults the cache.
type Engine struct {
	// Binary is the transcoder executable; "ffmpeg" if empty.
	Binary string
	// BitrateKbps for AAC output.
	BitrateKbps int
	// Timeout per file; DefaultTimeout when zero.
	Timeout time.Duration
	// Cache may be nil, in which case every transcode runs fresh.
	Cache *Cache
}

// Prepare returns a local path holding the device-ready rendition of the
// source file: the source itself for copy targets, or a cached/freshly
// produced transcode otherwise.
func (e *Engine) Prepare(ctx context.Context, srcPath, srcExt, fingerprint string) (string, Target, error) {
	target, err := Route(srcExt)
	if err != nil {
		return "", target, syncerr.NewFile(syncerr.KindCopyFailed, srcPath, err)
	}
	if target == TargetCopy {
		return srcPath, target, nil
	}

	key := CacheKey(fingerprint, target, e.BitrateKbps)
	if e.Cache != nil {
		if cached, ok := e.Cache.Lookup(key); ok {
			return cached, target, nil
		}
	}

	outPath := ""
	if e.Cache != nil {
		outPath = e.Cache.Reserve(key, OutputExt(target, srcExt))
	} else {
		outPath = srcPath + ".transcode." + OutputExt(target, srcExt)
	}

	if err := e.run(ctx, srcPath, outPath, target); err != nil {
		return "", target, err
	}
	if e.Cache != nil {
		if err := e.Cache.Commit(key, fingerprint, outPath); err != nil {
			return "", target, syncerr.NewFile(syncerr.KindTranscodeFailed, srcPath, err)
		}
	}
	return outPath, target, nil
}

// Invalidate drops cached outputs for a fingerprint whose source changed.
func (e *Engine) Invalidate(fingerprint string) {
	if e.Cache != nil {
		_ = e.Cache.Invalidate(fingerprint)
	}
}

func (e *Engine) run(ctx context.Context, src, dst string, target Target) error {
	binary := e.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	timeout := e.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-y", "-i", src, "-vn"}
	switch target {
	case TargetALAC:
		args = append(args, "-c:a", "alac")
	case TargetAAC:
		bitrate := e.BitrateKbps
		if bitrate <= 0 {
			bitrate = 192
		}
		args = append(args, "-c:a", "aac", "-b:a", strconv.Itoa(bitrate)+"k")
	}
	args = append(args, dst)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return syncerr.NewFile(syncerr.KindTranscodeFailed, src,
			fmt.Errorf("transcode: %s: %w (%s)", binary, err, lastLine(stderr.String())))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
