// file: internal/fingerprint/fingerprint.go
// version: 1.0.0
// guid: 0d1e2f3a-4b5c-4d6e-7f8a-9b0c1d2e3f4a

// Package fingerprint computes acoustic fingerprints by invoking the
// external fpcalc binary. The fingerprint, not the file path, is the
// primary key for track identity, so a rename or re-encode of a PC file
// still matches the track already on the device.
package fingerprint

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/TheRealSavi/iOpenPod/internal/cache"
	"github.com/TheRealSavi/iOpenPod/internal/syncerr"
)

// DefaultTimeout bounds one fpcalc invocation.
const DefaultTimeout = 60 * time.Second

// Computer runs fpcalc and memoizes results for the duration of a sync.
type Computer struct {
	// Binary is the fpcalc executable name or path.
	Binary string
	// Timeout per invocation; DefaultTimeout when zero.
	Timeout time.Duration

	results *cache.Cache[string]
}

// New returns a Computer using the given fpcalc binary ("fpcalc" if empty).
func New(binary string) *Computer {
	if binary == "" {
		binary = "fpcalc"
	}
	return &Computer{
		Binary:  binary,
		results: cache.New[string](time.Hour),
	}
}

// Preflight verifies the fingerprint binary can be found. Called once
// before the pipeline starts; a missing tool aborts the whole sync rather
// than failing file by file.
func (c *Computer) Preflight() error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return syncerr.New(syncerr.KindPreflightMissingTool,
			fmt.Errorf("fingerprint: %s not found: %w", c.Binary, err))
	}
	return nil
}

// Compute returns the raw fingerprint of the audio at path. Results are
// memoized by path and mtime so re-scans within one run don't re-invoke
// the child process.
func (c *Computer) Compute(ctx context.Context, path string) (string, error) {
	key := cacheKey(path)
	if fp, ok := c.results.Get(key); ok {
		return fp, nil
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, "-raw", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", syncerr.NewFile(syncerr.KindFingerprintFailed, path,
			fmt.Errorf("fingerprint: %s: %w (%s)", c.Binary, err, strings.TrimSpace(stderr.String())))
	}

	fp, err := parseOutput(stdout.Bytes())
	if err != nil {
		return "", syncerr.NewFile(syncerr.KindFingerprintFailed, path, err)
	}
	c.results.Set(key, fp)
	return fp, nil
}

func cacheKey(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return path + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}

// parseOutput finds the FINGERPRINT= line in fpcalc's stdout.
func parseOutput(out []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "FINGERPRINT="); ok && v != "" {
			return v, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("fingerprint: reading fpcalc output: %w", err)
	}
	return "", fmt.Errorf("fingerprint: no FINGERPRINT line in fpcalc output")
}
