// file: internal/organizer/reflink_unix.go
// version: 2.0.0
// guid: 6f7a8b9c-0d1e-2f3a-4b5c-6d7e8f9a0b1c

//go:build darwin || linux

package organizer

import (
	"fmt"
	"os"
	"syscall"
)

// reflinkFilePlatform attempts a copy-on-write clone of src at dst. Only
// worthwhile on CoW filesystems; callers fall back to a plain copy.
func (p *Placer) reflinkFilePlatform(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("organizer: opening source: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("organizer: creating destination: %w", err)
	}
	defer dstFile.Close()

	const ficlone = 0x40049409
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, dstFile.Fd(), ficlone, srcFile.Fd())
	if errno != 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("organizer: reflink not supported (errno %v)", errno)
	}
	return nil
}
