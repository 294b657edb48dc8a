// file: internal/deviceio/space_unix.go
// version: 1.0.0
// guid: 7a8b9c0d-1e2f-4a3b-4c5d-6e7f8a9b0c1d

//go:build !windows

package deviceio

import "golang.org/x/sys/unix"

// FreeBytes reports the free space on the filesystem holding the device root.
func (d *Device) FreeBytes() (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(d.Root, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
