// file: internal/deviceio/space_windows.go
// version: 1.0.0
// guid: 8b9c0d1e-2f3a-4b4c-5d6e-7f8a9b0c1d2e

//go:build windows

package deviceio

import "golang.org/x/sys/windows"

// FreeBytes reports the free space on the filesystem holding the device root.
func (d *Device) FreeBytes() (int64, error) {
	var free, total, totalFree uint64
	root, err := windows.UTF16PtrFromString(d.Root)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(root, &free, &total, &totalFree); err != nil {
		return 0, err
	}
	return int64(free), nil
}
