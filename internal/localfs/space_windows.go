//go:build windows

package localfs

import "golang.org/x/sys/windows"

// AvailableSpace returns the bytes available to the current user on the
// volume holding dir, 0 if unknown.
func AvailableSpace(dir string) int64 {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0
	}
	return int64(free)
}
