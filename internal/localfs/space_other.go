//go:build !unix && !windows

package localfs

// AvailableSpace is unknown on this platform.
func AvailableSpace(dir string) int64 {
	return 0
}
