//go:build unix

package localfs

import "golang.org/x/sys/unix"

// AvailableSpace returns the bytes available to unprivileged users on the
// filesystem holding dir, 0 if unknown.
func AvailableSpace(dir string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0
	}
	return int64(st.Bavail) * int64(st.Bsize)
}
