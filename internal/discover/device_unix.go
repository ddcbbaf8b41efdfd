//go:build unix

package discover

import "golang.org/x/sys/unix"

// deviceID returns the id of the device holding path.
func deviceID(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Dev), true //nolint:unconvert // Dev is int32 on some platforms
}
