//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// AdviseSequential tells the kernel f will be read front to back once, which
// doubles readahead on most filesystems. The hint is advisory and errors are
// ignored.
//
//nolint:gosec // G115: fd values are small non-negative integers
func AdviseSequential(f *os.File) {
	//nolint:errcheck // fadvise is advisory; not supported on all filesystems
	unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
