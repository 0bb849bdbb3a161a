//go:build !linux

package platform

import "os"

// AdviseSequential is a no-op where posix_fadvise is unavailable.
func AdviseSequential(_ *os.File) {}
