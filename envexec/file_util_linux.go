package envexec

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const memfdName = "output"

var disableMemFd atomic.Bool

// newOutputFile returns an in memory file, or an unlinked temp file when
// memfd_create is not available
func newOutputFile() (*os.File, error) {
	if !disableMemFd.Load() {
		fd, err := unix.MemfdCreate(memfdName, unix.MFD_CLOEXEC)
		if err == nil {
			return os.NewFile(uintptr(fd), memfdName), nil
		}
		disableMemFd.Store(true)
	}
	return newTempOutputFile()
}
