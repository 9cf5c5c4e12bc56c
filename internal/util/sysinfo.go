// sysinfo.go resolves host-dependent defaults: the parallelism used when
// the caller did not pass --threads, and the executable bit on the linker's
// output. Grounded on the pack's use of golang.org/x/sys for low-level
// host queries (orizon-lang's go.mod carries the same dependency for its
// own platform glue).
package util

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// DefaultThreads returns a sensible default for Options.Threads: the
// number of logical CPUs, at least 1. It is not capped by the number of
// functions to compile.
func DefaultThreads() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// MarkExecutable sets the executable bit on path, as the linker stage
// would after gcc succeeds. Uses unix.Chmod directly rather than
// os.Chmod so the mode bits are ORed onto whatever umask-derived mode
// the linker already produced, instead of being clobbered.
func MarkExecutable(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	mode := st.Mode | unix.S_IXUSR | unix.S_IXGRP | unix.S_IXOTH
	return unix.Chmod(path, mode)
}

// TempFile creates a scratch file in dir (or the OS default if dir is
// empty) with the given name pattern, used to stage preprocessor and
// assembler intermediates between sub-process stages.
func TempFile(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}
