package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// lockFile takes an exclusive flock on the given path, creating it if
// needed, and returns an unlock function. Cycles mutate the tracker
// record with a plain read-modify-write, so only one cycle may run at a
// time even across processes.
func lockFile(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}

	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
