package tabula

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lockDataFile takes an exclusive advisory lock on f, retrying at short
// intervals until acquired or timeout elapses (zero means wait forever).
// DatTable uses this to guard its own data file the way bbolt guards the
// sidecar index's file internally.
func lockDataFile(f *os.File, timeout time.Duration) error {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: waiting for lock on %s", ErrTimeout, f.Name())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func unlockDataFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
