//go:build !windows

package processstate

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IsProcessRunning probes pid with signal 0. A zombie still counts as running.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID %d", pid)
	}

	err := unix.Kill(pid, 0)
	switch err {
	case nil:
		return true, nil
	case unix.ESRCH:
		return false, nil
	case unix.EPERM:
		// exists, owned by someone else
		return true, nil
	}
	return false, err
}
