//go:build !windows

package process

import (
	"golang.org/x/sys/unix"

	"github.com/core-tools/hsu-platform/pkg/errors"
)

// SendTerminationSignal sends SIGTERM to pid. A process that is already gone
// is not an error.
func SendTerminationSignal(pid int) error {
	return signal(pid, unix.SIGTERM)
}

// SendKillSignal sends SIGKILL to pid. A process that is already gone is not
// an error.
func SendKillSignal(pid int) error {
	return signal(pid, unix.SIGKILL)
}

func signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errors.NewValidationError("PID must be positive", nil).WithContext("pid", pid)
	}
	err := unix.Kill(pid, sig)
	if err == nil || err == unix.ESRCH {
		return nil
	}
	return errors.NewProcessError("failed to send "+unix.SignalName(sig), err).WithContext("pid", pid)
}
