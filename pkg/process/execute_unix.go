//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes configures Unix-specific process attributes
func setupProcessAttributes(cmd *exec.Cmd) {
	// A separate process group keeps terminal signals aimed at the CLI away
	// from the services it started
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
