package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/process"
)

// Report is the status of one service at one moment
type Report struct {
	Name    string
	Running bool
	PID     int
	Enabled bool

	// Listening is only filled for verbose reports of running services
	Listening []string
}

// String formats the report as a fixed-width status row
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s", r.Name)
	if r.Running {
		fmt.Fprintf(&b, "running%-17s", fmt.Sprintf("=%d", r.PID))
	} else {
		fmt.Fprintf(&b, "stopped%-17s", "")
	}
	if r.Enabled {
		fmt.Fprintf(&b, "%-10s", "enabled")
	} else {
		fmt.Fprintf(&b, "%-10s", "disabled")
	}
	if r.Listening != nil {
		fmt.Fprintf(&b, "listening=%s", strings.Join(r.Listening, ","))
	}
	return b.String()
}

// Status resolves the instance without taking the lock or cleaning up
func (s *Service) Status(verbose bool) (*Report, error) {
	report := &Report{
		Name:    s.spec.Name,
		Enabled: s.enabled,
	}

	handle, err := s.resolve(false)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return report, nil
	}

	report.Running = true
	report.PID = handle.PID
	if verbose {
		listening, err := s.inspector.ListeningAddresses(handle.PID)
		if err != nil {
			s.logger.Warnf("Cannot list listening addresses, service: %s, pid: %d, error: %v", s.spec.Name, handle.PID, err)
		}
		report.Listening = append([]string{}, listening...)
	}
	return report, nil
}

// Snapshot runs the snapshot command of a live instance through the shell
// with PID in its environment, appending a header and its output to out. A
// failing command is reported in out, not returned.
func (s *Service) Snapshot(iteration int, out io.Writer) error {
	name := s.spec.Name
	if s.snapCmd == "" {
		return nil
	}

	handle, err := s.resolve(false)
	if err != nil {
		return err
	}
	if handle == nil || handle.Zombie {
		s.logger.Debugf("No live instance to snapshot, service: %s", name)
		return nil
	}
	pid := handle.PID

	return s.lockedDo(func() error {
		fmt.Fprintf(out, "[%s] Snapshot #%d for %s. Running: %s. Environment: PID=%d\n",
			s.timestamp(), iteration, name, s.snapCmd, pid)

		code, err := process.RunShell(s.snapCmd, map[string]string{"PID": fmt.Sprint(pid)}, out, s.logger)
		if err != nil {
			return err
		}
		if code != 0 {
			fmt.Fprintf(out, "Snapshot #%d for %s failed. Process %d may be hung.\n", iteration, name, pid)
		}
		return nil
	})
}
