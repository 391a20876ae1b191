package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/filelock"
	"github.com/core-tools/hsu-platform/pkg/process"
	"github.com/core-tools/hsu-platform/pkg/processfile"
	"github.com/core-tools/hsu-platform/pkg/processstate"
)

const pollInterval = time.Second

func (s *Service) lock(noop bool) *filelock.ProtectedPath {
	return filelock.New(s.PIDFilePath(), filelock.Options{
		Noop:          noop,
		WaitIntervals: s.lockWaitIntervals,
		Sleep:         s.sleep,
	}, s.logger)
}

// lockedDo runs fn under the PID file lock, creating the PID file directory
// first so the lock directory can be made next to it
func (s *Service) lockedDo(fn func() error) error {
	if err := processfile.EnsureDirectory(s.PIDFilePath()); err != nil {
		return err
	}
	return s.lock(false).Do(fn)
}

// resolve finds the running instance. With cleanup, stale and corrupt PID
// files are deleted under a real lock; without it nothing is touched.
func (s *Service) resolve(cleanup bool) (*processstate.Handle, error) {
	var handle *processstate.Handle
	find := func() error {
		var err error
		handle, err = s.findInstance(cleanup)
		return err
	}

	if cleanup {
		if err := s.lockedDo(find); err != nil {
			return nil, err
		}
		return handle, nil
	}
	if err := s.lock(true).Do(find); err != nil {
		return nil, err
	}
	return handle, nil
}

func (s *Service) findInstance(cleanup bool) (*processstate.Handle, error) {
	pidFile := processfile.New(s.PIDFilePath(), s.logger)

	pid, err := pidFile.Read()
	if err != nil {
		switch {
		case errors.IsNotFoundError(err):
			return nil, nil
		case errors.IsValidationError(err):
			if cleanup {
				s.handleCorruptPIDFile(pidFile)
			}
			return nil, nil
		default:
			return nil, err
		}
	}

	handle, err := s.inspector.Inspect(pid)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			return nil, err
		}
		s.logger.Infof("Stale PID file, service: %s, pid: %d, path: %s", s.spec.Name, pid, pidFile.Path())
		if cleanup {
			s.removeStale(pidFile)
		}
		return nil, nil
	}

	username, err := s.inspector.CurrentUser()
	if err != nil {
		return nil, err
	}
	if !handle.Matches(username, s.ProcessName()) {
		s.logger.Warnf("PID file names a foreign process, service: %s, pid: %d, user: %s, argv0: %s",
			s.spec.Name, pid, handle.Username, handle.Argv0)
		if cleanup {
			s.removeStale(pidFile)
		}
		return nil, nil
	}
	return handle, nil
}

func (s *Service) handleCorruptPIDFile(pidFile *processfile.PIDFile) {
	if s.killOnCorrupt {
		pids, err := s.inspector.FindByName(s.ProcessName())
		if err != nil {
			s.logger.Warnf("Cannot scan processes for corrupt PID file, service: %s, error: %v", s.spec.Name, err)
		}
		for _, pid := range pids {
			s.logger.Warnf("Killing process named after corrupt PID file, service: %s, pid: %d", s.spec.Name, pid)
			if err := process.SendKillSignal(pid); err != nil {
				s.logger.Warnf("Failed to kill process, pid: %d, error: %v", pid, err)
			}
		}
	}
	s.removeStale(pidFile)
}

func (s *Service) removeStale(pidFile *processfile.PIDFile) {
	if err := pidFile.Remove(); err != nil {
		s.logger.Warnf("Failed to remove stale PID file, service: %s, error: %v", s.spec.Name, err)
	}
}

// alive reports whether pid is still a live, non-zombie process. Lookup
// failures count as alive.
func (s *Service) alive(pid int) bool {
	alive, err := s.inspector.Alive(pid)
	if err != nil {
		s.logger.Warnf("Cannot check process, pid: %d, error: %v", pid, err)
		return true
	}
	return alive
}

// waitDots polls once per second for up to seconds, printing a dot per tick.
// It returns true as soon as the process is gone.
func (s *Service) waitDots(seconds int, pid int) bool {
	for i := 0; i < seconds; i++ {
		if !s.alive(pid) {
			return true
		}
		s.console.Printf(".")
		s.sleep(pollInterval)
	}
	return !s.alive(pid)
}

// Start launches the service unless an instance is already running, then
// verifies that the instance survived the start wait.
func (s *Service) Start() error {
	name := s.spec.Name

	running, err := s.resolve(true)
	if err != nil {
		return err
	}
	if running != nil {
		s.console.Println("%s is already running.", name)
		return nil
	}

	logFile, err := s.openLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	var pid int
	err = s.lockedDo(func() error {
		s.console.Printf("Starting %s", name)
		for _, hook := range s.spec.PreStart {
			if err := hook(s.copyValues()); err != nil {
				return errors.NewProcessError(fmt.Sprintf("%s: pre-start step failed", name), err).
					WithContext("service", name)
			}
		}

		s.logLine(logFile, "starting %s:\n%s", name, strings.Join(s.startCmd, " "))

		pid, err = process.Start(process.ExecutionConfig{
			ExecutablePath:   s.startCmd[0],
			Argv0:            s.spec.ProcessName,
			Args:             s.startCmd[1:],
			Environment:      s.env,
			WorkingDirectory: s.cwd,
			Output:           logFile,
		}, name, s.logger)
		if err != nil {
			return err
		}

		if !s.externallyManaged() {
			return processfile.New(s.pidFile, s.logger).Write(pid)
		}
		return nil
	})
	if err != nil {
		s.console.Failure(" failed: %v", err)
		return err
	}

	for i := 0; i < s.startWaitSeconds; i++ {
		s.console.Printf(".")
		s.sleep(pollInterval)
	}

	started, err := s.resolve(true)
	if err != nil {
		return err
	}
	if started != nil && !started.Zombie {
		s.console.Success("process started.")
		s.logLine(logFile, "started process (%d)", pid)
		s.logger.Infof("Service started, name: %s, pid: %d", name, pid)
		return nil
	}

	s.console.Failure("no process found. See logs: %s", s.stdout)
	s.logLine(logFile, "no process found after startup")
	return errors.NewStartVerificationError(fmt.Sprintf("%s: no process found after startup", name), nil).
		WithContext("service", name).
		WithContext("pid", pid).
		WithContext("stdout", s.stdout)
}

// Stop escalates through whichever of the stop command, SIGTERM and SIGKILL
// are configured, waiting after each stage.
func (s *Service) Stop() error {
	name := s.spec.Name

	running, err := s.resolve(true)
	if err != nil {
		return err
	}
	if running == nil {
		return nil
	}
	pid := running.PID

	logFile, err := s.openLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	s.console.Printf("Stopping %s: ", name)
	return s.lockedDo(func() error {
		stopped := false

		if len(s.stopCmd) > 0 {
			s.console.Printf("running stop command")
			s.logLine(logFile, "stopping %s:\n%s", name, strings.Join(s.stopCmd, " "))
			if _, err := process.Start(process.ExecutionConfig{
				ExecutablePath:   s.stopCmd[0],
				Args:             s.stopCmd[1:],
				Environment:      s.env,
				WorkingDirectory: s.cwd,
				Output:           logFile,
			}, name+"-stop", s.logger); err != nil {
				s.logger.Warnf("Stop command failed to start, service: %s, error: %v", name, err)
				s.logLine(logFile, "stop command failed: %v", err)
			}
			stopped = s.waitDots(s.afterStopCmdSeconds, pid)
		}

		if s.spec.RunSigterm && !stopped {
			s.console.Printf("sending SIGTERM")
			s.logLine(logFile, "sending SIGTERM to %s", name)
			if err := process.SendTerminationSignal(pid); err != nil {
				s.logger.Warnf("Failed to send SIGTERM, service: %s, pid: %d, error: %v", name, pid, err)
			}
			stopped = s.waitDots(s.afterSigtermSeconds, pid)
		}

		if s.spec.RunSigkill && !stopped {
			s.console.Printf("sending SIGKILL")
			s.logLine(logFile, "sending SIGKILL to %s", name)
			if err := process.SendKillSignal(pid); err != nil {
				s.logger.Warnf("Failed to send SIGKILL, service: %s, pid: %d, error: %v", name, pid, err)
			}
			stopped = s.waitDots(s.afterSigkillSeconds, pid)
		}

		if !stopped {
			s.console.Failure("process still running (%d).", pid)
			s.logLine(logFile, "process still running(%d)", pid)
			return errors.NewStopTimeoutError(fmt.Sprintf("%s: process still running (%d)", name, pid), nil).
				WithContext("service", name).
				WithContext("pid", pid).
				WithContext("stdout", s.stdout)
		}

		if !s.externallyManaged() {
			if err := processfile.New(s.pidFile, s.logger).Remove(); err != nil {
				return err
			}
		}
		s.console.Success("stopped")
		s.logLine(logFile, "stopped process (%d)", pid)
		s.logger.Infof("Service stopped, name: %s, pid: %d", name, pid)
		return nil
	})
}

// Graceful runs the graceful command against a running instance without
// waiting for it
func (s *Service) Graceful() error {
	name := s.spec.Name

	if len(s.gracefulCmd) == 0 {
		s.console.Println("%s does not support graceful restart, skipping.", name)
		return nil
	}

	running, err := s.resolve(true)
	if err != nil {
		return err
	}
	if running == nil {
		s.console.Println("%s is not running, skipping graceful restart.", name)
		return nil
	}

	logFile, err := s.openLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	return s.lockedDo(func() error {
		s.console.Println("Gracefully restarting %s with:\n%s", name, strings.Join(s.gracefulCmd, " "))
		for _, hook := range s.spec.PreGraceful {
			if err := hook(s.copyValues()); err != nil {
				return errors.NewProcessError(fmt.Sprintf("%s: pre-graceful step failed", name), err).
					WithContext("service", name)
			}
		}
		s.logLine(logFile, "gracefully restarting %s:\n%s", name, strings.Join(s.gracefulCmd, " "))
		_, err := process.Start(process.ExecutionConfig{
			ExecutablePath:   s.gracefulCmd[0],
			Args:             s.gracefulCmd[1:],
			Environment:      s.env,
			WorkingDirectory: s.cwd,
			Output:           logFile,
		}, name+"-graceful", s.logger)
		return err
	})
}
