package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
)

type ExecutionConfig struct {
	ExecutablePath string

	// Argv0 replaces argv[0] so the process shows under a chosen name in
	// the process list; empty means ExecutablePath
	Argv0            string
	Args             []string
	Environment      map[string]string
	WorkingDirectory string

	// Output receives both stdout and stderr; nil discards them
	Output *os.File
}

// Start launches a detached process in its own process group and returns its
// PID without waiting for it. The child is reaped in the background.
func Start(execution ExecutionConfig, id string, logger logging.Logger) (int, error) {
	if execution.ExecutablePath != "" && !strings.Contains(execution.ExecutablePath, "/") {
		if path, err := exec.LookPath(execution.ExecutablePath); err == nil {
			execution.ExecutablePath = path
		}
	}
	if err := ValidateExecutionConfig(execution); err != nil {
		logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
		return 0, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	argv0 := execution.Argv0
	if argv0 == "" {
		argv0 = execution.ExecutablePath
	}

	cmd := &exec.Cmd{
		Path: execution.ExecutablePath,
		Args: append([]string{argv0}, execution.Args...),
		Dir:  execution.WorkingDirectory,
		Env:  buildEnvironment(execution.Environment),
	}
	if execution.Output != nil {
		cmd.Stdout = execution.Output
		cmd.Stderr = execution.Output
	}

	// Platform-specific setup is handled in execute_unix.go
	setupProcessAttributes(cmd)

	logger.Debugf("Executing process, id: %s, executable path: '%s', argv0: '%s', args: %v, working directory: '%s'",
		id, execution.ExecutablePath, argv0, execution.Args, execution.WorkingDirectory)

	if err := cmd.Start(); err != nil {
		logger.Errorf("Failed to start process, id: %s, executable path: %s, error: %v", id, execution.ExecutablePath, err)
		return 0, errors.NewProcessError("failed to start the process", err).
			WithContext("id", id).
			WithContext("executable_path", execution.ExecutablePath)
	}

	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
	}()

	logger.Infof("Successfully executed process, id: %s, PID: %d", id, pid)
	return pid, nil
}

// RunShell runs command through /bin/sh and waits for it. A non-zero exit
// is reported through the exit code, not the error.
func RunShell(command string, environment map[string]string, output io.Writer, logger logging.Logger) (int, error) {
	if command == "" {
		return 0, errors.NewValidationError("shell command cannot be empty", nil)
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = buildEnvironment(environment)
	cmd.Stdout = output
	cmd.Stderr = output

	logger.Debugf("Running shell command, command: %s", command)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		logger.Warnf("Shell command failed, command: %s, exit code: %d", command, exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	return -1, errors.NewProcessError("failed to run shell command", err).WithContext("command", command)
}

// buildEnvironment layers extra on top of the invoking environment, in key
// order so the result is stable
func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, extra[key]))
	}
	return env
}
