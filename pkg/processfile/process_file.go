package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
)

const Extension = ".pid"

// PathFor returns the PID file of a service under dir
func PathFor(dir, service string) string {
	return filepath.Join(dir, service+Extension)
}

// PIDFile is the only durable record of a running service instance
type PIDFile struct {
	path   string
	logger logging.Logger
}

func New(path string, logger logging.Logger) *PIDFile {
	return &PIDFile{
		path:   path,
		logger: logger,
	}
}

func (f *PIDFile) Path() string {
	return f.path
}

// Read returns the recorded PID. A missing file is a not-found error, an
// unparsable one a validation error.
func (f *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("PID file does not exist", err).WithContext("pid_file", f.path)
		}
		f.logger.Warnf("Failed to read PID file, path: %s, error: %v", f.path, err)
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", f.path)
	}

	pid, err := ParsePID(string(content))
	if err != nil {
		f.logger.Warnf("Corrupt PID file, path: %s, content: %q", f.path, string(content))
		return 0, err.(*errors.DomainError).WithContext("pid_file", f.path)
	}

	f.logger.Debugf("PID file read, pid: %d, path: %s", pid, f.path)
	return pid, nil
}

// Write records pid, creating the directory when missing
func (f *PIDFile) Write(pid int) error {
	f.logger.Debugf("Writing PID file, pid: %d, path: %s", pid, f.path)

	if err := EnsureDirectory(f.path); err != nil {
		f.logger.Errorf("PID file directory validation failed, path: %s, error: %v", f.path, err)
		return err
	}

	if err := os.WriteFile(f.path, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		f.logger.Errorf("Failed to write PID file, pid: %d, path: %s, error: %v", pid, f.path, err)
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", f.path).WithContext("pid", pid)
	}

	f.logger.Infof("PID file written, pid: %d, path: %s", pid, f.path)
	return nil
}

// Remove deletes the file; a missing file is not an error
func (f *PIDFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.logger.Errorf("Failed to remove PID file, path: %s, error: %v", f.path, err)
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", f.path)
	}
	f.logger.Debugf("PID file removed, path: %s", f.path)
	return nil
}

// ParsePID parses PID file content
func ParsePID(content string) (int, error) {
	pidStr := strings.TrimSpace(content)
	if pidStr == "" {
		return 0, errors.NewValidationError("PID cannot be empty", nil)
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, errors.NewValidationError("invalid PID format: "+pidStr, err)
	}

	if pid <= 0 {
		return 0, errors.NewValidationError("PID must be positive: "+pidStr, nil)
	}

	return pid, nil
}

// EnsureDirectory makes sure the directory holding path exists and is a
// directory
func EnsureDirectory(path string) error {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.NewIOError("failed to access PID file directory", err).WithContext("directory", dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewIOError("failed to create PID file directory", err).WithContext("directory", dir)
		}
		return nil
	}
	if !info.IsDir() {
		return errors.NewValidationError("PID file parent is not a directory", nil).WithContext("path", dir)
	}
	return nil
}
