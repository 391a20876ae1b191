package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/errors"
)

// ValidateExecutionConfig validates execution configuration
func ValidateExecutionConfig(config ExecutionConfig) error {
	// Validate executable path
	if config.ExecutablePath == "" {
		return errors.NewValidationError("executable path is required", nil)
	}

	if !IsExecutable(config.ExecutablePath) {
		return errors.NewValidationError("executable not found: "+config.ExecutablePath, nil)
	}

	// Validate working directory if provided
	if config.WorkingDirectory != "" {
		if !filepath.IsAbs(config.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil)
		}

		if info, err := os.Stat(config.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+config.WorkingDirectory, err)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+config.WorkingDirectory, nil)
		}
	}

	// Validate environment variables
	for key := range config.Environment {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return errors.NewValidationError("invalid environment variable name: "+key, nil)
		}
	}

	return nil
}

// IsExecutable reports whether path is a regular file with an execute bit set
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode()&0o111 != 0
}
