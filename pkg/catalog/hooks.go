package catalog

import (
	"fmt"
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/process"
	"github.com/core-tools/hsu-platform/pkg/service"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Built-in setup validations. Each returns a finding naming the property to
// fix, or "" when satisfied.
var validations = map[string]func(HookConfig) service.Validation{
	"dir_exists": func(hook HookConfig) service.Validation {
		return pathCheck(hook, "Directory %s (%s) does not exist.", func(info os.FileInfo) bool {
			return info.IsDir()
		})
	},
	"file_exists": func(hook HookConfig) service.Validation {
		return pathCheck(hook, "File %s (%s) does not exist.", func(info os.FileInfo) bool {
			return info.Mode().IsRegular()
		})
	},
	"executable": func(hook HookConfig) service.Validation {
		return func(values map[string]string) string {
			path, ok := values[hook.Key]
			if !ok {
				return fmt.Sprintf("Property %s is not set.", hook.Key)
			}
			if process.IsExecutable(path) {
				return ""
			}
			return finding(hook, fmt.Sprintf("%s (%s) is not an executable file.", path, hook.Key))
		}
	},
}

func pathCheck(hook HookConfig, format string, ok func(os.FileInfo) bool) service.Validation {
	return func(values map[string]string) string {
		path, set := values[hook.Key]
		if !set {
			return fmt.Sprintf("Property %s is not set.", hook.Key)
		}
		if info, err := os.Stat(path); err == nil && ok(info) {
			return ""
		}
		return finding(hook, fmt.Sprintf(format, path, hook.Key))
	}
}

func finding(hook HookConfig, fallback string) string {
	if hook.Message != "" {
		return hook.Message
	}
	return fallback
}

// Built-in pre-start and pre-graceful actions
var actions = map[string]func(HookConfig) service.Hook{
	"mkdir": func(hook HookConfig) service.Hook {
		return func(values map[string]string) error {
			path := values[hook.Key]
			if path == "" {
				return errors.NewValidationError("mkdir: property is empty", nil).WithContext("key", hook.Key)
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errors.NewIOError("mkdir failed", err).WithContext("path", path)
			}
			return nil
		}
	},
	"remove_file": func(hook HookConfig) service.Hook {
		return func(values map[string]string) error {
			path := values[hook.Key]
			if path == "" {
				return errors.NewValidationError("remove_file: property is empty", nil).WithContext("key", hook.Key)
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.NewIOError("remove failed", err).WithContext("path", path)
			}
			return nil
		}
	},
}

// Built-in runtime key functions
var runtimeKeys = map[string]service.RuntimeKey{
	"hostname": func(map[string]string) (string, error) {
		return os.Hostname()
	},
	"username": func(map[string]string) (string, error) {
		current, err := user.Current()
		if err != nil {
			return "", err
		}
		return current.Username, nil
	},
	"num_cpu": func(map[string]string) (string, error) {
		count, err := cpu.Counts(true)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(count), nil
	},
}

func unknownHook[V any](kind, name string, known map[string]V) *errors.DomainError {
	names := make([]string, 0, len(known))
	for n := range known {
		names = append(names, n)
	}
	sort.Strings(names)
	return errors.NewValidationError(fmt.Sprintf("unknown %s: %q", kind, name), nil).
		WithContext("supported", strings.Join(names, ", "))
}
