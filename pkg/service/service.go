// Package service runs one platform service as an OS process identified only
// by its PID file. State is never cached: every operation resolves the
// instance again from the PID file and the process table.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-platform/pkg/config"
	"github.com/core-tools/hsu-platform/pkg/console"
	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/processfile"
	"github.com/core-tools/hsu-platform/pkg/processstate"
	"github.com/core-tools/hsu-platform/pkg/template"
)

// Properties read for every service and globally
const (
	StdoutSuffix   = ".stdout"
	PrioritySuffix = ".priority"
	SnapCmdSuffix  = ".snap_cmd"

	PIDFileDirKey           = "main.pidfile_dir"
	StartWaitSecondsKey     = "main.start_wait_seconds"
	KillOnCorruptPIDFileKey = "main.kill_on_corrupt_pidfile"
)

const timestampLayout = "2006-01-02 15:04:05"

type Options struct {
	Inspector processstate.Inspector
	Console   *console.Printer

	// Sleep and LockWaitIntervals default to time.Sleep and the filelock
	// schedule
	Sleep             func(time.Duration)
	LockWaitIntervals []time.Duration
	Now               func() time.Time
}

// Service is a Spec with every template assigned from the active values
type Service struct {
	spec   *Spec
	values map[string]string

	startCmd    []string
	stopCmd     []string
	gracefulCmd []string
	env         map[string]string
	cwd         string

	stdout           string
	priority         int
	enabled          bool
	pidFile          string
	externalPIDFile  string
	externalProcName string
	snapCmd          string
	startWaitSeconds int
	killOnCorrupt    bool

	afterStopCmdSeconds int
	afterSigtermSeconds int
	afterSigkillSeconds int

	inspector         processstate.Inspector
	console           *console.Printer
	sleep             func(time.Duration)
	lockWaitIntervals []time.Duration
	now               func() time.Time
	logger            logging.Logger
}

// New validates spec and renders its templates against values. Keys named
// by the spec's runtime key functions are added first when missing.
func New(spec *Spec, values map[string]string, options Options, logger logging.Logger) (*Service, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		spec:              spec,
		values:            make(map[string]string, len(values)+len(spec.RuntimeKeys)),
		inspector:         options.Inspector,
		console:           options.Console,
		sleep:             options.Sleep,
		lockWaitIntervals: options.LockWaitIntervals,
		now:               options.Now,
		logger:            logger,
	}
	if s.inspector == nil {
		s.inspector = processstate.NewInspector(logger)
	}
	if s.console == nil {
		s.console = console.New(os.Stdout)
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.now == nil {
		s.now = time.Now
	}

	for key, value := range values {
		s.values[key] = value
	}
	if err := s.addRuntimeKeys(); err != nil {
		return nil, err
	}
	if err := s.assign(); err != nil {
		return nil, err
	}

	logger.Debugf("Service assigned, name: %s, priority: %d, enabled: %t, start: %v",
		spec.Name, s.priority, s.enabled, s.startCmd)
	return s, nil
}

func (s *Service) addRuntimeKeys() error {
	keys := make([]string, 0, len(s.spec.RuntimeKeys))
	for key := range s.spec.RuntimeKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, ok := s.values[key]; ok || strings.Contains(key, template.DotMarker) || strings.Contains(key, " ") {
			continue
		}
		snapshot := make(map[string]string, len(s.values))
		for k, v := range s.values {
			snapshot[k] = v
		}
		value, err := s.spec.RuntimeKeys[key](snapshot)
		if err != nil {
			return errors.NewInvalidServiceConfigError(fmt.Sprintf("%s: cannot compute %s", s.spec.Name, key), err).
				WithContext("service", s.spec.Name).
				WithContext("key", key)
		}
		s.values[key] = value
	}
	return nil
}

func (s *Service) assign() error {
	name := s.spec.Name
	renderer := template.NewRenderer(s.values)

	var err error
	if s.startCmd, err = renderer.RenderCommand(s.spec.StartCmd); err != nil {
		return s.configError("start command", err)
	}
	if len(s.startCmd) == 0 {
		return s.configError("start command", errors.NewValidationError("start command renders empty", nil))
	}
	if s.stopCmd, err = renderer.RenderCommand(s.spec.StopCmd); err != nil {
		return s.configError("stop command", err)
	}
	if s.gracefulCmd, err = renderer.RenderCommand(s.spec.GracefulCmd); err != nil {
		return s.configError("graceful command", err)
	}

	s.env = make(map[string]string, len(s.spec.Env))
	for key, tmpl := range s.spec.Env {
		if s.env[key], err = renderer.Render(tmpl); err != nil {
			return s.configError("environment "+key, err)
		}
	}

	if s.spec.CwdKey != "" {
		if s.cwd, err = s.require(s.spec.CwdKey); err != nil {
			return err
		}
	}
	if s.stdout, err = s.require(name + StdoutSuffix); err != nil {
		return err
	}
	if s.priority, err = s.requireInt(name + PrioritySuffix); err != nil {
		return err
	}
	pidDir, err := s.require(PIDFileDirKey)
	if err != nil {
		return err
	}
	s.pidFile = processfile.PathFor(pidDir, name)
	if s.startWaitSeconds, err = s.requireInt(StartWaitSecondsKey); err != nil {
		return err
	}

	s.enabled = config.ParseBool(s.values[name+config.EnabledSuffix])
	s.snapCmd = s.values[name+SnapCmdSuffix]
	s.killOnCorrupt = config.ParseBool(s.values[KillOnCorruptPIDFileKey])

	if s.spec.ExternalPIDFileKey != "" {
		if s.externalPIDFile, err = s.require(s.spec.ExternalPIDFileKey); err != nil {
			return err
		}
	}
	if s.spec.ExternalProcNameKey != "" {
		if s.externalProcName, err = s.require(s.spec.ExternalProcNameKey); err != nil {
			return err
		}
	}

	if s.afterStopCmdSeconds, err = renderer.ResolveInt(waitOrDefault(s.spec.AfterStopCmdSeconds)); err != nil {
		return s.configError("stop command wait", err)
	}
	if s.afterSigtermSeconds, err = renderer.ResolveInt(waitOrDefault(s.spec.AfterSigtermSeconds)); err != nil {
		return s.configError("SIGTERM wait", err)
	}
	if s.afterSigkillSeconds, err = renderer.ResolveInt(waitOrDefault(s.spec.AfterSigkillSeconds)); err != nil {
		return s.configError("SIGKILL wait", err)
	}
	return nil
}

func (s *Service) require(key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", errors.NewInvalidServiceConfigError(fmt.Sprintf("%s: property %s is not set", s.spec.Name, key), nil).
			WithContext("service", s.spec.Name).
			WithContext("key", key)
	}
	return value, nil
}

func (s *Service) requireInt(key string) (int, error) {
	value, err := s.require(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.NewInvalidServiceConfigError(
			fmt.Sprintf("%s: property %s must be a whole number, got %q", s.spec.Name, key, value), err).
			WithContext("service", s.spec.Name).
			WithContext("key", key)
	}
	return n, nil
}

func (s *Service) configError(what string, err error) error {
	return errors.NewInvalidServiceConfigError(fmt.Sprintf("%s: invalid %s", s.spec.Name, what), err).
		WithContext("service", s.spec.Name)
}

func (s *Service) Name() string {
	return s.spec.Name
}

func (s *Service) Priority() int {
	return s.priority
}

func (s *Service) Enabled() bool {
	return s.enabled
}

// StdoutPath is the log file receiving the process output and lifecycle lines
func (s *Service) StdoutPath() string {
	return s.stdout
}

// PIDFilePath is the file identifying the instance: the external one when
// the service manages its own
func (s *Service) PIDFilePath() string {
	if s.externalPIDFile != "" {
		return s.externalPIDFile
	}
	return s.pidFile
}

// ProcessName is the argv[0] an instance must carry
func (s *Service) ProcessName() string {
	if s.externalProcName != "" {
		return s.externalProcName
	}
	return s.spec.ProcessName
}

func (s *Service) externallyManaged() bool {
	return s.externalPIDFile != ""
}

// StartCommand is the rendered start command
func (s *Service) StartCommand() []string {
	return s.startCmd
}

// Findings runs the setup validations and returns every non-empty finding
func (s *Service) Findings() []string {
	var findings []string
	for _, validate := range s.spec.Validations {
		if finding := validate(s.copyValues()); finding != "" {
			findings = append(findings, finding)
		}
	}
	return findings
}

func (s *Service) copyValues() map[string]string {
	values := make(map[string]string, len(s.values))
	for key, value := range s.values {
		values[key] = value
	}
	return values
}

func (s *Service) timestamp() string {
	return s.now().Format(timestampLayout)
}

// openLog opens the service stdout file for appending, creating its
// directory when missing
func (s *Service) openLog() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.stdout), 0o755); err != nil {
		return nil, errors.NewIOError("cannot create log directory", err).WithContext("stdout", s.stdout)
	}
	file, err := os.OpenFile(s.stdout, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.NewIOError("cannot open service log", err).WithContext("stdout", s.stdout)
	}
	return file, nil
}

func (s *Service) logLine(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "[%s] %s %s\n", s.timestamp(), s.spec.CLIName, fmt.Sprintf(format, args...))
}
