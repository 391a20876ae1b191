// Package supervisor sequences lifecycle operations over every configured
// service in priority order.
package supervisor

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/core-tools/hsu-platform/pkg/config"
	"github.com/core-tools/hsu-platform/pkg/console"
	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/process"
	"github.com/core-tools/hsu-platform/pkg/service"
)

const (
	SkipSetupKey     = "main.skip_setup"
	SystemInfoCmdKey = "main.system_info_cmd"
)

// Requirement is an OS-level checklist shown by setup. When Check is set it
// runs through the shell and the requirement is only shown if it fails.
type Requirement struct {
	Title string
	Steps []string
	Check string
}

type Options struct {
	// ProgName is the command name used in hints
	ProgName string

	OSRequirements []Requirement

	// Suggestions in declaration order; only the differing ones are shown
	Suggestions []config.Suggestion

	Console *console.Printer
	Sleep   func(time.Duration)
	Now     func() time.Time
}

type Supervisor struct {
	services   []*service.Service
	byName     map[string]*service.Service
	resolution *config.Resolution
	options    Options
	logger     logging.Logger
}

// New orders services by ascending priority. Services sharing a priority
// keep their declaration order.
func New(services []*service.Service, resolution *config.Resolution, options Options, logger logging.Logger) (*Supervisor, error) {
	if options.Console == nil {
		options.Console = console.New(os.Stdout)
	}
	if options.Sleep == nil {
		options.Sleep = time.Sleep
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	ordered := make([]*service.Service, len(services))
	copy(ordered, services)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	byName := make(map[string]*service.Service, len(ordered))
	for _, svc := range ordered {
		if _, exists := byName[svc.Name()]; exists {
			return nil, errors.NewValidationError("duplicate service name: "+svc.Name(), nil)
		}
		byName[svc.Name()] = svc
	}

	return &Supervisor{
		services:   ordered,
		byName:     byName,
		resolution: resolution,
		options:    options,
		logger:     logger,
	}, nil
}

// Services returns every service in start order
func (s *Supervisor) Services() []*service.Service {
	return s.services
}

// Names returns every service name in start order
func (s *Supervisor) Names() []string {
	names := make([]string, len(s.services))
	for i, svc := range s.services {
		names[i] = svc.Name()
	}
	return names
}

func (s *Supervisor) Lookup(name string) (*service.Service, error) {
	svc, ok := s.byName[name]
	if !ok {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("unknown service %q, choose from: %s", name, strings.Join(s.Names(), ", ")), nil).
			WithContext("service", name)
	}
	return svc, nil
}

// selectServices returns the named service, or every service in start order
// when name is empty, keeping only enabled ones if enabledOnly
func (s *Supervisor) selectServices(name string, enabledOnly bool) ([]*service.Service, error) {
	if name != "" {
		svc, err := s.Lookup(name)
		if err != nil {
			return nil, err
		}
		return []*service.Service{svc}, nil
	}
	var selected []*service.Service
	for _, svc := range s.services {
		if !enabledOnly || svc.Enabled() {
			selected = append(selected, svc)
		}
	}
	return selected, nil
}

func reversed(services []*service.Service) []*service.Service {
	out := make([]*service.Service, len(services))
	for i, svc := range services {
		out[len(services)-1-i] = svc
	}
	return out
}

func (s *Supervisor) persistentSkipSetup() bool {
	switch s.resolution.Values[SkipSetupKey] {
	case "True", "true", "1":
		return true
	}
	return false
}

// Start starts the named service, or every enabled one, after the setup
// check unless skipped. The first failing service aborts the run.
func (s *Supervisor) Start(name string, skipSetup bool) error {
	if !skipSetup && !s.persistentSkipSetup() {
		ok, err := s.Setup(name)
		if err != nil {
			return err
		}
		if !ok {
			s.options.Console.Println("\nTo ignore setup checks, use --skip-setup or set an override for %s.", SkipSetupKey)
			return errors.NewSetupRequiredError("setup required", nil)
		}
	}

	services, err := s.selectServices(name, name == "")
	if err != nil {
		return err
	}
	for _, svc := range services {
		s.logger.Infof("Starting service, name: %s, priority: %d", svc.Name(), svc.Priority())
		if err := svc.Start(); err != nil {
			return err
		}
	}
	s.options.Console.Println("To view listening ports, run \"%s status -v\".", s.options.ProgName)
	return nil
}

// Stop stops the named service, or every service in reverse start order
func (s *Supervisor) Stop(name string) error {
	services, err := s.selectServices(name, false)
	if err != nil {
		return err
	}
	for _, svc := range reversed(services) {
		s.logger.Infof("Stopping service, name: %s", svc.Name())
		if err := svc.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// Restart stops then starts, or with graceful runs each enabled service's
// graceful command instead
func (s *Supervisor) Restart(name string, graceful bool, skipSetup bool) error {
	if graceful {
		services, err := s.selectServices(name, name == "")
		if err != nil {
			return err
		}
		for _, svc := range services {
			if err := svc.Graceful(); err != nil {
				return err
			}
		}
		return nil
	}

	if err := s.Stop(name); err != nil {
		return err
	}
	return s.Start(name, skipSetup)
}

// Status prints one row per service; running services are highlighted
func (s *Supervisor) Status(name string, verbose bool) error {
	services, err := s.selectServices(name, false)
	if err != nil {
		return err
	}
	for _, svc := range services {
		report, err := svc.Status(verbose)
		if err != nil {
			return err
		}
		if report.Running {
			s.options.Console.Success("%s", report.String())
		} else {
			s.options.Console.Println("%s", report.String())
		}
	}
	return nil
}

// Snapshot runs count iterations interval apart. Each iteration runs the
// system info command, when configured, then every selected service's
// snapshot, all written to out.
func (s *Supervisor) Snapshot(name string, count int, interval time.Duration, out io.Writer) error {
	services, err := s.selectServices(name, false)
	if err != nil {
		return err
	}
	systemInfoCmd := s.resolution.Values[SystemInfoCmdKey]

	for iteration := 1; iteration <= count; iteration++ {
		if systemInfoCmd != "" {
			fmt.Fprintf(out, "[%s] System info #%d. Running: %s.\n",
				s.options.Now().Format("2006-01-02 15:04:05"), iteration, systemInfoCmd)
			if _, err := process.RunShell(systemInfoCmd, nil, out, s.logger); err != nil {
				return err
			}
		}
		for _, svc := range services {
			if err := svc.Snapshot(iteration, out); err != nil {
				return err
			}
		}
		if iteration != count {
			s.options.Sleep(interval)
		}
	}
	return nil
}
