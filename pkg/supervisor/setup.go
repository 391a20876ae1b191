package supervisor

import (
	"fmt"
	"io"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/process"
)

// SetupStep is one titled group of setup instructions
type SetupStep struct {
	Title string
	Steps []string
}

type setupSteps struct {
	steps []SetupStep
	index map[string]int
}

// ensure returns the step for title, appending it when new
func (s *setupSteps) ensure(title string) *SetupStep {
	if i, ok := s.index[title]; ok {
		return &s.steps[i]
	}
	s.index[title] = len(s.steps)
	s.steps = append(s.steps, SetupStep{Title: title})
	return &s.steps[len(s.steps)-1]
}

// SetupSteps collects everything still to do before the named service, or
// every enabled service, can start. It changes nothing.
func (s *Supervisor) SetupSteps(name string) ([]SetupStep, error) {
	services, err := s.selectServices(name, name == "")
	if err != nil {
		return nil, err
	}

	collected := &setupSteps{index: make(map[string]int)}

	for _, requirement := range s.options.OSRequirements {
		if requirement.Check != "" {
			code, err := process.RunShell(requirement.Check, nil, io.Discard, s.logger)
			if err != nil {
				return nil, err
			}
			if code == 0 {
				continue
			}
		}
		step := collected.ensure(requirement.Title)
		step.Steps = append(step.Steps, requirement.Steps...)
	}

	anyEnabled := false
	for _, svc := range services {
		if svc.Enabled() {
			anyEnabled = true
		}
	}
	if !anyEnabled {
		step := collected.ensure("Enable services before starting them:")
		step.Steps = append(step.Steps,
			fmt.Sprintf("Enable the desired services with '%s enable <servicename>'.", s.options.ProgName))
	}

	for _, svc := range services {
		if !svc.Enabled() {
			continue
		}
		for _, finding := range svc.Findings() {
			collected.ensure(finding)
		}
	}

	for _, suggestion := range s.options.Suggestions {
		if _, differing := s.resolution.DifferingSuggestions[suggestion.Name]; !differing {
			continue
		}
		step := collected.ensure(suggestion.Why)
		step.Steps = append(step.Steps, fmt.Sprintf("\n%s set %s %s\n    (current value: %s)",
			s.options.ProgName, suggestion.Name, quoteValue(suggestion.Value), s.resolution.Values[suggestion.Name]))
	}

	return collected.steps, nil
}

// quoteValue quotes a value for a shell hint; a leading dash gets padding
// spaces so the CLI does not read it as a flag
func quoteValue(value string) string {
	if strings.HasPrefix(value, "-") {
		return fmt.Sprintf("\" %s \"", value)
	}
	return "\"" + value + "\""
}

// Setup prints the outstanding setup steps and reports whether there are
// none
func (s *Supervisor) Setup(name string) (bool, error) {
	steps, err := s.SetupSteps(name)
	if err != nil {
		return false, err
	}

	printer := s.options.Console
	if len(steps) == 0 {
		printer.Success("Setup OK.")
		return true, nil
	}

	printer.Failure("Setup required.")
	for _, step := range steps {
		printer.Println("")
		printer.Title(step.Title)
		for _, line := range step.Steps {
			printer.Indented(4, line)
		}
	}
	return false, nil
}
