package service

import (
	"fmt"

	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/template"
)

// DefaultWaitSeconds applies to every stop stage without an explicit wait
const DefaultWaitSeconds = 5

// Validation inspects the active values and returns a setup finding, or ""
type Validation func(values map[string]string) string

// Hook runs before a start or graceful restart
type Hook func(values map[string]string) error

// RuntimeKey computes a value for a key missing from the active values
type RuntimeKey func(values map[string]string) (string, error)

// Spec is the static description of one service
type Spec struct {
	// CLIName tags lines written to the service log
	CLIName string
	Name    string

	// ProcessName replaces argv[0] of the started process and identifies
	// the instance in the process list
	ProcessName string

	StartCmd    []template.Element
	StopCmd     []template.Element
	GracefulCmd []template.Element
	Env         map[string]string

	// CwdKey names the property holding the working directory
	CwdKey string

	Validations []Validation
	PreStart    []Hook
	PreGraceful []Hook
	RuntimeKeys map[string]RuntimeKey

	RunSigterm bool
	RunSigkill bool

	AfterStopCmdSeconds template.Element
	AfterSigtermSeconds template.Element
	AfterSigkillSeconds template.Element

	// ExternalPIDFileKey and ExternalProcNameKey name properties for services
	// that write their own PID file
	ExternalPIDFileKey  string
	ExternalProcNameKey string
}

// Validate rejects specs that could never be started or stopped
func (s *Spec) Validate() error {
	if s.Name == "" {
		return errors.NewInvalidServiceConfigError("service name is required", nil)
	}
	if s.ProcessName == "" {
		return errors.NewInvalidServiceConfigError(fmt.Sprintf("%s: process name is required", s.Name), nil).
			WithContext("service", s.Name)
	}
	if len(s.StartCmd) == 0 {
		return errors.NewInvalidServiceConfigError(fmt.Sprintf("%s: start command is required", s.Name), nil).
			WithContext("service", s.Name)
	}
	if !s.RunSigterm && len(s.StopCmd) == 0 {
		return errors.NewInvalidServiceConfigError(
			fmt.Sprintf("%s: need to specify either a stop command or SIGTERM", s.Name), nil).
			WithContext("service", s.Name)
	}
	for _, element := range []template.Element{s.AfterStopCmdSeconds, s.AfterSigtermSeconds, s.AfterSigkillSeconds} {
		if element.Kind == template.SplitAfterRender {
			return errors.NewInvalidServiceConfigError(
				fmt.Sprintf("%s: wait times cannot be split elements", s.Name), nil).
				WithContext("service", s.Name)
		}
	}
	return nil
}

func waitOrDefault(element template.Element) template.Element {
	if element.Kind == template.Literal && element.Text == "" {
		return template.Seconds(DefaultWaitSeconds)
	}
	return element
}
