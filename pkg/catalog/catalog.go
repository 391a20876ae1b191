// Package catalog loads the static description of the platform: property
// defaults with their documentation, suggestions, OS requirements and the
// service specs.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-platform/pkg/config"
	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/service"
	"github.com/core-tools/hsu-platform/pkg/supervisor"
	"github.com/core-tools/hsu-platform/pkg/template"

	"gopkg.in/yaml.v3"
)

//go:embed platform.yaml
var builtin []byte

const (
	DefaultCLIName       = "platctl"
	DefaultOverridesPath = "~/.platctl/overrides.properties"
)

// Catalog represents the top-level catalog file structure
type Catalog struct {
	CLIName        string                   `yaml:"cli_name"`
	OverridesPath  string                   `yaml:"overrides_path"`
	MaxPasses      int                      `yaml:"max_passes,omitempty"`
	Defaults       []config.Default         `yaml:"defaults"`
	Suggestions    []config.Suggestion      `yaml:"suggestions"`
	OSRequirements []supervisor.Requirement `yaml:"os_requirements"`
	Services       []ServiceConfig          `yaml:"services"`
}

// ServiceConfig represents a single service entry
type ServiceConfig struct {
	Name        string            `yaml:"name"`
	ProcessName string            `yaml:"process_name"`
	StartCmd    []Element         `yaml:"start_cmd"`
	StopCmd     []Element         `yaml:"stop_cmd,omitempty"`
	GracefulCmd []Element         `yaml:"graceful_cmd,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	CwdKey      string            `yaml:"cwd_key,omitempty"`

	Validations []HookConfig      `yaml:"validations,omitempty"`
	PreStart    []HookConfig      `yaml:"pre_start,omitempty"`
	PreGraceful []HookConfig      `yaml:"pre_graceful,omitempty"`
	RuntimeKeys map[string]string `yaml:"runtime_keys,omitempty"` // key -> built-in function name

	RunSigterm *bool `yaml:"run_sigterm,omitempty"` // Pointer to distinguish unset from false
	RunSigkill bool  `yaml:"run_sigkill,omitempty"`

	AfterStopCmdSeconds *Element `yaml:"after_stop_cmd_seconds,omitempty"`
	AfterSigtermSeconds *Element `yaml:"after_sigterm_seconds,omitempty"`
	AfterSigkillSeconds *Element `yaml:"after_sigkill_seconds,omitempty"`

	ExternalPIDFileKey  string `yaml:"external_pidfile_key,omitempty"`
	ExternalProcNameKey string `yaml:"external_procname_key,omitempty"`
}

// HookConfig names a built-in validation or action and the property it
// reads
type HookConfig struct {
	Type    string `yaml:"type"`
	Key     string `yaml:"key"`
	Message string `yaml:"message,omitempty"`
}

// Element is a template element as written in YAML: a scalar is a literal,
// {split: ...} is split after rendering and {property: key} takes a number
// from the active values.
type Element template.Element

func (e *Element) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = Element(template.Lit(node.Value))
		return nil

	case yaml.MappingNode:
		var fields struct {
			Split    *string `yaml:"split"`
			Property *string `yaml:"property"`
		}
		if err := node.Decode(&fields); err != nil {
			return err
		}
		switch {
		case fields.Split != nil && fields.Property == nil:
			*e = Element(template.Split(*fields.Split))
		case fields.Property != nil && fields.Split == nil:
			*e = Element(template.FromProperty(*fields.Property))
		default:
			return fmt.Errorf("line %d: element must have exactly one of split or property", node.Line)
		}
		return nil

	default:
		return fmt.Errorf("line %d: element must be a scalar or a mapping", node.Line)
	}
}

func elements(in []Element) []template.Element {
	if len(in) == 0 {
		return nil
	}
	out := make([]template.Element, len(in))
	for i, element := range in {
		out[i] = template.Element(element)
	}
	return out
}

func waitElement(in *Element) template.Element {
	if in == nil {
		return template.Element{}
	}
	return template.Element(*in)
}

// Builtin returns the catalog compiled into the binary
func Builtin() (*Catalog, error) {
	return Parse(builtin, "builtin")
}

// LoadFromFile loads a catalog from a YAML file
func LoadFromFile(filename string) (*Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read catalog file", err).WithContext("filename", filename)
	}
	return Parse(data, filename)
}

// Load reads filename, or the built-in catalog when filename is empty
func Load(filename string) (*Catalog, error) {
	if filename == "" {
		return Builtin()
	}
	return LoadFromFile(filename)
}

// Parse decodes, defaults and validates a catalog
func Parse(data []byte, source string) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML catalog", err).WithContext("source", source)
	}

	setCatalogDefaults(&catalog)

	if err := ValidateCatalog(&catalog); err != nil {
		return nil, errors.NewValidationError("invalid catalog", err).WithContext("source", source)
	}
	return &catalog, nil
}

// setCatalogDefaults applies default values to the catalog
func setCatalogDefaults(catalog *Catalog) {
	if catalog.CLIName == "" {
		catalog.CLIName = DefaultCLIName
	}
	if catalog.OverridesPath == "" {
		catalog.OverridesPath = DefaultOverridesPath
	}
	if catalog.MaxPasses == 0 {
		catalog.MaxPasses = template.DefaultMaxPasses
	}

	for i := range catalog.Services {
		svc := &catalog.Services[i]

		// SIGTERM is sent unless explicitly disabled
		if svc.RunSigterm == nil {
			runSigterm := true
			svc.RunSigterm = &runSigterm
		}
		if svc.ProcessName == "" {
			svc.ProcessName = svc.Name
		}
	}
}

// ValidateCatalog validates the entire catalog structure
func ValidateCatalog(catalog *Catalog) error {
	if catalog == nil {
		return errors.NewValidationError("catalog cannot be nil", nil)
	}
	if catalog.MaxPasses < 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid max_passes: %d", catalog.MaxPasses), nil)
	}

	seenDefaults := make(map[string]int)
	for i, d := range catalog.Defaults {
		if d.Name == "" {
			return errors.NewValidationError(fmt.Sprintf("default at index %d has no name", i), nil)
		}
		if prevIndex, exists := seenDefaults[d.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate default '%s' found at indices %d and %d", d.Name, prevIndex, i), nil)
		}
		seenDefaults[d.Name] = i
	}

	for i, s := range catalog.Suggestions {
		if s.Name == "" || s.Why == "" {
			return errors.NewValidationError(fmt.Sprintf("suggestion at index %d needs a name and a reason", i), nil)
		}
	}

	for i, r := range catalog.OSRequirements {
		if r.Title == "" {
			return errors.NewValidationError(fmt.Sprintf("OS requirement at index %d has no title", i), nil)
		}
	}

	seenServices := make(map[string]int)
	for i := range catalog.Services {
		svc := &catalog.Services[i]
		if prevIndex, exists := seenServices[svc.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate service '%s' found at indices %d and %d", svc.Name, prevIndex, i), nil)
		}
		seenServices[svc.Name] = i

		if err := validateServiceConfig(svc); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid service at index %d", i), err).
				WithContext("service", svc.Name)
		}
	}
	return nil
}

func validateServiceConfig(svc *ServiceConfig) error {
	if svc.Name == "" {
		return errors.NewValidationError("service name is required", nil)
	}
	if strings.ContainsAny(svc.Name, ". ") {
		return errors.NewValidationError(fmt.Sprintf("service name %q cannot contain dots or spaces", svc.Name), nil)
	}

	for what, cmd := range map[string][]Element{"start_cmd": svc.StartCmd, "stop_cmd": svc.StopCmd, "graceful_cmd": svc.GracefulCmd} {
		for _, element := range cmd {
			if element.Kind == template.SubstituteFromProperty {
				return errors.NewValidationError(what+" cannot contain property elements", nil)
			}
		}
	}

	for _, hook := range svc.Validations {
		if _, ok := validations[hook.Type]; !ok {
			return unknownHook("validation", hook.Type, validations)
		}
		if hook.Key == "" {
			return errors.NewValidationError(fmt.Sprintf("validation %s needs a key", hook.Type), nil)
		}
	}
	for _, hook := range append(append([]HookConfig{}, svc.PreStart...), svc.PreGraceful...) {
		if _, ok := actions[hook.Type]; !ok {
			return unknownHook("action", hook.Type, actions)
		}
		if hook.Key == "" {
			return errors.NewValidationError(fmt.Sprintf("action %s needs a key", hook.Type), nil)
		}
	}
	for key, function := range svc.RuntimeKeys {
		if _, ok := runtimeKeys[function]; !ok {
			return unknownHook("runtime key function", function, runtimeKeys).WithContext("key", key)
		}
	}
	return nil
}

// Specs builds one service spec per catalog entry, in declaration order
func (c *Catalog) Specs() []*service.Spec {
	specs := make([]*service.Spec, 0, len(c.Services))
	for i := range c.Services {
		specs = append(specs, c.spec(&c.Services[i]))
	}
	return specs
}

func (c *Catalog) spec(svc *ServiceConfig) *service.Spec {
	spec := &service.Spec{
		CLIName:             c.CLIName,
		Name:                svc.Name,
		ProcessName:         svc.ProcessName,
		StartCmd:            elements(svc.StartCmd),
		StopCmd:             elements(svc.StopCmd),
		GracefulCmd:         elements(svc.GracefulCmd),
		Env:                 svc.Env,
		CwdKey:              svc.CwdKey,
		RunSigterm:          *svc.RunSigterm,
		RunSigkill:          svc.RunSigkill,
		AfterStopCmdSeconds: waitElement(svc.AfterStopCmdSeconds),
		AfterSigtermSeconds: waitElement(svc.AfterSigtermSeconds),
		AfterSigkillSeconds: waitElement(svc.AfterSigkillSeconds),
		ExternalPIDFileKey:  svc.ExternalPIDFileKey,
		ExternalProcNameKey: svc.ExternalProcNameKey,
	}

	for _, hook := range svc.Validations {
		spec.Validations = append(spec.Validations, validations[hook.Type](hook))
	}
	for _, hook := range svc.PreStart {
		spec.PreStart = append(spec.PreStart, actions[hook.Type](hook))
	}
	for _, hook := range svc.PreGraceful {
		spec.PreGraceful = append(spec.PreGraceful, actions[hook.Type](hook))
	}
	if len(svc.RuntimeKeys) > 0 {
		spec.RuntimeKeys = make(map[string]service.RuntimeKey, len(svc.RuntimeKeys))
		for key, function := range svc.RuntimeKeys {
			spec.RuntimeKeys[key] = runtimeKeys[function]
		}
	}
	return spec
}

// Requirements returns the OS requirements in declaration order
func (c *Catalog) Requirements() []supervisor.Requirement {
	return c.OSRequirements
}

// OverridesFile returns path, or the catalog's overrides path when path is
// empty, with a leading ~ expanded to the home directory
func (c *Catalog) OverridesFile(path string, logger logging.Logger) string {
	if path == "" {
		path = c.OverridesPath
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Warnf("Cannot expand home directory, path: %s, error: %v", path, err)
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
