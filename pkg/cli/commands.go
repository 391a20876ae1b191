package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/core-tools/hsu-platform/pkg/config"
	"github.com/core-tools/hsu-platform/pkg/console"
	"github.com/core-tools/hsu-platform/pkg/errors"
	"github.com/core-tools/hsu-platform/pkg/props"

	"github.com/muesli/reflow/wordwrap"
)

// ServiceArg is the optional service name; empty selects every service
type ServiceArg struct {
	Service string `positional-arg-name:"service" description:"service name"`
}

type StartCommand struct {
	SkipSetup bool       `long:"skip-setup" description:"start without checking setup"`
	Args      ServiceArg `positional-args:"yes"`

	app *App
}

func (c *StartCommand) Execute(args []string) error {
	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}
	return s.Start(c.Args.Service, c.SkipSetup)
}

type StopCommand struct {
	Args ServiceArg `positional-args:"yes"`

	app *App
}

func (c *StopCommand) Execute(args []string) error {
	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}
	return s.Stop(c.Args.Service)
}

type RestartCommand struct {
	Graceful  bool       `long:"graceful" description:"run the graceful restart command instead of stop and start"`
	SkipSetup bool       `long:"skip-setup" description:"start without checking setup"`
	Args      ServiceArg `positional-args:"yes"`

	app *App
}

func (c *RestartCommand) Execute(args []string) error {
	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}
	return s.Restart(c.Args.Service, c.Graceful, c.SkipSetup)
}

type StatusCommand struct {
	Verbose bool       `short:"v" long:"verbose" description:"also show listening addresses"`
	Args    ServiceArg `positional-args:"yes"`

	app *App
}

func (c *StatusCommand) Execute(args []string) error {
	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}
	return s.Status(c.Args.Service, c.Verbose)
}

// RequiredServiceArg is a mandatory service name
type RequiredServiceArg struct {
	Service string `positional-arg-name:"service" required:"yes" description:"service name"`
}

type EnableCommand struct {
	Args RequiredServiceArg `positional-args:"yes" required:"yes"`

	app *App
}

func (c *EnableCommand) Execute(args []string) error {
	cfg, err := c.app.configForService(c.Args.Service)
	if err != nil {
		return err
	}
	return cfg.Enable(c.Args.Service)
}

type DisableCommand struct {
	Args RequiredServiceArg `positional-args:"yes" required:"yes"`

	app *App
}

func (c *DisableCommand) Execute(args []string) error {
	cfg, err := c.app.configForService(c.Args.Service)
	if err != nil {
		return err
	}
	return cfg.Disable(c.Args.Service)
}

// configForService checks name against the catalog before any override is
// written for it
func (a *App) configForService(name string) (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, svc := range a.catalog.Services {
		if svc.Name == name {
			return cfg, nil
		}
		names = append(names, svc.Name)
	}
	return nil, errors.NewNotFoundError(
		fmt.Sprintf("unknown service %q, choose from: %s", name, strings.Join(names, ", ")), nil).
		WithContext("service", name)
}

type ListCommand struct {
	Verbose bool `short:"v" long:"verbose" description:"also show replaced defaults, suggestions and documentation"`
	AsProps bool `short:"p" long:"as-props" description:"print in properties file format"`
	Args    struct {
		Filter string `positional-arg-name:"substring" description:"only keys containing substring"`
	} `positional-args:"yes"`

	app *App
}

func (c *ListCommand) Execute(args []string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	items, err := cfg.List(c.Args.Filter)
	if err != nil {
		return err
	}
	if c.AsProps {
		writeProps(c.app.console, items, c.Verbose)
	} else {
		writeList(c.app.console, items, c.Verbose)
	}
	return nil
}

// writeList prints one aligned "key value" row per item
func writeList(printer *console.Printer, items []config.ListItem, verbose bool) {
	width := 0
	for _, item := range items {
		if len(item.Key) > width {
			width = len(item.Key)
		}
	}
	for _, item := range items {
		value := strings.ReplaceAll(item.Value, "\n", "\n"+strings.Repeat(" ", width+2))
		printer.Println("%-*s  %s", width, item.Key, value)
		if !verbose {
			continue
		}
		if item.Default != nil {
			printer.Indented(4, printer.Muted("overrides default: "+item.Default.Value))
		}
		if item.Suggestion != nil {
			printer.Indented(4, printer.Muted(fmt.Sprintf("suggested: %s (%s)", item.Suggestion.Value, item.Suggestion.Why)))
		}
		if item.Doc != "" {
			printer.Indented(4, printer.Muted(wordwrap.String(item.Doc, console.WrapWidth)))
		}
	}
}

// writeProps prints items as a properties file; verbose details become
// comment lines
func writeProps(printer *console.Printer, items []config.ListItem, verbose bool) {
	out := printer.Writer()
	for _, item := range items {
		if verbose {
			if item.Doc != "" {
				writeComment(out, wordwrap.String(item.Doc, console.WrapWidth))
			}
			if item.Default != nil {
				writeComment(out, "overrides default: "+item.Default.Value)
			}
			if item.Suggestion != nil {
				writeComment(out, fmt.Sprintf("suggested: %s (%s)", item.Suggestion.Value, item.Suggestion.Why))
			}
		}
		out.Write(props.Format([]props.Entry{{Key: item.Key, Value: item.Value}}))
	}
}

func writeComment(out io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(out, "# %s\n", line)
	}
}

type SetCommand struct {
	Args struct {
		Name  string `positional-arg-name:"property_name" required:"yes"`
		Value string `positional-arg-name:"property_value" required:"yes"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

// Execute stores the value trimmed, so a value starting with a dash can be
// passed as " -Dmyoption" or after "--"
func (c *SetCommand) Execute(args []string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	return cfg.Set(c.Args.Name, strings.TrimSpace(c.Args.Value))
}

type DelCommand struct {
	Args struct {
		Name string `positional-arg-name:"property_name" required:"yes"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *DelCommand) Execute(args []string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	return cfg.Delete(c.Args.Name)
}

type DocCommand struct {
	app *App
}

func (c *DocCommand) Execute(args []string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	printer := c.app.console
	for i, item := range cfg.Docs() {
		if i > 0 {
			printer.Println("")
		}
		printer.Title(item.Key)
		printer.Indented(4, wordwrap.String(item.Doc, console.WrapWidth))
	}
	return nil
}

type SetupCommand struct {
	Args ServiceArg `positional-args:"yes"`

	app *App
}

func (c *SetupCommand) Execute(args []string) error {
	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}
	ok, err := s.Setup(c.Args.Service)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewSetupRequiredError("setup required", nil)
	}
	return nil
}

type SnapCommand struct {
	Count    int        `short:"c" long:"count" default:"1" description:"number of snapshots"`
	Interval int        `short:"i" long:"interval" default:"3" description:"seconds between snapshots"`
	Output   string     `short:"o" long:"output" description:"append snapshots to this file instead of stdout"`
	Args     ServiceArg `positional-args:"yes"`

	app *App
}

func (c *SnapCommand) Execute(args []string) error {
	if c.Count < 1 {
		return errors.NewValidationError(fmt.Sprintf("count must be at least 1, got %d", c.Count), nil)
	}
	if c.Interval < 0 {
		return errors.NewValidationError(fmt.Sprintf("interval cannot be negative, got %d", c.Interval), nil)
	}

	s, err := c.app.loadSupervisor()
	if err != nil {
		return err
	}

	out := c.app.console.Writer()
	if c.Output != "" {
		file, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.NewIOError("cannot open snapshot output", err).WithContext("output", c.Output)
		}
		defer file.Close()
		out = file
	}
	return s.Snapshot(c.Args.Service, c.Count, time.Duration(c.Interval)*time.Second, out)
}
