// Package cli wires the catalog, the persisted overrides and the supervisor
// into the platctl command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/core-tools/hsu-platform/pkg/catalog"
	"github.com/core-tools/hsu-platform/pkg/config"
	"github.com/core-tools/hsu-platform/pkg/console"
	"github.com/core-tools/hsu-platform/pkg/logging"
	"github.com/core-tools/hsu-platform/pkg/props"
	"github.com/core-tools/hsu-platform/pkg/service"
	"github.com/core-tools/hsu-platform/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

// GlobalOptions apply to every command
type GlobalOptions struct {
	Catalog   string `long:"catalog" env:"PLATCTL_CATALOG" description:"path to a catalog file replacing the built-in one"`
	Overrides string `long:"overrides" env:"PLATCTL_OVERRIDES" description:"path to the properties file holding overrides"`
	LogLevel  string `long:"log-level" env:"PLATCTL_LOG_LEVEL" default:"warn" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"diagnostic log level"`
}

// Options are the process-level dependencies of the command line
type Options struct {
	Stdout io.Writer
	Stderr io.Writer

	// Sleep and LockWaitIntervals are passed to services and the supervisor
	Sleep             func(time.Duration)
	LockWaitIntervals []time.Duration
}

// App is the root of the command tree
type App struct {
	GlobalOptions

	Start   StartCommand   `command:"start" description:"start service(s)"`
	Stop    StopCommand    `command:"stop" description:"stop service(s)"`
	Restart RestartCommand `command:"restart" description:"restart service(s)"`
	Status  StatusCommand  `command:"status" description:"get status for service(s)"`
	Enable  EnableCommand  `command:"enable" description:"enable a service"`
	Disable DisableCommand `command:"disable" description:"disable a service"`
	List    ListCommand    `command:"list" description:"list startup properties"`
	Set     SetCommand     `command:"set" description:"set startup property override"`
	Del     DelCommand     `command:"del" description:"delete startup property override"`
	Doc     DocCommand     `command:"doc" description:"get documentation on each startup property"`
	Setup   SetupCommand   `command:"setup" description:"check OS-level and service requirements"`
	Snap    SnapCommand    `command:"snap" description:"take performance snapshots"`

	options Options
	console *console.Printer

	logFuncs logging.LogFuncs
	logSync  func() error

	catalog    *catalog.Catalog
	config     *config.Config
	supervisor *supervisor.Supervisor
}

func New(options Options) *App {
	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}
	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}
	if options.Sleep == nil {
		options.Sleep = time.Sleep
	}

	app := &App{
		options: options,
		console: console.New(options.Stdout),
	}
	app.Start.app = app
	app.Stop.app = app
	app.Restart.app = app
	app.Status.app = app
	app.Enable.app = app
	app.Disable.app = app
	app.List.app = app
	app.Set.app = app
	app.Del.app = app
	app.Doc.app = app
	app.Setup.app = app
	app.Snap.app = app
	return app
}

// Run parses argv, runs the selected command and returns the exit code
func (a *App) Run(argv []string) int {
	parser := flags.NewParser(a, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = catalog.DefaultCLIName

	_, err := parser.ParseArgs(argv)
	if a.logSync != nil {
		_ = a.logSync()
	}
	if err == nil {
		return 0
	}

	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(a.options.Stdout, flagsErr.Message)
		return 0
	}
	fmt.Fprintf(a.options.Stderr, "Error: %v\n", err)
	return 1
}

// logger returns a module logger, building the zap backend on first use
func (a *App) logger(module string) logging.Logger {
	if a.logSync == nil {
		zapConfig := logging.DefaultZapConfig()
		zapConfig.Level = a.LogLevel
		funcs, sync, err := logging.NewZapLogger(zapConfig)
		if err != nil {
			fmt.Fprintf(a.options.Stderr, "Failed to create logger: %v\n", err)
			a.logSync = func() error { return nil }
			return logging.NewNopLogger()
		}
		a.logFuncs = funcs
		a.logSync = sync
	}
	if a.logFuncs.Infof == nil {
		return logging.NewNopLogger()
	}
	return logging.ForModule(module, a.logFuncs)
}

// loadCatalog reads the catalog named by --catalog or the built-in one
func (a *App) loadCatalog() (*catalog.Catalog, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	c, err := catalog.Load(a.Catalog)
	if err != nil {
		return nil, err
	}
	a.logger("cli").Debugf("Catalog loaded, source: %q, services: %d", a.Catalog, len(c.Services))
	a.catalog = c
	return c, nil
}

// loadConfig binds the catalog layers to the overrides file
func (a *App) loadConfig() (*config.Config, error) {
	if a.config != nil {
		return a.config, nil
	}
	c, err := a.loadCatalog()
	if err != nil {
		return nil, err
	}
	path := c.OverridesFile(a.Overrides, a.logger("cli"))
	store := props.NewStore(path, true, a.logger("props"))
	a.config = config.New(store, c.Defaults, c.Suggestions, a.logger("config"))
	a.config.SetMaxPasses(c.MaxPasses)
	return a.config, nil
}

// loadSupervisor resolves the configuration and assigns every service
func (a *App) loadSupervisor() (*supervisor.Supervisor, error) {
	if a.supervisor != nil {
		return a.supervisor, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	resolution, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	serviceLogger := a.logger("service")
	serviceOptions := service.Options{
		Console:           a.console,
		Sleep:             a.options.Sleep,
		LockWaitIntervals: a.options.LockWaitIntervals,
	}
	var services []*service.Service
	for _, spec := range a.catalog.Specs() {
		svc, err := service.New(spec, resolution.Values, serviceOptions, serviceLogger)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	a.supervisor, err = supervisor.New(services, resolution, supervisor.Options{
		ProgName:       a.catalog.CLIName,
		OSRequirements: a.catalog.Requirements(),
		Suggestions:    a.catalog.Suggestions,
		Console:        a.console,
		Sleep:          a.options.Sleep,
	}, a.logger("supervisor"))
	if err != nil {
		return nil, err
	}
	return a.supervisor, nil
}
