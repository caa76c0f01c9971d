package plano

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
)

// App is the entry point of a command-line program built on plano. It owns
// a registry, populated while the program starts, and runs one command
// line through a dispatcher.
//
//	app := plano.New(plano.Config{Name: "tool", Version: "1.0.0"})
//	app.Command("greeting", Greeting,
//		plano.Help("Print a greeting"),
//		plano.Params(plano.Opt("message", "Howdy", "The greeting")),
//	)
//	app.Main()
type App struct {
	config       Config
	registry     *Registry
	dispatch     []DispatcherOption
	noCompletion bool
}

// New creates an App with the given configuration and options.
//
// Unless disabled with WithoutCompletion, the hidden "completion" command
// is registered.
//
// Arguments:
//   - cfg: Name, Version and Description shown in the top-level help.
//   - opts: Functional options such as WithDefault or WithDispatcherOptions.
//
// Returns a new App instance.
//
// Example:
//
//	app := plano.New(plano.Config{Name: "tasks", Version: "1.0.0"})
//	app.Command("build", Build, plano.Params(plano.Arg("target", "What to build")))
//	os.Exit(app.Run(os.Args[1:]))
func New(cfg Config, opts ...Option) *App {
	app := &App{
		config:   cfg,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config.Name == "" {
		app.config.Name = filepath.Base(os.Args[0])
	}
	if !app.noCompletion {
		registerCompletion(app.config.Name, app.registry)
	}
	return app
}

// Command registers fn at path. It panics if the registration is invalid:
// commands are declared at start-up and a bad declaration is a programming
// error.
//
// Arguments:
//   - path: Dotted command path, e.g. "db.migrate". Missing groups are created.
//   - fn: A func(context.Context, ...) error taking one argument per parameter.
//   - opts: Help, Description, Params, Hidden or Passthrough.
//
// Returns the registered Command.
//
// Example:
//
//	func Greeting(ctx context.Context, message string, loud bool) error { ... }
//
//	app.Command("greeting", Greeting,
//		plano.Help("Print a greeting"),
//		plano.Params(plano.Opt("message", "Howdy", "").Short("m"), plano.Flag("loud", "")),
//	)
func (a *App) Command(path string, fn any, opts ...CommandOption) *Command {
	return a.registry.MustRegister(path, fn, opts...)
}

// Group sets the help text of a command group.
func (a *App) Group(path, help string) *Node {
	return a.registry.Group(path, help)
}

// Registry returns the App's command registry.
func (a *App) Registry() *Registry {
	return a.registry
}

// Dispatcher builds a dispatcher over the App's registry.
func (a *App) Dispatcher() *Dispatcher {
	opts := []DispatcherOption{
		WithProgram(a.config.Name),
		WithDescription(a.config.Description),
		WithVersion(versionLine(a.config)),
	}
	return NewDispatcher(a.registry, append(opts, a.dispatch...)...)
}

// Run dispatches argv (without the program name) and returns the exit code.
func (a *App) Run(argv []string) int {
	return a.RunContext(context.Background(), argv)
}

// RunContext is Run with a caller-supplied context.
func (a *App) RunContext(ctx context.Context, argv []string) int {
	return a.Dispatcher().Run(ctx, argv)
}

// Main runs os.Args and exits the process with the resulting code. An
// interrupt cancels the context handed to commands.
func (a *App) Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := a.RunContext(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
