package plano

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Invocation records one call of a command, top-level or nested.
type Invocation struct {
	Command *Command
	Args    Values
	Depth   int
	Start   time.Time
	End     time.Time
	Err     error
}

// Elapsed returns the duration of the call.
func (inv *Invocation) Elapsed() time.Duration {
	return inv.End.Sub(inv.Start)
}

// Dispatcher resolves argv to a registered command, binds its arguments,
// runs it and reports the outcome. A dispatcher runs one command line at a
// time; nested calls from command bodies share its call stack.
type Dispatcher struct {
	registry    *Registry
	program     string
	description string
	version     string
	stdout      io.Writer
	stderr      io.Writer
	clock       Clock
	defaultPath string
	defaultArgs []string
	observer    func(*Invocation)

	settings Settings
	reporter *Reporter
	logger   zerolog.Logger
	stack    []*Invocation
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithProgram sets the program name shown in usage text.
func WithProgram(name string) DispatcherOption {
	return func(d *Dispatcher) { d.program = name }
}

// WithDescription sets the text shown under the top-level usage line.
func WithDescription(text string) DispatcherOption {
	return func(d *Dispatcher) { d.description = text }
}

// WithVersion sets the version line closing the top-level usage.
func WithVersion(text string) DispatcherOption {
	return func(d *Dispatcher) { d.version = text }
}

// WithOutput redirects command output and the diagnostic stream.
func WithOutput(stdout, stderr io.Writer) DispatcherOption {
	return func(d *Dispatcher) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithClock replaces the clock used for elapsed times.
func WithClock(c Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithDefaultCommand names the command to run, with tokens prepended to
// the remaining arguments, when argv does not start with a command path.
func WithDefaultCommand(path string, tokens ...string) DispatcherOption {
	return func(d *Dispatcher) {
		d.defaultPath = path
		d.defaultArgs = tokens
	}
}

// WithObserver registers fn to receive every finished invocation.
func WithObserver(fn func(*Invocation)) DispatcherOption {
	return func(d *Dispatcher) { d.observer = fn }
}

// NewDispatcher creates a dispatcher over reg.
//
// Arguments:
//   - reg: The registry commands are resolved from.
//   - opts: Output streams, clock, program name and other DispatcherOptions.
//
// Example:
//
//	d := plano.NewDispatcher(reg, plano.WithProgram("tasks"))
//	os.Exit(d.Run(ctx, os.Args[1:]))
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		program:  "plano",
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		clock:    RealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.configure(Settings{NoColor: !isTerminal(d.stderr)})
	return d
}

func (d *Dispatcher) configure(s Settings) {
	d.settings = s
	d.reporter = NewReporter(d.stderr, s)
	d.logger = newLogger(d.stderr, d.program, s)
}

// Run executes one command line (without the program name) and returns
// the process exit code.
//
// Leading global options are parsed first. The rest of argv names the
// command path, optionally prefixed by comma-chained commands, followed
// by the command's own arguments.
//
// Returns ExitOK, ExitFailure, ExitUsage or ExitSkipped.
func (d *Dispatcher) Run(ctx context.Context, argv []string) int {
	flags := GlobalFlags(d.program)
	rest, err := ParseLeading(flags, argv)
	if err != nil {
		d.reporter.Usage(d.program, err)
		return ExitUsage
	}
	settings, err := loadSettings(flags, d.stderr)
	if err != nil {
		d.reporter.Usage(d.program, err)
		return ExitUsage
	}
	d.configure(settings)

	if help, _ := flags.GetBool("help"); help {
		d.writeTopUsage(d.stdout, flags)
		return ExitOK
	}

	ctx = withDispatcher(ctx, d)

	if len(rest) == 0 {
		if d.defaultPath == "" {
			d.writeTopUsage(d.stdout, flags)
			return ExitOK
		}
		return d.runDefault(ctx, flags, nil)
	}

	var preceding []*Command
	if first := rest[0]; strings.Contains(first, ",") && !strings.HasPrefix(first, "-") {
		names := strings.Split(first, ",")
		for _, name := range names[:len(names)-1] {
			cmd, err := d.registry.Command(name)
			if err != nil {
				return d.usageFailure(err, flags)
			}
			preceding = append(preceding, cmd)
		}
		rest = append([]string{names[len(names)-1]}, rest[1:]...)
	}

	node, consumed := d.registry.Resolve(rest)
	args := rest[consumed:]

	if consumed == 0 {
		if d.defaultPath != "" && len(preceding) == 0 {
			return d.runDefault(ctx, flags, rest)
		}
		if looksLikeOption(rest[0]) {
			return d.usageFailure(&UsageError{Kind: UnknownOption, Name: rest[0]}, flags)
		}
		return d.usageFailure(&UnknownCommandError{
			Path:       rest[0],
			Suggestion: suggest(rest[0], childNames(d.registry.Root())),
		}, flags)
	}

	if node.Command == nil {
		switch {
		case len(args) > 0 && (args[0] == "-h" || args[0] == "--help"):
			WriteGroupUsage(d.stdout, d.program, node)
			return ExitOK
		case len(args) > 0 && !looksLikeOption(args[0]):
			return d.groupFailure(node, &UnknownCommandError{
				Path:       strings.Join(append(append([]string{}, node.Path...), args[0]), "."),
				Suggestion: suggest(args[0], childNames(node)),
			})
		default:
			return d.groupFailure(node, &UsageError{Kind: MissingSubcommand, Command: node.FullPath(), Name: node.FullPath()})
		}
	}

	return d.runTop(ctx, preceding, node.Command, args)
}

func (d *Dispatcher) runDefault(ctx context.Context, flags *pflag.FlagSet, rest []string) int {
	cmd, err := d.registry.Command(d.defaultPath)
	if err != nil {
		return d.usageFailure(err, flags)
	}
	args := append(append([]string{}, d.defaultArgs...), rest...)
	return d.runTop(ctx, nil, cmd, args)
}

// runTop binds and runs the selected command, preceded by any
// comma-chained commands, and reports the overall outcome.
func (d *Dispatcher) runTop(ctx context.Context, preceding []*Command, cmd *Command, args []string) int {
	values, err := Bind(cmd, args)
	if errors.Is(err, ErrHelpRequested) {
		WriteUsage(d.stdout, d.program, cmd)
		return ExitOK
	}
	if err != nil {
		d.reporter.Usage(d.program, err)
		WriteUsage(d.stderr, d.program, cmd)
		return ExitUsage
	}

	precedingValues := make([]Values, len(preceding))
	for i, p := range preceding {
		v, err := Bind(p, nil)
		if err != nil {
			d.reporter.Usage(d.program, err)
			WriteUsage(d.stderr, d.program, p)
			return ExitUsage
		}
		precedingValues[i] = v
	}

	start := d.clock.Now()
	var runErr error
	for i, p := range preceding {
		if runErr = d.invoke(ctx, p, precedingValues[i]); runErr != nil {
			break
		}
	}
	if runErr == nil {
		runErr = d.invoke(ctx, cmd, values)
	}
	d.reporter.Result(d.clock.Now().Sub(start), runErr)
	return ExitCodeOf(runErr)
}

// Call runs the command at path from inside another command, binding
// tokens as on the command line. Binding failures inside a command body
// are programming errors and come back as UnexpectedError.
func (d *Dispatcher) Call(ctx context.Context, path string, tokens ...string) error {
	cmd, err := d.registry.Command(path)
	if err != nil {
		return &UnexpectedError{Err: err}
	}
	values, err := Bind(cmd, tokens)
	if err != nil {
		return &UnexpectedError{Err: fmt.Errorf("calling %s: %w", path, err)}
	}
	return d.invoke(withDispatcher(ctx, d), cmd, values)
}

// Invoke runs the command at path with typed values, filling defaults
// for missing parameters.
func (d *Dispatcher) Invoke(ctx context.Context, path string, values Values) error {
	cmd, err := d.registry.Command(path)
	if err != nil {
		return &UnexpectedError{Err: err}
	}
	bound := make(Values, len(cmd.Params))
	for _, p := range cmd.Params {
		v, ok := values[p.Name]
		if !ok {
			if p.Required {
				return &UnexpectedError{Err: fmt.Errorf("calling %s: %w", path,
					&UsageError{Kind: MissingRequiredArgument, Command: path, Name: p.metavar()})}
			}
			bound[p.Name] = cloneValue(p.Default)
			continue
		}
		if want := p.Type.GoType(); reflect.TypeOf(v) != want {
			return &UnexpectedError{Err: fmt.Errorf("calling %s: parameter %q wants %s, got %T", path, p.Name, want, v)}
		}
		bound[p.Name] = v
	}
	for name := range values {
		if _, ok := cmd.Param(name); !ok {
			return &UnexpectedError{Err: fmt.Errorf("calling %s: %w", path,
				&UsageError{Kind: UnknownOption, Command: path, Name: name})}
		}
	}
	return d.invoke(withDispatcher(ctx, d), cmd, bound)
}

// invoke pushes a frame, runs the target and pops the frame. Errors pass
// through unchanged apart from being normalized by classify.
func (d *Dispatcher) invoke(ctx context.Context, cmd *Command, values Values) error {
	inv := &Invocation{
		Command: cmd,
		Args:    values,
		Depth:   len(d.stack) + 1,
		Start:   d.clock.Now(),
	}
	d.stack = append(d.stack, inv)
	name := cmd.FullPath()

	d.reporter.Enter(inv.Depth, name, displayArgs(cmd, values))
	d.logger.Debug().Str("command", name).Int("depth", inv.Depth).Msg("running")

	inv.Err = d.callSafely(ctx, cmd, values)
	inv.End = d.clock.Now()

	d.reporter.Leave(inv.Depth, name, inv.Err)
	d.stack = d.stack[:len(d.stack)-1]
	if d.observer != nil {
		d.observer(inv)
	}
	return inv.Err
}

func (d *Dispatcher) callSafely(ctx context.Context, cmd *Command, values Values) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			err = &UnexpectedError{Err: fmt.Errorf("panic: %w", perr), Stack: debug.Stack()}
		}
	}()
	return classify(cmd.call(ctx, values))
}

func (d *Dispatcher) usageFailure(err error, flags *pflag.FlagSet) int {
	d.reporter.Usage(d.program, err)
	if flags != nil {
		d.writeTopUsage(d.stderr, flags)
	}
	return ExitUsage
}

func (d *Dispatcher) groupFailure(node *Node, err error) int {
	d.reporter.Usage(d.program, err)
	WriteGroupUsage(d.stderr, d.program, node)
	return ExitUsage
}

func (d *Dispatcher) writeTopUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [global-options] <command> [args...]\n", d.program)
	if d.description != "" {
		fmt.Fprintf(w, "\n%s\n", d.description)
	}
	if d.registry.Root().IsGroup() {
		fmt.Fprintf(w, "\nCommands:\n")
		writeListing(w, d.registry.Root())
	}
	fmt.Fprintf(w, "\nGlobal options:\n%s", flags.FlagUsages())
	if d.version != "" {
		fmt.Fprintf(w, "\n%s\n", d.version)
	}
}

// displayArgs renders the bound values shown on the entry marker:
// positionals always, options only when they differ from the default.
func displayArgs(cmd *Command, values Values) []string {
	var out []string
	for _, p := range cmd.Params {
		v := values[p.Name]
		switch {
		case p.Variadic:
			items, _ := v.([]string)
			for _, item := range items {
				out = append(out, formatValue(item))
			}
		case p.Kind == PositionalKind:
			out = append(out, formatValue(v))
		case reflect.DeepEqual(v, p.Default):
		default:
			out = append(out, p.DisplayName()+"="+formatValue(v))
		}
	}
	return out
}
