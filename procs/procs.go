// Package procs runs subprocesses and shell scripts for command bodies.
//
// Every helper echoes the command it runs to stderr as "+ cmd" unless
// Quiet is given, and reports the outcome as a Result carrying the exit
// code. Call turns a non-zero exit into an *ExitError.
package procs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExitTimeout is the code reported when the context deadline ends a
// process.
const ExitTimeout = 124

// Result is the outcome of a process.
type Result struct {
	Code int
	Err  error
}

// Ok reports whether the process exited with status 0.
func (r Result) Ok() bool {
	return r.Code == 0 && r.Err == nil
}

// ExitError is returned by Call when the process fails.
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

type options struct {
	dir          string
	env          []string
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	quiet        bool
	execHandlers []func(interp.ExecHandlerFunc) interp.ExecHandlerFunc
}

// Option configures how a process runs.
type Option func(*options)

// Dir sets the working directory.
func Dir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Env adds KEY=VALUE pairs on top of the host environment.
func Env(pairs ...string) Option {
	return func(o *options) { o.env = append(o.env, pairs...) }
}

// Stdin sets the process input.
func Stdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

// Stdout sets the process output.
func Stdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Stderr sets the process error stream, which also receives the echo.
func Stderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// Quiet disables the "+ cmd" echo.
func Quiet() Option {
	return func(o *options) { o.quiet = true }
}

// ExecHandler adds a middleware that sees every simple command a Shell
// script runs, so callers can implement commands of their own.
func ExecHandler(mw func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc) Option {
	return func(o *options) { o.execHandlers = append(o.execHandlers, mw) }
}

func newOptions(opts []Option) *options {
	o := &options{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) echo(text string) {
	if !o.quiet {
		fmt.Fprintf(o.stderr, "+ %s\n", text)
	}
}

func (o *options) command(ctx context.Context, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = o.dir
	if len(o.env) > 0 {
		cmd.Env = append(os.Environ(), o.env...)
	}
	cmd.Stdin = o.stdin
	cmd.Stdout = o.stdout
	cmd.Stderr = o.stderr
	return cmd
}

// Run runs argv and waits for it.
func Run(ctx context.Context, argv []string, opts ...Option) Result {
	if len(argv) == 0 {
		return Result{Code: 1, Err: errors.New("procs: empty command")}
	}
	o := newOptions(opts)
	o.echo(strings.Join(argv, " "))
	return result(ctx, o.command(ctx, argv).Run())
}

// Capture runs argv and returns its standard output.
func Capture(ctx context.Context, argv []string, opts ...Option) (string, Result) {
	var buf bytes.Buffer
	res := Run(ctx, argv, append(opts, Stdout(&buf))...)
	return buf.String(), res
}

// Call runs argv and returns an *ExitError if it does not succeed.
func Call(ctx context.Context, argv []string, opts ...Option) error {
	res := Run(ctx, argv, opts...)
	if res.Ok() {
		return nil
	}
	return &ExitError{Command: strings.Join(argv, " "), Code: res.Code, Err: res.Err}
}

// Shell runs script with an embedded POSIX shell. The script stops at the
// first failing command.
func Shell(ctx context.Context, script string, opts ...Option) Result {
	o := newOptions(opts)
	file, err := syntax.NewParser().Parse(strings.NewReader(script), "")
	if err != nil {
		return Result{Code: 2, Err: err}
	}
	for _, stmt := range file.Stmts {
		var b strings.Builder
		if err := syntax.NewPrinter(syntax.SingleLine(true)).Print(&b, stmt); err == nil {
			o.echo(b.String())
		}
	}

	runnerOpts := []interp.RunnerOption{
		interp.StdIO(o.stdin, o.stdout, o.stderr),
		interp.Env(expand.ListEnviron(append(os.Environ(), o.env...)...)),
		interp.Params("-e"),
	}
	if o.dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(o.dir))
	}
	if len(o.execHandlers) > 0 {
		runnerOpts = append(runnerOpts, interp.ExecHandlers(o.execHandlers...))
	}
	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return Result{Code: 1, Err: err}
	}
	return result(ctx, runner.Run(ctx, file))
}

func result(ctx context.Context, err error) Result {
	if err == nil {
		return Result{}
	}
	var (
		status  interp.ExitStatus
		exitErr *exec.ExitError
	)
	switch {
	case errors.As(err, &status):
		return Result{Code: int(status), Err: err}
	case errors.As(err, &exitErr):
		return Result{Code: exitErr.ExitCode(), Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{Code: ExitTimeout, Err: err}
	}
	return Result{Code: 1, Err: err}
}

// AwaitPort waits until a TCP connection to host:port succeeds, retrying
// with exponential backoff until timeout elapses.
func AwaitPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = timeout

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	err := backoff.Retry(func() error {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("timed out waiting for %s: %w", addr, err)
	}
	return nil
}
