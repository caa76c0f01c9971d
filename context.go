package plano

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type dispatcherKey struct{}

// withDispatcher attaches d to ctx so command bodies can reach it.
func withDispatcher(ctx context.Context, d *Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

func dispatcherFrom(ctx context.Context) *Dispatcher {
	d, _ := ctx.Value(dispatcherKey{}).(*Dispatcher)
	return d
}

// ErrNoDispatcher is returned by Call and Invoke when ctx does not come
// from a running command.
var ErrNoDispatcher = errors.New("plano: context carries no dispatcher")

// Call runs another registered command from inside a command body. tokens
// are bound exactly as on the command line. The nested invocation is
// traced one level deeper than the caller, and its error is returned to
// the caller unchanged.
func Call(ctx context.Context, path string, tokens ...string) error {
	d := dispatcherFrom(ctx)
	if d == nil {
		return ErrNoDispatcher
	}
	return d.Call(ctx, path, tokens...)
}

// Invoke runs another registered command with already-typed values.
// Parameters missing from values take their defaults.
func Invoke(ctx context.Context, path string, values Values) error {
	d := dispatcherFrom(ctx)
	if d == nil {
		return ErrNoDispatcher
	}
	return d.Invoke(ctx, path, values)
}

// Stdout returns the writer commands should print their output to.
func Stdout(ctx context.Context) io.Writer {
	if d := dispatcherFrom(ctx); d != nil {
		return d.stdout
	}
	return os.Stdout
}

// Stderr returns the diagnostic stream.
func Stderr(ctx context.Context) io.Writer {
	if d := dispatcherFrom(ctx); d != nil {
		return d.stderr
	}
	return os.Stderr
}

// Logger returns the console logger configured by the global options.
func Logger(ctx context.Context) *zerolog.Logger {
	if d := dispatcherFrom(ctx); d != nil {
		return &d.logger
	}
	nop := zerolog.Nop()
	return &nop
}

// SettingsFrom returns the global settings of the running dispatcher.
func SettingsFrom(ctx context.Context) Settings {
	if d := dispatcherFrom(ctx); d != nil {
		return d.settings
	}
	return Settings{}
}

// Depth returns how many invocations are active, 0 outside a command.
func Depth(ctx context.Context) int {
	if d := dispatcherFrom(ctx); d != nil {
		return len(d.stack)
	}
	return 0
}
