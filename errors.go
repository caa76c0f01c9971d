package plano

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes returned by Dispatcher.Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitSkipped = 3
)

// ErrHelpRequested is returned by Bind when -h or --help is present. It is
// not a failure: the dispatcher prints usage and exits 0.
var ErrHelpRequested = errors.New("help requested")

// exitCoder is implemented by errors that decide the process exit code.
type exitCoder interface {
	ExitCode() int
}

// ExitCodeOf maps an outcome to a process exit code. Errors that do not
// carry their own code are unexpected failures. ErrHelpRequested maps to
// ExitOK only when it is returned bare; wrapped inside another failure it
// is reported like any other error.
func ExitCodeOf(err error) int {
	if err == nil || err == ErrHelpRequested {
		return ExitOK
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}

// UsageKind classifies a malformed invocation.
type UsageKind string

const (
	MissingSubcommand       UsageKind = "subcommand required"
	UnknownOption           UsageKind = "unknown option"
	MissingRequiredArgument UsageKind = "missing required argument"
	MissingValue            UsageKind = "missing value"
	InvalidValue            UsageKind = "invalid value"
	TooManyArguments        UsageKind = "too many arguments"
)

// UsageError reports a command line that does not match the command's
// parameters.
type UsageError struct {
	Kind UsageKind
	// Command is the dotted path of the command being bound, if any.
	Command string
	// Name is the offending option or parameter name.
	Name string
	// Value is the offending token, if any.
	Value string
	// Suggestion is a close match for an unknown name.
	Suggestion string
	Err        error
}

func (e *UsageError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case UnknownOption:
		fmt.Fprintf(&b, "unknown option %s", e.Name)
	case MissingRequiredArgument:
		fmt.Fprintf(&b, "missing required argument %s", e.Name)
	case MissingValue:
		fmt.Fprintf(&b, "option %s requires a value", e.Name)
	case InvalidValue:
		if e.Name == "" && e.Err != nil {
			b.WriteString(e.Err.Error())
			break
		}
		fmt.Fprintf(&b, "invalid value %q for %s", e.Value, e.Name)
		if e.Err != nil {
			fmt.Fprintf(&b, ": %v", e.Err)
		}
	case TooManyArguments:
		fmt.Fprintf(&b, "unexpected argument %q", e.Value)
	default:
		b.WriteString(string(e.Kind))
		if e.Name != "" {
			fmt.Fprintf(&b, " %s", e.Name)
		}
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %s?)", e.Suggestion)
	}
	return b.String()
}

func (e *UsageError) Unwrap() error { return e.Err }

func (e *UsageError) ExitCode() int { return ExitUsage }

// UnknownCommandError is returned when argv names no registered command
// or group.
type UnknownCommandError struct {
	Path       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %q (did you mean %q?)", e.Path, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %q", e.Path)
}

func (e *UnknownCommandError) ExitCode() int { return ExitUsage }

// DuplicateCommandError is returned when a path is registered twice.
type DuplicateCommandError struct {
	Path string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %q already registered", e.Path)
}

// SignatureError is returned when a target function does not fit its
// parameter specs.
type SignatureError struct {
	Path   string
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("command %q: %s", e.Path, e.Reason)
}

// BusinessError is a failure a command raises on purpose. Its message is
// reported without further diagnostics.
type BusinessError struct {
	Msg string
	Err error
}

// Fail creates a BusinessError. A %w verb keeps the wrapped cause
// available to verbose reporting.
func Fail(format string, args ...any) *BusinessError {
	err := fmt.Errorf(format, args...)
	return &BusinessError{Msg: err.Error(), Err: errors.Unwrap(err)}
}

func (e *BusinessError) Error() string { return e.Msg }

func (e *BusinessError) Unwrap() error { return e.Err }

func (e *BusinessError) ExitCode() int { return ExitFailure }

// UnexpectedError wraps any other fault escaping a command, including
// recovered panics, for which Stack holds the goroutine trace.
type UnexpectedError struct {
	Err   error
	Stack []byte
}

func (e *UnexpectedError) Error() string { return e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }

func (e *UnexpectedError) ExitCode() int { return ExitFailure }

// SkipError marks a command as intentionally skipped.
type SkipError struct {
	Reason string
}

// Skip returns an error that ends the command with the skipped outcome.
func Skip(format string, args ...any) *SkipError {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

func (e *SkipError) Error() string { return e.Reason }

func (e *SkipError) ExitCode() int { return ExitSkipped }

// classify normalizes an error returned from a target so that every
// failure is one of BusinessError, UnexpectedError or SkipError.
func classify(err error) error {
	var (
		business   *BusinessError
		unexpected *UnexpectedError
		skip       *SkipError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &business), errors.As(err, &unexpected), errors.As(err, &skip):
		return err
	}
	return &UnexpectedError{Err: err}
}

// causes lists the messages of err's wrapped chain, outermost first,
// skipping links that only repeat their child's message.
func causes(err error) []string {
	var out []string
	for err != nil {
		msg := err.Error()
		if len(out) == 0 || out[len(out)-1] != msg {
			out = append(out, msg)
		}
		err = errors.Unwrap(err)
	}
	return out
}
