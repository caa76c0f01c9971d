package plano

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter writes the framework's trace to the diagnostic stream: entry
// and exit markers for every invocation and a closing OK, FAILED or
// SKIPPED line for the top-level command.
type Reporter struct {
	w       io.Writer
	quiet   bool
	verbose bool

	marker  *color.Color
	ok      *color.Color
	failed  *color.Color
	skipped *color.Color
	faint   *color.Color
}

// NewReporter creates a reporter writing to w.
func NewReporter(w io.Writer, settings Settings) *Reporter {
	r := &Reporter{
		w:       w,
		quiet:   settings.Quiet,
		verbose: settings.Verbose,
		marker:  color.New(color.FgMagenta),
		ok:      color.New(color.FgGreen),
		failed:  color.New(color.FgRed, color.Bold),
		skipped: color.New(color.FgYellow),
		faint:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.marker, r.ok, r.failed, r.skipped, r.faint} {
		if settings.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return r
}

func indent(depth int) string {
	if depth <= 1 {
		return ""
	}
	return strings.Repeat("  ", depth-1)
}

// Enter writes "--> name (args)" at the given call depth (1 for the
// top-level command).
func (r *Reporter) Enter(depth int, name string, args []string) {
	if r.quiet {
		return
	}
	line := "--> " + name
	if len(args) > 0 {
		line += " (" + strings.Join(args, ", ") + ")"
	}
	r.marker.Fprintf(r.w, "%s%s\n", indent(depth), line)
}

// Leave writes "<-- name", marking frames a failure passed through.
func (r *Reporter) Leave(depth int, name string, err error) {
	if r.quiet {
		return
	}
	if err == nil {
		r.marker.Fprintf(r.w, "%s<-- %s\n", indent(depth), name)
		return
	}
	r.marker.Fprintf(r.w, "%s<-- %s ", indent(depth), name)
	var skip *SkipError
	if errors.As(err, &skip) {
		r.skipped.Fprintln(r.w, "SKIPPED")
	} else {
		r.failed.Fprintln(r.w, "FAILED")
	}
}

// Result writes the closing line of a top-level invocation.
func (r *Reporter) Result(elapsed time.Duration, err error) {
	stamp := "(" + FormatDuration(elapsed) + ")"

	var (
		skip       *SkipError
		unexpected *UnexpectedError
	)
	switch {
	case err == nil:
		if r.quiet {
			return
		}
		r.ok.Fprint(r.w, "OK")
		r.marker.Fprintf(r.w, " %s\n", stamp)
		return
	case errors.As(err, &skip):
		if r.quiet {
			return
		}
		r.skipped.Fprint(r.w, "SKIPPED")
		fmt.Fprintf(r.w, " %s: %s\n", stamp, skip.Reason)
		return
	}

	r.failed.Fprint(r.w, "FAILED")
	fmt.Fprintf(r.w, " %s: %s\n", stamp, err.Error())

	if errors.As(err, &unexpected) {
		r.faint.Fprintf(r.w, "  unexpected error: %T\n", innermost(unexpected.Err))
	}
	if !r.verbose {
		return
	}
	chain := causes(err)
	for _, c := range chain[1:] {
		r.faint.Fprintf(r.w, "  caused by: %s\n", c)
	}
	if unexpected != nil && len(unexpected.Stack) > 0 {
		r.faint.Fprintf(r.w, "%s\n", strings.TrimRight(string(unexpected.Stack), "\n"))
	}
}

// Usage writes a usage error line; the caller follows it with usage text.
func (r *Reporter) Usage(program string, err error) {
	r.failed.Fprint(r.w, "error")
	fmt.Fprintf(r.w, ": %s: %s\n", program, err.Error())
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// FormatDuration renders an elapsed time the way the trace shows it:
// tenths of a second below a minute, whole seconds below four minutes,
// whole minutes beyond.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds >= 240:
		return fmt.Sprintf("%.0fm", seconds/60)
	case seconds >= 60:
		return fmt.Sprintf("%.0fs", seconds)
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}
