package plano

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	reg    *Registry
	clock  *fakeClock
	opts   []DispatcherOption
	stdout bytes.Buffer
	stderr bytes.Buffer
	calls  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:   NewRegistry(),
		clock: &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	f.reg.MustRegister("greeting", func(ctx context.Context, message string) error {
		f.calls = append(f.calls, "greeting")
		fmt.Fprintln(Stdout(ctx), message)
		return nil
	}, Help("Print a greeting"), Params(Opt("message", "Howdy", "The greeting").Short("m")))

	f.reg.MustRegister("build", func(ctx context.Context, target string, release bool) error {
		f.calls = append(f.calls, "build:"+target)
		return nil
	}, Help("Build a target"), Params(Arg("target", "What to build"), Flag("release", "Optimize")))

	f.reg.MustRegister("clean", func(ctx context.Context) error {
		f.calls = append(f.calls, "clean")
		return nil
	}, Help("Remove build output"))

	f.reg.MustRegister("save", func(ctx context.Context, wrapped bool) error {
		f.clock.Advance(2 * time.Second)
		if wrapped {
			return Fail("saving: %w", errors.New("disk full"))
		}
		return Fail("disk full")
	}, Params(Flag("wrapped", "")))

	f.reg.MustRegister("crash", func(ctx context.Context) error {
		panic("kaboom")
	})
	f.reg.MustRegister("plain", func(ctx context.Context) error {
		return errors.New("something odd")
	})
	f.reg.MustRegister("skip", func(ctx context.Context) error {
		return Skip("not on %s", "CI")
	})

	f.reg.MustRegister("outer", func(ctx context.Context) error {
		return Call(ctx, "inner")
	})
	f.reg.MustRegister("inner", func(ctx context.Context) error {
		return Call(ctx, "leaf")
	})
	f.reg.MustRegister("leaf", func(ctx context.Context, fail bool) error {
		if fail {
			return Fail("boom")
		}
		return nil
	}, Params(Flag("fail", "")))
	f.reg.MustRegister("failing-outer", func(ctx context.Context) error {
		return Call(ctx, "inner-failing")
	})
	f.reg.MustRegister("inner-failing", func(ctx context.Context) error {
		return Call(ctx, "leaf", "--fail")
	})

	f.reg.MustRegister("db.migrate", func(ctx context.Context, steps int) error {
		f.calls = append(f.calls, fmt.Sprintf("migrate:%d", steps))
		return nil
	}, Params(Opt("steps", 1, "")))
	f.reg.Group("db", "Database tasks")
	return f
}

func (f *fixture) run(argv ...string) int {
	opts := append([]DispatcherOption{
		WithProgram("tool"),
		WithOutput(&f.stdout, &f.stderr),
		WithClock(f.clock),
	}, f.opts...)
	return NewDispatcher(f.reg, opts...).Run(context.Background(), argv)
}

func TestGreetingDefaults(t *testing.T) {
	f := newFixture(t)

	code := f.run("greeting")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Howdy\n", f.stdout.String())
	assert.Equal(t, "--> greeting\n<-- greeting\nOK (0.0s)\n", f.stderr.String())
}

func TestGreetingWithMessage(t *testing.T) {
	f := newFixture(t)

	code := f.run("greeting", "--message", "Hello")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Hello\n", f.stdout.String())
	assert.Contains(t, f.stderr.String(), "--> greeting (message=\"Hello\")\n")
}

func TestMissingRequiredArgument(t *testing.T) {
	f := newFixture(t)

	code := f.run("build")

	assert.Equal(t, ExitUsage, code)
	assert.Empty(t, f.calls)
	assert.Contains(t, f.stderr.String(), "error: tool: missing required argument TARGET\n")
	assert.Contains(t, f.stderr.String(), "Usage: tool build [-h] [--release] TARGET\n")
	assert.Empty(t, f.stdout.String())
}

func TestBusinessFailure(t *testing.T) {
	f := newFixture(t)

	code := f.run("save")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "<-- save FAILED\nFAILED (2.0s): disk full\n")
	assert.NotContains(t, f.stderr.String(), "goroutine")
	assert.NotContains(t, f.stderr.String(), "unexpected error")
}

func TestVerboseShowsCauses(t *testing.T) {
	f := newFixture(t)

	code := f.run("--verbose", "save", "--wrapped")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "FAILED (2.0s): saving: disk full\n")
	assert.Contains(t, f.stderr.String(), "  caused by: disk full\n")
	assert.Contains(t, f.stderr.String(), "running")
}

func TestPanicIsUnexpected(t *testing.T) {
	f := newFixture(t)

	code := f.run("crash")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "FAILED (0.0s): panic: kaboom\n")
	assert.Contains(t, f.stderr.String(), "unexpected error: *errors.errorString")
	assert.NotContains(t, f.stderr.String(), "goroutine")

	f = newFixture(t)
	code = f.run("--verbose", "crash")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "goroutine")
}

func TestPlainErrorIsUnexpected(t *testing.T) {
	f := newFixture(t)

	code := f.run("plain")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "FAILED (0.0s): something odd\n")
	assert.Contains(t, f.stderr.String(), "unexpected error: *errors.errorString")
}

func TestNestedHelpRequestFails(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("asks-help", func(ctx context.Context) error {
		return Call(ctx, "build", "--help")
	})

	code := f.run("asks-help")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "FAILED (0.0s): calling build: help requested\n")
	assert.Empty(t, f.stdout.String())
}

func TestExitCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"help", ErrHelpRequested, ExitOK},
		{"wrapped help", &UnexpectedError{Err: fmt.Errorf("calling build: %w", ErrHelpRequested)}, ExitFailure},
		{"help in plain wrap", fmt.Errorf("oops: %w", ErrHelpRequested), ExitFailure},
		{"usage", &UsageError{Kind: UnknownOption, Name: "--x"}, ExitUsage},
		{"business", Fail("no"), ExitFailure},
		{"skip", Skip("later"), ExitSkipped},
		{"plain", errors.New("odd"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestSkip(t *testing.T) {
	f := newFixture(t)

	code := f.run("skip")

	assert.Equal(t, ExitSkipped, code)
	assert.Contains(t, f.stderr.String(), "<-- skip SKIPPED\nSKIPPED (0.0s): not on CI\n")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	code := f.run("gretting")

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, f.stderr.String(), `error: tool: unknown command "gretting" (did you mean "greeting"?)`)
	assert.Contains(t, f.stderr.String(), "Commands:")
}

func TestUnknownLeadingOption(t *testing.T) {
	f := newFixture(t)

	code := f.run("--bogus")

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, f.stderr.String(), "unknown option --bogus")
}

func TestHelp(t *testing.T) {
	f := newFixture(t)
	code := f.run("--help")
	assert.Equal(t, ExitOK, code)
	out := f.stdout.String()
	assert.Contains(t, out, "Usage: tool [global-options] <command> [args...]")
	assert.Contains(t, out, "greeting")
	assert.Contains(t, out, "Print a greeting")
	assert.Contains(t, out, "--verbose")
	assert.Empty(t, f.stderr.String())

	f = newFixture(t)
	code = f.run("build", "--help")
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, f.calls)
	assert.Contains(t, f.stdout.String(), "Usage: tool build [-h] [--release] TARGET")
	assert.Contains(t, f.stdout.String(), "What to build")
}

func TestEmptyArgvPrintsUsage(t *testing.T) {
	f := newFixture(t)

	code := f.run()

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, f.stdout.String(), "Usage: tool")
	assert.Empty(t, f.calls)
}

func TestDefaultCommand(t *testing.T) {
	f := newFixture(t)
	f.opts = append(f.opts, WithDefaultCommand("greeting"))

	code := f.run()
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Howdy\n", f.stdout.String())

	f.stdout.Reset()
	code = f.run("-m", "Yo")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "Yo\n", f.stdout.String())
}

func TestNestedIndentation(t *testing.T) {
	f := newFixture(t)

	code := f.run("outer")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t,
		"--> outer\n"+
			"  --> inner\n"+
			"    --> leaf\n"+
			"    <-- leaf\n"+
			"  <-- inner\n"+
			"<-- outer\n"+
			"OK (0.0s)\n",
		f.stderr.String())
}

func TestNestedFailurePropagates(t *testing.T) {
	f := newFixture(t)

	code := f.run("failing-outer")

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t,
		"--> failing-outer\n"+
			"  --> inner-failing\n"+
			"    --> leaf (fail=true)\n"+
			"    <-- leaf FAILED\n"+
			"  <-- inner-failing FAILED\n"+
			"<-- failing-outer FAILED\n"+
			"FAILED (0.0s): boom\n",
		f.stderr.String())
}

func TestNestedUsageErrorIsUnexpected(t *testing.T) {
	f := newFixture(t)
	f.reg.MustRegister("caller", func(ctx context.Context) error {
		return Call(ctx, "build")
	})

	code := f.run("caller")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, f.stderr.String(), "calling build: missing required argument TARGET")
}

func TestInvoke(t *testing.T) {
	f := newFixture(t)
	var wrongType error
	f.reg.MustRegister("caller", func(ctx context.Context) error {
		if err := Invoke(ctx, "build", Values{"target": "typed", "release": true}); err != nil {
			return err
		}
		wrongType = Invoke(ctx, "build", Values{"target": 7})
		return Invoke(ctx, "db.migrate", nil)
	})

	code := f.run("caller")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"build:typed", "migrate:1"}, f.calls)
	assert.ErrorContains(t, wrongType, `parameter "target" wants string, got int`)
	assert.Contains(t, f.stderr.String(), "  --> build (\"typed\", release=true)\n")
}

func TestCallOutsideDispatcher(t *testing.T) {
	assert.ErrorIs(t, Call(context.Background(), "build", "x"), ErrNoDispatcher)
	assert.ErrorIs(t, Invoke(context.Background(), "build", nil), ErrNoDispatcher)
	assert.Equal(t, 0, Depth(context.Background()))
}

func TestCommaChain(t *testing.T) {
	f := newFixture(t)

	code := f.run("clean,build", "app", "--release")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"clean", "build:app"}, f.calls)
	assert.Equal(t,
		"--> clean\n<-- clean\n--> build (\"app\", release=true)\n<-- build\nOK (0.0s)\n",
		f.stderr.String())

	f = newFixture(t)
	code = f.run("clean,nope", "x")
	assert.Equal(t, ExitUsage, code)
	assert.Empty(t, f.calls)
}

func TestGroups(t *testing.T) {
	f := newFixture(t)
	code := f.run("db", "migrate", "--steps", "3")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"migrate:3"}, f.calls)

	f = newFixture(t)
	code = f.run("db.migrate")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"migrate:1"}, f.calls)

	f = newFixture(t)
	code = f.run("db")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, f.stderr.String(), "subcommand required db")
	assert.Contains(t, f.stderr.String(), "Database tasks")

	f = newFixture(t)
	code = f.run("db", "--help")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, f.stdout.String(), "Usage: tool db <command> [args...]")

	f = newFixture(t)
	code = f.run("db", "migrat")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, f.stderr.String(), `unknown command "db.migrat" (did you mean "migrate"?)`)
}

func TestQuiet(t *testing.T) {
	f := newFixture(t)
	code := f.run("--quiet", "outer")
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, f.stderr.String())

	f = newFixture(t)
	code = f.run("--quiet", "save")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "FAILED (2.0s): disk full\n", f.stderr.String())
}

func TestObserver(t *testing.T) {
	f := newFixture(t)
	var seen []*Invocation
	f.opts = append(f.opts, WithObserver(func(inv *Invocation) { seen = append(seen, inv) }))

	code := f.run("failing-outer")

	assert.Equal(t, ExitFailure, code)
	require.Len(t, seen, 3)
	assert.Equal(t, "leaf", seen[0].Command.FullPath())
	assert.Equal(t, 3, seen[0].Depth)
	assert.Equal(t, true, seen[0].Args["fail"])
	assert.Equal(t, "failing-outer", seen[2].Command.FullPath())
	assert.Equal(t, 1, seen[2].Depth)
	for _, inv := range seen {
		assert.Error(t, inv.Err)
		assert.Zero(t, inv.Elapsed())
	}
}

func TestContextAccessors(t *testing.T) {
	f := newFixture(t)
	var depth int
	var settings Settings
	f.reg.MustRegister("inspect", func(ctx context.Context) error {
		depth = Depth(ctx)
		settings = SettingsFrom(ctx)
		Logger(ctx).Info().Msg("inspecting")
		return nil
	})

	code := f.run("--verbose", "inspect")

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, 1, depth)
	assert.True(t, settings.Verbose)
	assert.True(t, settings.NoColor)
	assert.Contains(t, f.stderr.String(), "inspecting")
}
