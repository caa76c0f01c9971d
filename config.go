package plano

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Settings holds the global options that shape reporting.
type Settings struct {
	// Verbose enables debug logging and full error context on failure.
	Verbose bool
	// Quiet suppresses trace markers, the OK line and notices.
	Quiet bool
	// NoColor disables ANSI colors on the diagnostic stream.
	NoColor bool
}

// GlobalFlags defines the options accepted before the command path.
// Callers may add their own options to the set before parsing it with
// ParseLeading.
func GlobalFlags(program string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(program, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.SetInterspersed(false)
	flags.BoolP("help", "h", false, "Show this help message and exit")
	flags.Bool("verbose", false, "Print detailed logging to the console")
	flags.Bool("quiet", false, "Print no logging to the console")
	flags.Bool("no-color", false, "Disable colored output")
	return flags
}

// ParseLeading parses the options at the front of argv into fs and
// returns the remaining arguments. Parsing stops at the first positional,
// at "--" (which is consumed), or at the first option fs does not define;
// that option and everything after it are returned untouched.
func ParseLeading(fs *pflag.FlagSet, argv []string) ([]string, error) {
	fs.SetInterspersed(false)
	stop := len(argv)
	err := fs.ParseAll(argv, func(*pflag.Flag, string) error { return nil })
	var notExist *pflag.NotExistError
	if errors.As(err, &notExist) {
		stop = unknownAt(argv, notExist)
	}
	if err := fs.Parse(argv[:stop]); err != nil {
		return nil, err
	}
	return append(fs.Args(), argv[stop:]...), nil
}

// unknownAt finds the token of argv that holds the unknown option.
func unknownAt(argv []string, e *pflag.NotExistError) int {
	name, shorts := e.GetSpecifiedName(), e.GetSpecifiedShortnames()
	for i, tok := range argv {
		switch {
		case tok == "--":
			return i
		case shorts != "":
			if !strings.HasPrefix(tok, "--") && strings.HasPrefix(tok, "-") && strings.HasSuffix(tok, shorts) {
				return i
			}
		case tok == "--"+name || strings.HasPrefix(tok, "--"+name+"="):
			return i
		}
	}
	return len(argv)
}

// loadSettings resolves settings from parsed global flags, then PLANO_*
// environment variables (and NO_COLOR), then defaults. Each call uses its
// own viper instance so dispatchers never share state.
func loadSettings(flags *pflag.FlagSet, stderr io.Writer) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("PLANO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("no-color", "PLANO_NO_COLOR", "NO_COLOR"); err != nil {
		return Settings{}, err
	}
	if err := v.BindPFlags(flags); err != nil {
		return Settings{}, err
	}

	s := Settings{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color") || !isTerminal(stderr),
	}
	if s.Verbose {
		s.Quiet = false
	}
	return s, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
