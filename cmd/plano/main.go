// Command plano runs the commands declared in a planofile.
//
//	plano [-f FILE] [global-options] <command> [args...]
//
// Without -f, the file is taken from PLANO_FILE or found in the current
// directory under one of the names in planofile.SearchNames.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/axsh/plano"
	"github.com/axsh/plano/files"
	"github.com/axsh/plano/internal/planofile"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	w, err := files.OS()
	if err != nil {
		stop()
		os.Stderr.WriteString("plano: " + err.Error() + "\n")
		os.Exit(plano.ExitFailure)
	}
	code := run(ctx, w, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, w *files.Workspace, argv []string, stdout, stderr io.Writer) int {
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:          stderr,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}).With().Str("program", "plano").Logger()

	flags, rest, err := fileOption(argv)
	if err != nil {
		log.Error().Err(err).Msg("parsing arguments")
		return plano.ExitUsage
	}

	v := viper.New()
	if err := v.BindEnv("file", "PLANO_FILE"); err != nil {
		log.Error().Err(err).Msg("reading environment")
		return plano.ExitFailure
	}
	if err := v.BindPFlag("file", flags.Lookup("file")); err != nil {
		log.Error().Err(err).Msg("reading flags")
		return plano.ExitFailure
	}

	path := v.GetString("file")
	if path == "" {
		found, err := planofile.Find(w)
		if err != nil {
			log.Error().Err(err).Msg("loading planofile")
			return plano.ExitFailure
		}
		path = found
	}

	f, err := planofile.Load(w, path)
	if err != nil {
		log.Error().Err(err).Msg("loading planofile")
		return plano.ExitFailure
	}

	opts := []plano.Option{
		plano.WithDispatcherOptions(plano.WithOutput(stdout, stderr)),
	}
	if f.Default != "" {
		opts = append(opts, plano.WithDefault(f.Default))
	}
	app := plano.New(plano.Config{
		Name:        "plano",
		Version:     version,
		Description: "Commands from " + filepath.Base(f.Path),
	}, opts...)

	if err := planofile.Register(app.Registry(), f, w); err != nil {
		log.Error().Err(err).Str("file", f.Path).Msg("registering commands")
		return plano.ExitFailure
	}
	return app.RunContext(ctx, rest)
}

// fileOption parses -f/--file among the leading global options. The
// other global options given are passed on ahead of the command path.
func fileOption(argv []string) (*pflag.FlagSet, []string, error) {
	flags := plano.GlobalFlags("plano")
	flags.StringP("file", "f", "", "Load commands from FILE")
	rest, err := plano.ParseLeading(flags, argv)
	if err != nil {
		return nil, nil, err
	}
	var globals []string
	flags.Visit(func(f *pflag.Flag) {
		if f.Name != "file" {
			globals = append(globals, "--"+f.Name+"="+f.Value.String())
		}
	})
	return flags, append(globals, rest...), nil
}
