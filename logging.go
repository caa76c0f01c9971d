package plano

import (
	"io"

	"github.com/rs/zerolog"
)

// newLogger builds the console logger handed to commands. Verbose lowers
// the level to debug; quiet raises it to error.
func newLogger(w io.Writer, program string, s Settings) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case s.Verbose:
		level = zerolog.DebugLevel
	case s.Quiet:
		level = zerolog.ErrorLevel
	}
	out := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      s.NoColor,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(out).Level(level).With().Str("program", program).Logger()
}
