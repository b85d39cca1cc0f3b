// Package logging builds the process-wide zerolog logger from
// configuration. Components derive their own loggers with
// log.With().Str("component", ...).
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger at the given level. Unknown level
// strings fall back to info. Pretty switches to the human-readable
// console writer for local runs; the default is JSON lines.
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
