package cliconfig

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger builds the process logger. Interactive terminals get the human
// console format; everything else (service units, pipes) gets JSON lines.
func Logger() zerolog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
