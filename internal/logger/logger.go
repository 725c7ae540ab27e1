// Package logger builds the zerolog logger used for diagnostics.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type Config struct {
	Level      string
	Debug      bool
	Output     string // "stderr" (default) or "stdout"
	TimeFormat string
}

// New returns a logger writing to the configured output. Terminals get
// zerolog's console format, anything else gets JSON.
func New(config Config) (zerolog.Logger, error) {
	output := os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	}

	return NewWithWriter(config, output, term.IsTerminal(int(output.Fd())))
}

// NewWithWriter is New with an explicit writer.
func NewWithWriter(config Config, w io.Writer, console bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
