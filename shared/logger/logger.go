package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger writing JSON to stdout, or a human readable console
// stream when pretty is set. An unknown level falls back to info.
func New(level string, pretty bool) *zerolog.Logger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(out io.Writer, level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &l
}
