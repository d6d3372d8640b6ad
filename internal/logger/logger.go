package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Development gets debug level and a console
// writer; everything else logs JSON at info.
func New(environment string) zerolog.Logger {
	return NewWithWriter(environment, os.Stdout)
}

func NewWithWriter(environment string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	l := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if environment == "development" {
		l = l.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return l
}

// Component derives a child logger tagged with the component name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}
