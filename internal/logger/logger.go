package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the service logger. Development gets a human-readable console
// writer, everything else structured JSON.
func New(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if env == "development" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
