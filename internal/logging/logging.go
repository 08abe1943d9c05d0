// Package logging wires the process-wide zerolog logger, replacing
// the teacher's log.Println call sites with structured fields the
// dispatcher and command service attach campaign/message ids to.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger. pretty selects the human-readable
// console writer for local development; production deployments want
// the default JSON writer for log aggregation.
func New(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return logger
}
