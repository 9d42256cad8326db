// Package log configures the process-wide zerolog logger.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger from the given level name.
// An unparsable level falls back to info. With pretty enabled the output
// goes through a console writer instead of raw JSON.
func Setup(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	if err != nil {
		log.Warn().
			Str("configured_log_level", level).
			Str("fallback_log_level", lvl.String()).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
}
