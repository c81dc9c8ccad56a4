package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Format "json" writes one JSON object
// per line; anything else uses the human readable console writer. An unknown
// level falls back to info.
func NewLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", "meshmon").Logger()
}
