// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level and output. pretty selects the human readable
// console format; otherwise one JSON object per line is written.
func Init(level string, pretty bool) error {
	return InitWriter(os.Stderr, level, pretty)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, pretty bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// ParseLevel accepts zerolog level names in any case. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
