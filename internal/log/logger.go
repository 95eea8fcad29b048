package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console zerolog logger on stderr with the given level string (debug, info, warn, error).
func New(level string) *zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter builds a console logger writing to out.
func NewWithWriter(out io.Writer, level string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// OrNop returns logger, or a discarding logger when it is nil.
func OrNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
