// ABOUTME: Process-wide zerolog setup for binaries
// ABOUTME: Writes to a log file and optionally a console writer
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured level when set
const EnvLogLevel = "VILLAS_LOG_LEVEL"

// Config controls log destinations
type Config struct {
	Level   string
	File    string // empty disables file logging
	Console bool      // human-readable console output
	Output  io.Writer // console destination, stdout when nil
	NoColor bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the global zerolog logger. The returned closer
// releases the log file.
func Setup(cfg Config) (io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if lvl, err := ParseLevel(raw); err == nil {
			level = lvl
		}
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console || len(writers) == 0 {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: "15:04:05.000",
		})
	}

	log.Logger = New(zerolog.MultiLevelWriter(writers...), level)
	return closer, nil
}

// New returns a timestamped logger writing to w
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names plus a few aliases
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}
