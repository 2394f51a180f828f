package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the application logger. The terminal belongs to the UI, so
// output goes to the file at path; an empty path discards everything.
// The returned closer releases the file.
func Init(level, format, path string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	out, closer, err := openOutput(path)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var logger zerolog.Logger
	if strings.ToLower(format) == "json" {
		logger = zerolog.New(out).With().
			Timestamp().
			Caller().
			Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
		logger = zerolog.New(output).With().
			Timestamp().
			Caller().
			Logger()
	}

	log.Logger = logger
	return logger, closer, nil
}

func openOutput(path string) (io.Writer, io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		return io.Discard, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return file, file, nil
}

// parseLogLevel parses string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
