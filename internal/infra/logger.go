package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the service.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, os.Stdout)
}

// NewLoggerWithFile behaves like NewLogger and additionally mirrors every
// entry as JSON into a size-rotated log file. An empty path disables the file.
func NewLoggerWithFile(appEnv, path string) (zerolog.Logger, io.Closer) {
	if path == "" {
		return NewLogger(appEnv), io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	var console io.Writer = os.Stdout
	if appEnv == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(console, file)).
		Level(levelFor(appEnv)).
		With().
		Timestamp().
		Logger()
	return logger, file
}

func newLogger(appEnv string, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).
		Level(levelFor(appEnv)).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger
}

func levelFor(appEnv string) zerolog.Level {
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return zerolog.Nop()
}
