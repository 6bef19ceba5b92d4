// Package logging wires log/slog for the service: a console handler, a JSON
// handler on a weekly rotating file, and an HTTP request logging middleware.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/giygas/drugcheck-api/config"
)

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingWriter
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.Mutex
)

// Options controls where and how much the service logs
type Options struct {
	Dir            string // empty disables the file handler
	Env            config.Environment
	Level          string
	Verbose        bool
	RetentionWeeks int
	MaxFileSize    int64
}

// InitLogger initializes the global logger instance and installs it as slog's default
func InitLogger(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if DefaultLoggingService != nil && DefaultLoggingService.file != nil {
		_ = DefaultLoggingService.file.Close()
	}

	logger, file := newLogger(opts)
	DefaultLoggingService = &LoggingService{Logger: logger, file: file}
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if DefaultLoggingService == nil || DefaultLoggingService.file == nil {
		return nil
	}
	err := DefaultLoggingService.file.Close()
	DefaultLoggingService.file = nil
	return err
}

func newLogger(opts Options) (*slog.Logger, *RotatingWriter) {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if opts.Dir == "" {
		return slog.New(consoleHandler), nil
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}

	file, err := NewRotatingWriter(opts.Dir, retention, opts.MaxFileSize)
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating log file, logging to console only", "error", err)
		return logger, nil
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: GetFileLogLevel(),
	})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), file
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel resolves the console level. An explicit LOG_LEVEL wins,
// except under test where output stays at error unless verbose.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if level != "" {
		return parseLogLevel(level)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level; the file always keeps debug records
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// Package-level functions for direct access

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

// Default returns the service logger, or slog's default before InitLogger
func Default() *slog.Logger {
	if l := logger(); l != nil {
		return l
	}
	return slog.Default()
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Info(msg string, args ...any) {
	if l := logger(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := logger(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := logger(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := logger(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}
