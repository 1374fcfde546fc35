package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger interface for configurable logging
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// FieldLogger is implemented by loggers that can attach structured fields.
type FieldLogger interface {
	Logger
	WithFields(fields map[string]interface{}) Logger
}

// WithFields returns l with fields attached when l supports it, or l itself.
func WithFields(l Logger, fields map[string]interface{}) Logger {
	if fl, ok := l.(FieldLogger); ok {
		return fl.WithFields(fields)
	}
	return l
}

// ZerologLogger is the default logger implementation
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a logger writing to out at the given level.
// format "json" writes one JSON object per line, anything else writes
// console text.
func NewZerologLogger(out io.Writer, level, format string) *ZerologLogger {
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// NewLoggerFromConfig builds the worker logger. When cfg.File is set, output
// goes to a rotating file in addition to stderr.
func NewLoggerFromConfig(cfg LogConfig) *ZerologLogger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	return NewZerologLogger(out, cfg.Level, cfg.Format)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debugf logs debug messages
func (l *ZerologLogger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Infof logs info messages
func (l *ZerologLogger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Warnf logs warning messages
func (l *ZerologLogger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Errorf logs error messages
func (l *ZerologLogger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// WithFields returns a child logger carrying fields on every entry.
func (l *ZerologLogger) WithFields(fields map[string]interface{}) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(fields).Logger()}
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

// Debugf does nothing
func (l *NoOpLogger) Debugf(format string, args ...interface{}) {}

// Infof does nothing
func (l *NoOpLogger) Infof(format string, args ...interface{}) {}

// Warnf does nothing
func (l *NoOpLogger) Warnf(format string, args ...interface{}) {}

// Errorf does nothing
func (l *NoOpLogger) Errorf(format string, args ...interface{}) {}

// global logger instance - can be replaced by user
var globalLogger Logger = NewZerologLogger(os.Stderr, "info", "text")

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	globalLogger = logger
}

// GetGlobalLogger returns the current global logger
func GetGlobalLogger() Logger {
	return globalLogger
}

// Log helpers using global logger
func logDebugf(format string, args ...interface{}) {
	globalLogger.Debugf(format, args...)
}

func logInfof(format string, args ...interface{}) {
	globalLogger.Infof(format, args...)
}

func logWarnf(format string, args ...interface{}) {
	globalLogger.Warnf(format, args...)
}

func logErrorf(format string, args ...interface{}) {
	globalLogger.Errorf(format, args...)
}
