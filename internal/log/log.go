// Package log is the process-wide structured logger. Output is logfmt with ts, level
// and msg keys so estimation traces can be grepped alongside request logs.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	levelVar = new(slog.LevelVar)
	loggerMu sync.RWMutex
	logger   = slog.New(newHandler(os.Stdout))
)

func newHandler(w io.Writer) slog.Handler {
	opts := slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				attr.Key = "level"
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.MessageKey:
				attr.Key = "msg"
			}
			return attr
		},
	}
	return slog.NewTextHandler(w, &opts)
}

// SetLevel updates the minimum level accepted by the global logger. Supported
// levels are "debug", "info", "warn" (or "warning") and "error", case-insensitive.
func SetLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		levelVar.Set(slog.LevelInfo)
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}

// Logger returns the underlying slog.Logger instance.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ReplaceLogger installs a custom slog.Logger.
func ReplaceLogger(l *slog.Logger) {
	if l == nil {
		panic("log: nil logger provided")
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// NewWriterLogger builds a logger with the package format writing to w. Tests use it to
// capture output.
func NewWriterLogger(w io.Writer) *slog.Logger {
	return slog.New(newHandler(w))
}

// Component returns a logger that tags every record with component=name. It resolves the
// global logger at call time, so loggers created before ReplaceLogger keep following it.
func Component(name string) ComponentLogger {
	return ComponentLogger{name: name}
}

// ComponentLogger logs through the global logger with a fixed component attribute.
type ComponentLogger struct {
	name string
}

func (c ComponentLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	Logger().With("component", c.name).Log(withContext(ctx), level, msg, args...)
}

// Debug logs at debug level.
func (c ComponentLogger) Debug(ctx context.Context, msg string, args ...any) {
	c.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (c ComponentLogger) Info(ctx context.Context, msg string, args ...any) {
	c.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (c ComponentLogger) Warn(ctx context.Context, msg string, args ...any) {
	c.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (c ComponentLogger) Error(ctx context.Context, msg string, args ...any) {
	c.log(ctx, slog.LevelError, msg, args...)
}

// Info logs a message at the info level using the global logger.
func Info(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(withContext(ctx), msg, args...)
}

// Debug logs a message at the debug level using the global logger.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(withContext(ctx), msg, args...)
}

// Warn logs a message at the warn level using the global logger.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(withContext(ctx), msg, args...)
}

// Error logs a message at the error level using the global logger.
func Error(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(withContext(ctx), msg, args...)
}

func withContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
