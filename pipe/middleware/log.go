package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// LogLevel represents the severity level for logging messages.
type LogLevel string

const (
	// LogLevelDebug is used for detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is used for general information messages.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is used for warning conditions.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is used for error conditions.
	LogLevelError LogLevel = "error"
)

// Logger defines an interface for logging at different severity levels.
// Satisfied by *slog.Logger and by anything that wraps it (zap's sugared
// logger included, see internal/logging).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var defaultLogger Logger = slog.Default()

// SetDefaultLogger replaces the logger used by Log when LogConfig.Logger is nil.
func SetDefaultLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// LogConfig holds configuration for the Log middleware.
type LogConfig struct {
	// Logger receives the rendered messages. Defaults to the package default
	// logger (slog.Default() unless overridden by SetDefaultLogger).
	Logger Logger

	// Disabled skips all logging when true.
	Disabled bool

	// Args are additional key/value pairs included in every log message.
	Args []any

	LevelSuccess LogLevel
	LevelCancel  LogLevel
	LevelFailure LogLevel

	MessageSuccess string
	MessageCancel  string
	MessageFailure string
}

func parseLogLevel(level LogLevel) LogLevel {
	return LogLevel(strings.ToLower(string(level)))
}

func (c *LogConfig) parse() {
	if c.Logger == nil {
		c.Logger = defaultLogger
	}
	c.LevelSuccess = parseLogLevel(c.LevelSuccess)
	if c.LevelSuccess == "" {
		c.LevelSuccess = LogLevelDebug
	}
	c.LevelCancel = parseLogLevel(c.LevelCancel)
	if c.LevelCancel == "" {
		c.LevelCancel = LogLevelWarn
	}
	c.LevelFailure = parseLogLevel(c.LevelFailure)
	if c.LevelFailure == "" {
		c.LevelFailure = LogLevelError
	}
	if c.MessageSuccess == "" {
		c.MessageSuccess = "stage completed"
	}
	if c.MessageCancel == "" {
		c.MessageCancel = "stage cancelled"
	}
	if c.MessageFailure == "" {
		c.MessageFailure = "stage failed"
	}
}

func (c *LogConfig) logFunc(level LogLevel) func(msg string, args ...any) {
	switch level {
	case LogLevelDebug:
		return c.Logger.Debug
	case LogLevelWarn:
		return c.Logger.Warn
	case LogLevelError:
		return c.Logger.Error
	default:
		return c.Logger.Info
	}
}

func appendArgs(args ...[]any) []any {
	n := 0
	for _, a := range args {
		n += len(a)
	}
	result := make([]any, 0, n)
	for _, a := range args {
		result = append(result, a...)
	}
	return result
}

// Log wraps a ProcessFunc with structured logging of its outcome. Success,
// cancellation, and terminal failure are each logged at independently
// configurable levels.
func Log[In, Out any](cfg LogConfig) Middleware[In, Out] {
	cfg.parse()
	if cfg.Disabled {
		return func(next ProcessFunc[In, Out]) ProcessFunc[In, Out] { return next }
	}

	logSuccess := cfg.logFunc(cfg.LevelSuccess)
	logFailure := cfg.logFunc(cfg.LevelFailure)
	logCancel := cfg.logFunc(cfg.LevelCancel)

	collect := func(m *Metrics) {
		switch {
		case m.Error == nil:
			logSuccess(cfg.MessageSuccess,
				appendArgs(cfg.Args, []any{"duration", m.Duration})...)
		case errors.Is(m.Error, context.Canceled), errors.Is(m.Error, ErrCancel):
			logCancel(cfg.MessageCancel,
				appendArgs(cfg.Args, []any{"error", m.Error})...)
		default:
			logFailure(cfg.MessageFailure,
				appendArgs(cfg.Args, []any{"error", m.Error, "duration", m.Duration})...)
		}
	}

	return MetricsMiddleware[In, Out](collect)
}
