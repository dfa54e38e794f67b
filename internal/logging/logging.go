// Package logging wires go.uber.org/zap as the process-wide production
// logger behind the teacher's middleware.Logger seam
// (pipe/middleware/log.go), so individual elements and the executor never
// import zap directly.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-run/conduit/pipe/middleware"
)

// Config controls the process logger's level and encoding, populated by the
// CLI's root command from CONDUIT_CLI_LOG_LEVEL / CONDUIT_CLI_LOG_FORMAT via
// config.Loader (C14), or from the --log-level / --log-format flags.
type Config struct {
	Level  string
	Format string
}

// zapLogger adapts *zap.SugaredLogger to middleware.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// New builds a zap-backed middleware.Logger from cfg.
func New(cfg Config) (middleware.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: logger.Sugar()}, nil
}

// Install builds a logger from cfg and installs it as the default used by
// every Log middleware that doesn't specify its own.
func Install(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	middleware.SetDefaultLogger(l)
	return nil
}
