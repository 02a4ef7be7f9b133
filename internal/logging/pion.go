package logging

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// PionLoggerFactory routes pion's scoped loggers into slog.
type PionLoggerFactory struct {
	Logger *slog.Logger
}

// NewLogger implements logging.LoggerFactory.
func (f PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return &pionLogger{sl: l.With("pion-scope", scope)}
}

type pionLogger struct {
	sl *slog.Logger
}

// Trace implements logging.LeveledLogger.
func (p *pionLogger) Trace(msg string) {
	p.sl.Debug("pion-trace-log", "msg", msg)
}

// Tracef implements logging.LeveledLogger.
func (p *pionLogger) Tracef(format string, args ...any) {
	p.sl.Debug("pion-trace-log", "msg", fmt.Sprintf(format, args...))
}

// Debug implements logging.LeveledLogger.
func (p *pionLogger) Debug(msg string) {
	p.sl.Debug("pion-debug-log", "msg", msg)
}

// Debugf implements logging.LeveledLogger.
func (p *pionLogger) Debugf(format string, args ...any) {
	p.sl.Debug("pion-debug-log", "msg", fmt.Sprintf(format, args...))
}

// Info implements logging.LeveledLogger.
func (p *pionLogger) Info(msg string) {
	p.sl.Info("pion-info-log", "msg", msg)
}

// Infof implements logging.LeveledLogger.
func (p *pionLogger) Infof(format string, args ...any) {
	p.sl.Info("pion-info-log", "msg", fmt.Sprintf(format, args...))
}

// Warn implements logging.LeveledLogger.
func (p *pionLogger) Warn(msg string) {
	p.sl.Warn("pion-warn-log", "msg", msg)
}

// Warnf implements logging.LeveledLogger.
func (p *pionLogger) Warnf(format string, args ...any) {
	p.sl.Warn("pion-warn-log", "msg", fmt.Sprintf(format, args...))
}

// Error implements logging.LeveledLogger.
func (p *pionLogger) Error(msg string) {
	p.sl.Error("pion-error-log", "msg", msg)
}

// Errorf implements logging.LeveledLogger.
func (p *pionLogger) Errorf(format string, args ...any) {
	p.sl.Error("pion-error-log", "msg", fmt.Sprintf(format, args...))
}
