//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a module-scoped wrapper around zap.SugaredLogger.  Every entry carries the
// module name plus an actor (who triggered the work, typically a partner or user id) and
// an action (the operation being performed).
type Logger struct {
	mu     sync.RWMutex
	module string
	sugar  *zap.SugaredLogger
	level  zapcore.Level
	writer io.Writer
}

const (
	actorKey  = "actor"
	actionKey = "action"
	moduleKey = "module"

	sysActor  = "sys"
	sysAction = "unk"
)

func newLogger(module string, level zapcore.Level) *Logger {
	l := &Logger{module: module, level: level}
	l.rebuild()
	return l
}

func encoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	if os.Getenv("LOG_FORMATTER") == "text" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// rebuild recreates the zap core from the current level and writer.  Callers hold mu.
func (l *Logger) rebuild() {
	var out io.Writer = os.Stdout
	if l.writer != nil {
		out = l.writer
	}

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if os.Getenv("LOG_REPORT_CALLER") != "" {
		opts = append(opts, zap.AddCaller())
	}

	core := zapcore.NewCore(encoder(), zapcore.AddSync(out), l.level)
	l.sugar = zap.New(core, opts...).Sugar()
}

// SetLevel changes the minimum level emitted by this logger.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuild()
}

// SetOut redirects output, mostly useful for capturing logs in tests.
func (l *Logger) SetOut(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
	l.rebuild()
}

// Out returns the writer log lines are sent to.
func (l *Logger) Out() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.writer != nil {
		return l.writer
	}
	return os.Stdout
}

// IsLevelEnabled reports whether entries at level would be emitted.
func (l *Logger) IsLevelEnabled(level zapcore.Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level <= level
}

// IsDebugEnabled should guard debug statements whose arguments are expensive to compute.
//
//	if logger.IsDebugEnabled() {
//	    logger.Debugf(agent, "fn", "snapshot: %+v", expensive())
//	}
func (l *Logger) IsDebugEnabled() bool {
	return l.IsLevelEnabled(zapcore.DebugLevel)
}

// IsTraceEnabled is an alias of IsDebugEnabled; zap has no trace level.
func (l *Logger) IsTraceEnabled() bool {
	return l.IsDebugEnabled()
}

func (l *Logger) with(actor, action string) *zap.SugaredLogger {
	l.mu.RLock()
	s := l.sugar
	l.mu.RUnlock()
	return s.With(
		zap.String(actorKey, actor),
		zap.String(actionKey, action),
		zap.String(moduleKey, l.module),
	)
}

// Trace logs at debug level.
func (l *Logger) Trace(actor, action string, args ...interface{}) {
	l.with(actor, action).Debug(args...)
}

// Tracef logs at debug level.
func (l *Logger) Tracef(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Debugf(format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(actor, action string, args ...interface{}) {
	l.with(actor, action).Debug(args...)
}

// Debugf logs a debug message.
func (l *Logger) Debugf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Debugf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(actor, action string, args ...interface{}) {
	l.with(actor, action).Info(args...)
}

// Infof logs an info message.
func (l *Logger) Infof(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Infof(format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(actor, action string, args ...interface{}) {
	l.with(actor, action).Warn(args...)
}

// Warnf logs a warning.
func (l *Logger) Warnf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Warnf(format, args...)
}

// Error logs an error.
func (l *Logger) Error(actor, action string, args ...interface{}) {
	l.with(actor, action).Error(args...)
}

// Errorf logs an error.
func (l *Logger) Errorf(actor, action string, format string, args ...interface{}) {
	l.with(actor, action).Errorf(format, args...)
}

// SysDebugf logs a debug message on behalf of the system.
func (l *Logger) SysDebugf(format string, args ...interface{}) {
	l.with(sysActor, sysAction).Debugf(format, args...)
}

// SysInfof logs an info message on behalf of the system.
func (l *Logger) SysInfof(format string, args ...interface{}) {
	l.with(sysActor, sysAction).Infof(format, args...)
}

// SysWarnf logs a warning on behalf of the system.
func (l *Logger) SysWarnf(format string, args ...interface{}) {
	l.with(sysActor, sysAction).Warnf(format, args...)
}

// SysErrorf logs an error on behalf of the system.
func (l *Logger) SysErrorf(format string, args ...interface{}) {
	l.with(sysActor, sysAction).Errorf(format, args...)
}
