//
//  Copyright © Manetu Inc. All rights reserved.
//

package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// registry tracks every logger handed out so level updates reach loggers that were
// created before the configuration was loaded.
type registry struct {
	mu       sync.Mutex
	loggers  map[string]*Logger
	explicit map[string]bool
	defLevel zapcore.Level
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		loggers:  make(map[string]*Logger),
		explicit: make(map[string]bool),
		defLevel: zapcore.InfoLevel,
	}
}

// resetForTesting discards all loggers and levels.
func resetForTesting() {
	reg = newRegistry()
}

// GetLogger returns the logger for module, creating it at the default level on first use.
func GetLogger(module string) *Logger {
	r := reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[module]; ok {
		return l
	}
	l := newLogger(module, r.defLevel)
	r.loggers[module] = l
	return l
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug", "trace":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// UpdateLogLevels applies a level specification of the form
// "sentinel.ledger:debug;sentinel.http:warn;.:info".  The "." module sets the default for
// every logger without an explicit entry.  Whitespace is ignored and malformed entries
// are skipped.
func UpdateLogLevels(spec string) error {
	spec = strings.Join(strings.Fields(spec), "")

	r := reg
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		def    zapcore.Level
		hasDef bool
	)
	for _, entry := range strings.Split(spec, ";") {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 || parts[0] == "" {
			continue
		}

		level := parseLevel(parts[1])
		if parts[0] == "." {
			def, hasDef = level, true
			continue
		}

		r.explicit[parts[0]] = true
		l, ok := r.loggers[parts[0]]
		if !ok {
			l = newLogger(parts[0], level)
			r.loggers[parts[0]] = l
			continue
		}
		l.SetLevel(level)
	}

	if hasDef {
		r.defLevel = def
		for module, l := range r.loggers {
			if !r.explicit[module] {
				l.SetLevel(def)
			}
		}
	}

	return nil
}
