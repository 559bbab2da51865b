//
//  Copyright © Manetu Inc. All rights reserved.
//
// shared between pkg/core and internal/core, and thus must be in a separate package to avoid circular dependencies

// Package options holds the functional options accepted by [core.NewSentinel].
package options

import (
	"time"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/synthetic"
)

var logger = logging.GetLogger("sentinel")
var agent = "sentinel"

// EngineOptions is the fully resolved construction input of a sentinel engine.  Defaults
// come from configuration; options override them.
type EngineOptions struct {
	AccessLogFactory accesslog.Factory
	Generator        synthetic.Generator
	Clock            func() time.Time
	Users            []model.User
	Policy           model.Policy
	ScoreClamp       bool
	RiskWindow       time.Duration
	LatencyMin       time.Duration
	LatencyMax       time.Duration
	AuditMetadata    map[string]string
}

// EngineOptionsFunc is a function that modifies EngineOptions.
type EngineOptionsFunc func(*EngineOptions)

// WithAccessLog configures the forensic access-log stream.
func WithAccessLog(factory accesslog.Factory) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.AccessLogFactory = factory
	}
}

// WithGenerator replaces the synthetic record generator used in deception mode.
func WithGenerator(g synthetic.Generator) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Generator = g
	}
}

// WithClock overrides time.Now everywhere the engine reads the time.
func WithClock(now func() time.Time) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Clock = now
	}
}

// WithUsers replaces the seeded user registry.
func WithUsers(users []model.User) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Users = users
	}
}

// WithPolicy replaces the initial active policy.
func WithPolicy(p model.Policy) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.Policy = p
	}
}

// WithScoreClamp caps partner scores at 100.
func WithScoreClamp(enabled bool) EngineOptionsFunc {
	return func(o *EngineOptions) {
		o.ScoreClamp = enabled
	}
}

// WithDeceptionLatency bounds the simulated retrieval delay of synthetic records.  Zero
// bounds disable the delay.
func WithDeceptionLatency(lo, hi time.Duration) EngineOptionsFunc {
	return func(o *EngineOptions) {
		if hi < lo {
			logger.Warnf(agent, "WithDeceptionLatency", "max %s below min %s; using min", hi, lo)
			hi = lo
		}
		o.LatencyMin, o.LatencyMax = lo, hi
	}
}
