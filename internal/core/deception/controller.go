//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package deception serves synthetic records to partners whose deception flag is set.
package deception

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/synthetic"
)

var logger = logging.GetLogger("sentinel.deception")

const agent = "deception"

// Default bounds of the simulated retrieval delay.
const (
	DefaultLatencyMin = 100 * time.Millisecond
	DefaultLatencyMax = 400 * time.Millisecond
)

// State exposes the ledger fields the controller reads.
type State interface {
	IsDeceptionActive(partnerID string) bool
	Score(partnerID string) int
}

// RecordSink receives the field-level forensic entries of synthetic deliveries.
type RecordSink interface {
	AppendRecord(r model.AccessRecord) model.AccessRecord
}

// Controller substitutes synthetic records for real ones.
type Controller struct {
	state     State
	generator synthetic.Generator
	sink      RecordSink
	min, max  time.Duration
	now       func() time.Time
}

// Option customizes a [Controller].
type Option func(*Controller)

// WithLatency bounds the simulated retrieval delay.  A zero max disables the delay.
func WithLatency(lo, hi time.Duration) Option {
	return func(c *Controller) {
		if hi < lo {
			hi = lo
		}
		c.min, c.max = lo, hi
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New returns a controller.  A nil generator selects [synthetic.NewGenerator].
func New(state State, generator synthetic.Generator, sink RecordSink, opts ...Option) *Controller {
	if generator == nil {
		generator = synthetic.NewGenerator()
	}
	c := &Controller{
		state:     state,
		generator: generator,
		sink:      sink,
		min:       DefaultLatencyMin,
		max:       DefaultLatencyMax,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsActive reports whether partnerID is in deception mode.
func (c *Controller) IsActive(partnerID string) bool {
	return c.state.IsDeceptionActive(partnerID)
}

func (c *Controller) latency() time.Duration {
	if c.max <= 0 {
		return 0
	}
	if c.max == c.min {
		return c.min
	}
	return c.min + rand.N(c.max-c.min+1)
}

// Serve produces a synthetic record for userID, waits the simulated retrieval delay and
// logs one synthetic-source entry per field.  The wait ends early with ctx.Err() if ctx is
// done, in which case nothing is logged.
func (c *Controller) Serve(ctx context.Context, partnerID, userID string) (map[string]string, error) {
	rec := c.generator.Generate(partnerID)

	if d := c.latency(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
			metrics.SyntheticLatency.Observe(d.Seconds())
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	fields := make([]string, 0, len(rec))
	for f := range rec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	risk := c.state.Score(partnerID)
	now := c.now().UTC()
	for _, f := range fields {
		c.sink.AppendRecord(model.AccessRecord{
			Timestamp: now,
			Partner:   partnerID,
			User:      userID,
			Field:     f,
			Source:    model.SourceSynthetic,
			Status:    model.StatusGranted,
			Risk:      risk,
		})
	}

	logger.Debugf(agent, "serve", "served synthetic record for %s to %s", userID, partnerID)
	return rec, nil
}
