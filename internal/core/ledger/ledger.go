//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package ledger keeps the per-partner risk state: cumulative score, behavioural traits,
// trap-hit counter, the trailing access window and the deception flag.
//
// Every mutation for a partner goes through [Ledger.UpdateScore] (or the access-only
// [Ledger.RecordAccess]) under that partner's lock, so the sequence record access, prune
// window, add delta, assign traits, count trap hits, restrict and activate deception is
// atomic per partner.  Different partners never contend.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
)

var logger = logging.GetLogger("sentinel.ledger")

const agent = "ledger"

// Scoring constants.
const (
	DefaultWindow = 10 * time.Minute

	TrapDelta           = 80
	LateAccessDelta     = 10
	HighFrequencyDelta  = 10
	RegionMismatchDelta = 20

	// DeceptionThreshold is the score at which deception mode switches on.
	DeceptionThreshold = 80
	// TrapRestrictThreshold is the trap-hit count at which the triggering user is blocked.
	TrapRestrictThreshold = 3
	// BurstyFrequency and StealthyFrequency are exclusive lower bounds on window length.
	BurstyFrequency   = 5
	StealthyFrequency = 10

	suspiciousHourStart = 0
	suspiciousHourEnd   = 6

	maxScore = 100
)

// Restrictor receives automatic (partner, user) blocks.  Implementations must not call
// back into the ledger.
type Restrictor interface {
	Restrict(partnerID, userID string) bool
}

// AlertSink receives alerts raised by ledger transitions.
type AlertSink interface {
	AppendAlert(alert model.Alert)
}

type partnerEntry struct {
	lock      chanMutex
	score     int
	traits    model.TraitSet
	trapHits  int
	window    []time.Time
	deception bool
}

// Ledger is the per-partner risk state.  The zero value is not usable; see [New].
type Ledger struct {
	partners   sync.Map // map[string]*partnerEntry
	restrictor Restrictor
	alerts     AlertSink
	now        func() time.Time
	window     time.Duration
	clamp      bool
}

// Option customizes a [Ledger].
type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithWindow overrides the trailing access window.
func WithWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClamp caps scores at 100 when enabled.
func WithClamp(enabled bool) Option {
	return func(l *Ledger) {
		l.clamp = enabled
	}
}

// New returns an empty ledger.  Either collaborator may be nil.
func New(restrictor Restrictor, alerts AlertSink, opts ...Option) *Ledger {
	l := &Ledger{
		restrictor: restrictor,
		alerts:     alerts,
		now:        time.Now,
		window:     DefaultWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) entry(partnerID string) *partnerEntry {
	if v, ok := l.partners.Load(partnerID); ok {
		return v.(*partnerEntry)
	}
	v, _ := l.partners.LoadOrStore(partnerID, &partnerEntry{lock: newChanMutex()})
	return v.(*partnerEntry)
}

func (l *Ledger) acquire(ctx context.Context, partnerID string) (*partnerEntry, func(), error) {
	e := l.entry(partnerID)
	unlock, err := e.lock.lock(ctx)
	if err != nil {
		return nil, nil, common.NewError(common.LockFailed, "partner %s: %v", partnerID, err)
	}
	return e, unlock, nil
}

// recordAccess appends now and prunes entries at least one window old.  Caller holds the lock.
func (l *Ledger) recordAccess(e *partnerEntry, now time.Time) int {
	e.window = append(e.window, now)
	kept := e.window[:0]
	for _, t := range e.window {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	e.window = kept
	return len(e.window)
}

// RecordAccess appends the current time to the partner's window and returns the resulting
// frequency.
func (l *Ledger) RecordAccess(ctx context.Context, partnerID string) (int, error) {
	e, unlock, err := l.acquire(ctx, partnerID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	return l.recordAccess(e, l.now()), nil
}

func suspiciousHour(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= suspiciousHourStart && h <= suspiciousHourEnd
}

// UpdateScore is the single entry point for score changes.  It records an access, applies
// the reason's delta, assigns traits, counts trap hits (blocking userID at the threshold)
// and activates deception at the score threshold.  It returns the new cumulative score.
// userID may be empty when the triggering user is unknown.
func (l *Ledger) UpdateScore(ctx context.Context, partnerID string, reason model.Reason, userID string) (int, error) {
	e, unlock, err := l.acquire(ctx, partnerID)
	if err != nil {
		return 0, errors.Wrapf(err, "updating score for %s", reason)
	}
	defer unlock()

	now := l.now()
	freq := l.recordAccess(e, now)

	var delta int
	switch reason {
	case model.ReasonTrap:
		delta = TrapDelta
		e.traits = e.traits.With(model.TraitReckless)
	case model.ReasonLateAccess:
		if suspiciousHour(now) {
			delta = LateAccessDelta
			e.traits = e.traits.With(model.TraitNocturnal)
		}
	case model.ReasonHighFrequency:
		if freq > BurstyFrequency {
			delta = HighFrequencyDelta
			e.traits = e.traits.With(model.TraitBursty)
		}
	case model.ReasonRegionMismatch:
		delta = RegionMismatchDelta
	default:
		return e.score, fmt.Errorf("unknown score reason %d", uint8(reason))
	}

	e.score += delta
	if l.clamp && e.score > maxScore {
		e.score = maxScore
	}
	metrics.ScoreUpdatesTotal.WithLabelValues(reason.String()).Inc()

	// trap hits recorded by earlier updates only
	if freq > StealthyFrequency && e.trapHits == 0 {
		e.traits = e.traits.With(model.TraitStealthy)
	}

	if reason == model.ReasonTrap {
		e.trapHits++
		if e.trapHits >= TrapRestrictThreshold {
			if userID != "" && l.restrictor != nil {
				l.restrictor.Restrict(partnerID, userID)
			}
			l.alert(model.Alert{
				Type:      model.AlertBlockedAfterTraps,
				Partner:   partnerID,
				User:      userID,
				Risk:      e.score,
				Message:   fmt.Sprintf("Partner %s blocked after %d trap hits", partnerID, e.trapHits),
				Timestamp: now,
			})
		}
	}

	if e.score >= DeceptionThreshold {
		l.activate(e, partnerID, now)
	}

	logger.Debugf(agent, "update", "partner=%s reason=%s delta=%d score=%d freq=%d traits=%v",
		partnerID, reason, delta, e.score, freq, e.traits.Strings())

	return e.score, nil
}

// activate switches deception on.  Only the false to true transition raises an alert.
// Caller holds the lock.
func (l *Ledger) activate(e *partnerEntry, partnerID string, now time.Time) {
	if e.deception {
		return
	}
	e.deception = true
	metrics.DeceptionActivationsTotal.Inc()
	logger.Warnf(agent, "deception", "deception mode activated for partner %s (score %d)", partnerID, e.score)
	l.alert(model.Alert{
		Type:      model.AlertDeceptionActivated,
		Partner:   partnerID,
		Risk:      e.score,
		Message:   fmt.Sprintf("Deception mode activated for partner %s", partnerID),
		Timestamp: now,
	})
}

func (l *Ledger) alert(a model.Alert) {
	if l.alerts != nil {
		l.alerts.AppendAlert(a)
	}
}

// ActivateDeception switches the partner into deception mode regardless of score.
func (l *Ledger) ActivateDeception(ctx context.Context, partnerID string) error {
	e, unlock, err := l.acquire(ctx, partnerID)
	if err != nil {
		return err
	}
	defer unlock()

	l.activate(e, partnerID, l.now())
	return nil
}

// Snapshot returns a copy of the partner's entry.  Unknown partners yield the defaults and
// are not created.
func (l *Ledger) Snapshot(partnerID string) model.PartnerSnapshot {
	v, ok := l.partners.Load(partnerID)
	if !ok {
		return model.PartnerSnapshot{ID: partnerID}
	}
	e := v.(*partnerEntry)

	unlock, _ := e.lock.lock(context.Background())
	defer unlock()

	snap := model.PartnerSnapshot{
		ID:              partnerID,
		Score:           e.score,
		Traits:          e.traits,
		TrapHits:        e.trapHits,
		Frequency:       len(e.window),
		DeceptionActive: e.deception,
	}
	if n := len(e.window); n > 0 {
		snap.LastAccess = e.window[n-1]
	}
	return deepcopy.Copy(snap).(model.PartnerSnapshot)
}

// Score returns the partner's cumulative score, 0 when unknown.
func (l *Ledger) Score(partnerID string) int {
	return l.Snapshot(partnerID).Score
}

// Traits returns the partner's traits, empty when unknown.
func (l *Ledger) Traits(partnerID string) model.TraitSet {
	return l.Snapshot(partnerID).Traits
}

// IsDeceptionActive reports the partner's deception flag.
func (l *Ledger) IsDeceptionActive(partnerID string) bool {
	return l.Snapshot(partnerID).DeceptionActive
}

// Partners lists, sorted, every partner the ledger has seen.
func (l *Ledger) Partners() []string {
	out := []string{}
	l.partners.Range(func(k, _ interface{}) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// Reset drops every partner.
func (l *Ledger) Reset() {
	l.partners.Range(func(k, _ interface{}) bool {
		l.partners.Delete(k)
		return true
	})
}
