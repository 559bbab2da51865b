//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package traps maintains the honeytoken catalogue.  Decoys are planted into documents by
// [Registry.Inject] and spotted again in inbound partner payloads by [Registry.DetectUsage].
package traps

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

var logger = logging.GetLogger("sentinel.traps")

const agent = "traps"

// maxSynthesisAttempts bounds the search for a decoy not already registered.
const maxSynthesisAttempts = 64

// Scorer receives the trap penalty for the partner that reused a decoy.
type Scorer interface {
	UpdateScore(ctx context.Context, partnerID string, reason model.Reason, userID string) (int, error)
}

// Registry maps decoy values to their tokens.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]*model.TrapToken
	order  []string
	scorer Scorer
	now    func() time.Time
}

// New returns an empty registry reporting detections to scorer.
func New(scorer Scorer, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		tokens: make(map[string]*model.TrapToken),
		scorer: scorer,
		now:    now,
	}
}

// Inject replaces every match of the trap type's pattern in document with one freshly
// synthesized decoy and registers that decoy.  An unknown type fails with InvalidTrapType
// and leaves the registry untouched.
func (r *Registry) Inject(document, trapType string) (string, string, error) {
	tt, err := model.ParseTrapType(trapType)
	if err != nil {
		return "", "", common.NewError(common.InvalidTrapType, "%v", err)
	}
	s := shapes[tt]

	r.mu.Lock()
	defer r.mu.Unlock()

	var value string
	for i := 0; i < maxSynthesisAttempts; i++ {
		candidate := s.synthesize()
		if _, taken := r.tokens[candidate]; !taken {
			value = candidate
			break
		}
	}
	if value == "" {
		return "", "", errors.Errorf("unable to synthesize a unique %s decoy", tt)
	}

	redacted := s.pattern.ReplaceAllLiteralString(document, value)

	r.tokens[value] = &model.TrapToken{
		Value:     value,
		Type:      tt,
		CreatedAt: r.now().UTC(),
	}
	r.order = append(r.order, value)

	metrics.TrapsInjectedTotal.WithLabelValues(string(tt)).Inc()
	logger.Infof(agent, "inject", "registered %s decoy", tt)

	return redacted, value, nil
}

func (r *Registry) values() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// claim sets the triggering partner unless another partner already holds it.  It returns
// the partner that owns the trigger after the call.
func (r *Registry) claim(value, partnerID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[value]
	if !ok {
		return ""
	}
	if t.TriggeringPartner == "" {
		now := r.now().UTC()
		t.TriggeringPartner = partnerID
		t.TriggeredAt = &now
	}
	return t.TriggeringPartner
}

// DetectUsage scans node for a substring equal to a registered decoy.  The first hit claims
// the decoy for partnerID (first writer wins), applies the trap penalty, and ends the scan.
// The returned error only reports a failed penalty; the detection itself still stands.
func (r *Registry) DetectUsage(ctx context.Context, partnerID string, node payload.Node) (bool, error) {
	return r.DetectUsageFor(ctx, partnerID, "", node)
}

// DetectUsageFor is [Registry.DetectUsage] with the penalty attributed to userID, so that
// repeated hits can block the partner for that user.
func (r *Registry) DetectUsageFor(ctx context.Context, partnerID, userID string, node payload.Node) (bool, error) {
	decoys := r.values()
	if len(decoys) == 0 || node == nil {
		return false, nil
	}

	var hit string
	found := payload.Walk(node, func(s string) bool {
		for _, d := range decoys {
			if strings.Contains(s, d) {
				hit = d
				return true
			}
		}
		return false
	})
	if !found {
		return false, nil
	}

	owner := r.claim(hit, partnerID)
	metrics.TrapHitsTotal.Inc()
	logger.Warnf(agent, "detect", "partner %s reused a decoy (first triggered by %s)", partnerID, owner)

	if r.scorer != nil {
		if _, err := r.scorer.UpdateScore(ctx, partnerID, model.ReasonTrap, userID); err != nil {
			return true, errors.Wrap(err, "applying trap penalty")
		}
	}
	return true, nil
}

// Tokens lists registered decoys in creation order.
func (r *Registry) Tokens() []model.TrapToken {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TrapToken, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, copyToken(r.tokens[v]))
	}
	return out
}

// Lookup returns the token registered for value.
func (r *Registry) Lookup(value string) (model.TrapToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[value]
	if !ok {
		return model.TrapToken{}, false
	}
	return copyToken(t), true
}

// Reset drops every decoy.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = make(map[string]*model.TrapToken)
	r.order = nil
}

func copyToken(t *model.TrapToken) model.TrapToken {
	c := *t
	if t.TriggeredAt != nil {
		at := *t.TriggeredAt
		c.TriggeredAt = &at
	}
	return c
}
