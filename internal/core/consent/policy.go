//
//  Copyright © Manetu Inc. All rights reserved.
//

package consent

import (
	"sync"
	"time"

	"github.com/manetu/datasentinel/pkg/core/model"
)

// RetentionStandard is the retention class of generated policies.
const RetentionStandard = "standard"

// GeneratePolicy builds a policy that expires daysValid days after now (UTC date).
func GeneratePolicy(purpose string, daysValid int, region string, now time.Time) model.Policy {
	return model.Policy{
		Purpose:         purpose,
		ExpiryDate:      now.UTC().AddDate(0, 0, daysValid).Format(model.DateLayout),
		RetentionPolicy: RetentionStandard,
		GeoRestriction:  region,
	}
}

// PolicyStore holds the single active policy.
type PolicyStore struct {
	mu     sync.RWMutex
	policy model.Policy
}

// NewPolicyStore returns a store holding initial.
func NewPolicyStore(initial model.Policy) *PolicyStore {
	return &PolicyStore{policy: initial}
}

// Current returns the active policy.
func (p *PolicyStore) Current() model.Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// Replace swaps the active policy wholesale.
func (p *PolicyStore) Replace(policy model.Policy) {
	p.mu.Lock()
	p.policy = policy
	p.mu.Unlock()

	logger.Infof(agent, "policy", "active policy replaced: purpose=%s region=%s expiry=%s",
		policy.Purpose, policy.GeoRestriction, policy.ExpiryDate)
}
