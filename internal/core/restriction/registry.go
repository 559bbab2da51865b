//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package restriction tracks permanently blocked (partner, user) pairs.
package restriction

import (
	"sort"
	"sync"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
)

var logger = logging.GetLogger("sentinel.restriction")

const agent = "restriction"

// Origin labels who introduced a restriction.
type Origin string

// Restriction origins.
const (
	OriginAuto  Origin = "auto"
	OriginAdmin Origin = "admin"
	OriginUser  Origin = "user"
)

// Registry is an additive partner → set<user> map.  There is no removal operation.
type Registry struct {
	mu       sync.RWMutex
	partners map[string]map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{partners: make(map[string]map[string]struct{})}
}

// Restrict blocks userID for partnerID.  It returns true when the pair was not blocked before.
func (r *Registry) Restrict(partnerID, userID string, origin Origin) bool {
	if partnerID == "" || userID == "" {
		return false
	}

	r.mu.Lock()
	users, ok := r.partners[partnerID]
	if !ok {
		users = make(map[string]struct{})
		r.partners[partnerID] = users
	}
	_, existed := users[userID]
	users[userID] = struct{}{}
	r.mu.Unlock()

	if !existed {
		metrics.RestrictionsTotal.WithLabelValues(string(origin)).Inc()
		logger.Infof(agent, "restrict", "partner %s restricted for user %s (%s)", partnerID, userID, origin)
	}
	return !existed
}

// IsRestricted reports whether userID is blocked for partnerID.
func (r *Registry) IsRestricted(partnerID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.partners[partnerID][userID]
	return ok
}

// IsPartnerRestricted reports whether partnerID is blocked for anyone.
func (r *Registry) IsPartnerRestricted(partnerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.partners[partnerID]) > 0
}

// PartnersForUser lists, sorted, the partners blocked for userID.
func (r *Registry) PartnersForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for partner, users := range r.partners {
		if _, ok := users[userID]; ok {
			out = append(out, partner)
		}
	}
	sort.Strings(out)
	return out
}

// All returns a copy of the registry with sorted user lists.
func (r *Registry) All() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.partners))
	for partner, users := range r.partners {
		list := make([]string, 0, len(users))
		for u := range users {
			list = append(list, u)
		}
		sort.Strings(list)
		out[partner] = list
	}
	return out
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partners = make(map[string]map[string]struct{})
}
