//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package consent owns the user registry (consent flags, policy expiry and profile data)
// and the process-wide active policy.
package consent

import (
	"sort"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
)

var logger = logging.GetLogger("sentinel.consent")

const agent = "consent"

// DefaultExpiry is the policy expiry of the built-in users.
const DefaultExpiry = "2099-12-31"

// DefaultUsers returns the built-in registry used when no users file is configured.
func DefaultUsers() []model.User {
	return []model.User{
		{
			ID:           "user1",
			Consent:      model.FullConsent(),
			PolicyExpiry: DefaultExpiry,
			Profile: map[string]string{
				"name":   "Ananya Rao",
				"email":  "ananya.rao@example.in",
				"phone":  "+91-98450-11001",
				"region": "IN",
			},
		},
		{
			ID:           "user2",
			Consent:      model.FullConsent(),
			PolicyExpiry: DefaultExpiry,
			Profile: map[string]string{
				"name":   "Rahul Verma",
				"email":  "rahul.verma@example.in",
				"phone":  "+91-98450-11002",
				"region": "IN",
			},
		},
		{
			ID:           "user3",
			Consent:      model.FullConsent(),
			PolicyExpiry: DefaultExpiry,
			Profile: map[string]string{
				"name":   "Meera Pillai",
				"email":  "meera.pillai@example.in",
				"phone":  "+91-98450-11003",
				"region": "IN",
			},
		},
	}
}

type record struct {
	mu   sync.Mutex
	user model.User
}

// Store is the user registry.  Each user record has its own lock; the registry lock only
// guards the set of users.
type Store struct {
	mu    sync.RWMutex
	users map[string]*record
}

// NewStore returns a store seeded with users.
func NewStore(users []model.User) *Store {
	s := &Store{}
	s.Reset(users)
	return s
}

// Reset replaces every user with the given seed.
func (s *Store) Reset(users []model.User) {
	m := make(map[string]*record, len(users))
	for _, u := range users {
		u := deepcopy.Copy(u).(model.User)
		if u.Consent == nil {
			u.Consent = model.Consent{}
		}
		m[u.ID] = &record{user: u}
	}

	s.mu.Lock()
	s.users = m
	s.mu.Unlock()
}

func (s *Store) lookup(userID string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.users[userID]
	return r, ok
}

// Get returns a copy of the user.
func (s *Store) Get(userID string) (model.User, bool) {
	r, ok := s.lookup(userID)
	if !ok {
		return model.User{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return deepcopy.Copy(r.user).(model.User), true
}

// Update merges patch into the user's consent flags and returns the updated user.
func (s *Store) Update(userID string, patch model.Consent) (model.User, error) {
	r, ok := s.lookup(userID)
	if !ok {
		return model.User{}, common.NewError(common.UserNotFound, "user %s not found", userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for c, v := range patch {
		r.user.Consent[c] = v
	}
	logger.Infof(agent, "update", "consent updated for %s: %v", userID, patch)
	return deepcopy.Copy(r.user).(model.User), nil
}

// SetExpiry overwrites the user's policy expiry.  date must use [model.DateLayout].
func (s *Store) SetExpiry(userID, date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return common.NewError(common.InvalidRequest, "invalid expiry %q", date)
	}

	r, ok := s.lookup(userID)
	if !ok {
		return common.NewError(common.UserNotFound, "user %s not found", userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.user.PolicyExpiry = date
	logger.Infof(agent, "expiry", "policy expiry for %s set to %s", userID, date)
	return nil
}

// Users lists the registered user ids, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
