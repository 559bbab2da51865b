//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"time"

	"github.com/mohae/deepcopy"

	"github.com/manetu/datasentinel/internal/core/consent"
	"github.com/manetu/datasentinel/internal/core/journal"
	"github.com/manetu/datasentinel/internal/core/ledger"
	"github.com/manetu/datasentinel/internal/core/restriction"
	"github.com/manetu/datasentinel/internal/core/traps"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/model"
)

// State aggregates every mutable registry of the sentinel.  It is built once, injected into
// the [Engine], and can be returned to its seeded condition with [State.Reset].
type State struct {
	Consent      *consent.Store
	Policy       *consent.PolicyStore
	Traps        *traps.Registry
	Ledger       *ledger.Ledger
	Restrictions *restriction.Registry
	Journal      *journal.Journal

	seedUsers  []model.User
	seedPolicy model.Policy
}

// StateConfig seeds a [State].
type StateConfig struct {
	Users         []model.User
	Policy        model.Policy
	Stream        accesslog.Stream
	AuditMetadata map[string]string
	Clock         func() time.Time
	RiskWindow    time.Duration
	ScoreClamp    bool
}

// autoRestrictor files ledger-initiated blocks under the automatic origin.
type autoRestrictor struct {
	registry *restriction.Registry
}

func (a autoRestrictor) Restrict(partnerID, userID string) bool {
	return a.registry.Restrict(partnerID, userID, restriction.OriginAuto)
}

// NewState builds the registries.  Lock order across registries is ledger, then
// restriction; the restriction registry never calls back into the ledger.
func NewState(cfg StateConfig) *State {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	users := deepcopy.Copy(cfg.Users).([]model.User)
	restrictions := restriction.New()
	j := journal.New(cfg.Stream, cfg.AuditMetadata, cfg.Clock)
	l := ledger.New(autoRestrictor{registry: restrictions}, j,
		ledger.WithClock(cfg.Clock),
		ledger.WithWindow(cfg.RiskWindow),
		ledger.WithClamp(cfg.ScoreClamp),
	)

	return &State{
		Consent:      consent.NewStore(users),
		Policy:       consent.NewPolicyStore(cfg.Policy),
		Traps:        traps.New(l, cfg.Clock),
		Ledger:       l,
		Restrictions: restrictions,
		Journal:      j,
		seedUsers:    users,
		seedPolicy:   cfg.Policy,
	}
}

// Reset returns every registry to its seeded condition.  It is not atomic with respect to
// in-flight requests.
func (s *State) Reset() {
	s.Consent.Reset(s.seedUsers)
	s.Policy.Replace(s.seedPolicy)
	s.Traps.Reset()
	s.Ledger.Reset()
	s.Restrictions.Reset()
	s.Journal.Reset()
}
