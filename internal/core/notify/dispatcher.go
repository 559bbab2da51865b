//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package notify tells users when a partner received their real data.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/core/model"
)

var logger = logging.GetLogger("sentinel.notify")

const agent = "notify"

// TypeDataAccess is the notification type of a granted real-data delivery.
const TypeDataAccess = "data_access"

// Score tiers.
const (
	ThreatScore  = 80
	WarningScore = 50
)

// State exposes the ledger fields the dispatcher reads.
type State interface {
	Score(partnerID string) int
	IsDeceptionActive(partnerID string) bool
}

// Restrictions reports whether a partner is blocked for anyone.
type Restrictions interface {
	IsPartnerRestricted(partnerID string) bool
}

// Sink stores notifications.
type Sink interface {
	AppendNotification(n model.Notification) model.Notification
}

// Dispatcher emits one notification per granted (partner, user) pair.
type Dispatcher struct {
	state        State
	restrictions Restrictions
	sink         Sink
	now          func() time.Time
}

// New returns a dispatcher.
func New(state State, restrictions Restrictions, sink Sink, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{state: state, restrictions: restrictions, sink: sink, now: now}
}

// Classify maps the partner's risk posture onto a notification level and, for escalatable
// levels, the reason shown to the user.
func Classify(score int, deception, restricted bool) (model.Level, string) {
	switch {
	case score >= ThreatScore:
		return model.LevelThreat, fmt.Sprintf("Partner risk score %d is at or above %d", score, ThreatScore)
	case deception:
		return model.LevelThreat, "Partner is under deception monitoring"
	case restricted:
		return model.LevelThreat, "Partner has been restricted for misuse of other users' data"
	case score >= WarningScore:
		return model.LevelWarning, fmt.Sprintf("Partner risk score %d is elevated", score)
	default:
		return model.LevelNormal, ""
	}
}

// Emit records the notification for a grant of fields to partnerID.
func (d *Dispatcher) Emit(partnerID, userID string, fields []string) model.Notification {
	score := d.state.Score(partnerID)
	level, why := Classify(score, d.state.IsDeceptionActive(partnerID), d.restrictions.IsPartnerRestricted(partnerID))

	msg := fmt.Sprintf("Partner %s accessed your data", partnerID)
	if len(fields) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(fields, ", "))
	}

	n := d.sink.AppendNotification(model.Notification{
		User:             userID,
		Partner:          partnerID,
		Type:             TypeDataAccess,
		Level:            level,
		Message:          msg,
		Risk:             score,
		CanEscalate:      level != model.LevelNormal,
		EscalationReason: why,
		Timestamp:        d.now().UTC(),
	})

	metrics.NotificationsTotal.WithLabelValues(string(level)).Inc()
	logger.Debugf(agent, "emit", "%s notification to %s about %s", level, userID, partnerID)
	return n
}
