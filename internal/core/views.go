//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"sort"

	"github.com/manetu/datasentinel/pkg/core/model"
)

// Alerts returns every alert.
func (e *Engine) Alerts() []model.Alert {
	return e.state.Journal.Alerts()
}

// DecodeLog returns every watermark trace attempt.
func (e *Engine) DecodeLog() []model.WatermarkDecode {
	return e.state.Journal.DecodeLog()
}

// AlertsForUser returns the alerts naming userID.
func (e *Engine) AlertsForUser(userID string) []model.Alert {
	return e.state.Journal.AlertsForUser(userID)
}

// Notifications returns the user's notifications, or every notification when userID is
// empty.
func (e *Engine) Notifications(userID string) []model.Notification {
	if userID == "" {
		return e.state.Journal.Notifications()
	}
	return e.state.Journal.NotificationsForUser(userID)
}

// AccessHistory returns the user's forensic records.
func (e *Engine) AccessHistory(userID string) []model.AccessRecord {
	return e.state.Journal.RecordsForUser(userID)
}

// TrapTokens returns every registered decoy.
func (e *Engine) TrapTokens() []model.TrapToken {
	return e.state.Traps.Tokens()
}

// TrapLogsForUser returns the decoys triggered by partners that requested userID's data.
func (e *Engine) TrapLogsForUser(userID string) []model.TrapToken {
	partners := map[string]bool{}
	for _, r := range e.state.Journal.RecordsForUser(userID) {
		partners[r.Partner] = true
	}

	out := []model.TrapToken{}
	for _, t := range e.state.Traps.Tokens() {
		if t.TriggeringPartner != "" && partners[t.TriggeringPartner] {
			out = append(out, t)
		}
	}
	return out
}

// RestrictedPartners lists the partners blocked for userID.
func (e *Engine) RestrictedPartners(userID string) []string {
	return e.state.Restrictions.PartnersForUser(userID)
}

// RestrictedPartnersDetailed lists every restricted partner with its risk posture.
func (e *Engine) RestrictedPartnersDetailed() []model.RestrictedPartner {
	all := e.state.Restrictions.All()

	out := make([]model.RestrictedPartner, 0, len(all))
	for partner, users := range all {
		out = append(out, model.RestrictedPartner{
			PartnerSnapshot: e.state.Ledger.Snapshot(partner),
			Users:           users,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PartnerActivity summarizes every partner seen by the ledger or the forensic log.
func (e *Engine) PartnerActivity() map[string]model.PartnerActivity {
	out := make(map[string]model.PartnerActivity)
	get := func(p string) model.PartnerActivity {
		a, ok := out[p]
		if !ok {
			a = model.PartnerActivity{
				PartnerSnapshot: e.state.Ledger.Snapshot(p),
				RestrictedUsers: []string{},
			}
		}
		return a
	}

	for _, p := range e.state.Ledger.Partners() {
		out[p] = get(p)
	}
	for _, r := range e.state.Journal.Records() {
		a := get(r.Partner)
		switch {
		case r.Status == model.StatusDenied:
			a.DeniedRecords++
		case r.Source == model.SourceSynthetic:
			a.SyntheticRecords++
		default:
			a.GrantedRecords++
		}
		out[r.Partner] = a
	}
	for _, t := range e.state.Traps.Tokens() {
		if t.TriggeringPartner == "" {
			continue
		}
		a := get(t.TriggeringPartner)
		a.TrapsTriggered++
		out[t.TriggeringPartner] = a
	}
	for p, users := range e.state.Restrictions.All() {
		a := get(p)
		a.RestrictedUsers = users
		out[p] = a
	}
	return out
}

// UserActivity summarizes every registered user.
func (e *Engine) UserActivity() map[string]model.UserActivity {
	out := make(map[string]model.UserActivity)
	for _, u := range e.state.Consent.Users() {
		a := model.UserActivity{RestrictedPartners: e.state.Restrictions.PartnersForUser(u)}

		for _, n := range e.state.Journal.NotificationsForUser(u) {
			a.TotalNotifications++
			switch n.Level {
			case model.LevelThreat:
				a.ThreatNotifications++
			case model.LevelWarning:
				a.WarningNotifications++
			}
		}

		records := e.state.Journal.RecordsForUser(u)
		a.AccessRecords = len(records)
		if n := len(records); n > 0 {
			last := records[n-1].Timestamp
			a.LastAccess = &last
		}
		out[u] = a
	}
	return out
}
