//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"fmt"

	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/core/model"
)

// Denial reasons surfaced to partners.
const (
	ReasonRevoked        = "Access permanently revoked due to misuse"
	ReasonUserNotFound   = "User not found"
	ReasonConsentRevoked = "Consent revoked for %s"
	ReasonPolicyExpired  = "Policy expired"
	ReasonRegionMismatch = "Region mismatch"

	reasonUnavailable = "Risk evaluation unavailable, retry"
)

/* Every requested user runs through a fixed, ordered list of checks and stops at the first
 * one that denies.  Checks 5 and 6 feed the ledger, which may in turn block the user for this
 * partner, so the restriction check runs again at the end.
 *
 *   1. restriction (pre)
 *   2. user exists
 *   3. consent: policy, watermark, honeytoken
 *   4. policy expiry
 *   5. region (scores region_mismatch on failure)
 *   6. scores high_frequency then late_access
 *   7. restriction (post)
 *   8. grant with the user's policy expiry
 */
func (e *Engine) evaluate(ctx context.Context, req *model.AccessRequest, userID string, policy model.Policy) (model.AccessDecision, map[string]string) {
	if ctx.Err() != nil {
		d := model.Denied(reasonUnavailable)
		e.deny(req, userID, d)
		return d, nil
	}

	d, user := e.admit(ctx, req, userID, policy)
	if d.Status == model.StatusDenied {
		e.deny(req, userID, d)
		return d, nil
	}

	return d, e.grant(req, user)
}

func (e *Engine) admit(ctx context.Context, req *model.AccessRequest, userID string, policy model.Policy) (model.AccessDecision, model.User) {
	partner := req.PartnerID

	if e.state.Restrictions.IsRestricted(partner, userID) {
		return model.Denied(ReasonRevoked), model.User{}
	}

	user, ok := e.state.Consent.Get(userID)
	if !ok {
		return model.Denied(ReasonUserNotFound), model.User{}
	}

	for _, c := range model.ConsentCheckOrder {
		if !user.Consent[c] {
			return model.Denied(fmt.Sprintf(ReasonConsentRevoked, c)), user
		}
	}

	if user.Expired(e.now()) {
		return model.Denied(ReasonPolicyExpired), user
	}

	if req.Region != policy.GeoRestriction {
		if _, err := e.state.Ledger.UpdateScore(ctx, partner, model.ReasonRegionMismatch, userID); err != nil {
			logger.Warnf(agent, "admit", "region penalty for %s/%s failed: %v", partner, userID, err)
			return model.Denied(reasonUnavailable), user
		}
		e.state.Journal.AppendAlert(model.Alert{
			Type:    model.AlertRegionMismatch,
			Partner: partner,
			User:    userID,
			Risk:    e.state.Ledger.Score(partner),
			Message: fmt.Sprintf("Partner %s requested %s from region %s; policy allows %s", partner, userID, req.Region, policy.GeoRestriction),
		})
		return model.Denied(ReasonRegionMismatch), user
	}

	for _, reason := range []model.Reason{model.ReasonHighFrequency, model.ReasonLateAccess} {
		if _, err := e.state.Ledger.UpdateScore(ctx, partner, reason, userID); err != nil {
			logger.Warnf(agent, "admit", "%s update for %s/%s failed: %v", reason, partner, userID, err)
			return model.Denied(reasonUnavailable), user
		}
	}

	if e.state.Restrictions.IsRestricted(partner, userID) {
		return model.Denied(ReasonRevoked), user
	}

	return model.Granted(user.PolicyExpiry), user
}

func (e *Engine) deny(req *model.AccessRequest, userID string, d model.AccessDecision) {
	metrics.DecisionsTotal.WithLabelValues(string(model.StatusDenied), "").Inc()
	logger.Debugf(agent, "deny", "partner=%s user=%s reason=%q", req.PartnerID, userID, d.Reason)

	e.state.Journal.AppendRecord(model.AccessRecord{
		Partner: req.PartnerID,
		User:    userID,
		Purpose: req.Purpose,
		Region:  req.Region,
		Status:  model.StatusDenied,
		Reason:  d.Reason,
		Risk:    e.state.Ledger.Score(req.PartnerID),
	})
}

// grant logs one real-source record per delivered field, notifies the user and returns the
// delivered record.
func (e *Engine) grant(req *model.AccessRequest, user model.User) map[string]string {
	metrics.DecisionsTotal.WithLabelValues(string(model.StatusGranted), string(model.SourceReal)).Inc()

	data := make(map[string]string, len(user.Profile))
	for k, v := range user.Profile {
		data[k] = v
	}

	fields := sortedKeys(data)
	risk := e.state.Ledger.Score(req.PartnerID)
	rec := model.AccessRecord{
		Partner: req.PartnerID,
		User:    user.ID,
		Purpose: req.Purpose,
		Region:  req.Region,
		Source:  model.SourceReal,
		Status:  model.StatusGranted,
		Risk:    risk,
	}
	if len(fields) == 0 {
		e.state.Journal.AppendRecord(rec)
	}
	for _, f := range fields {
		rec.Field = f
		e.state.Journal.AppendRecord(rec)
	}

	e.notifier.Emit(req.PartnerID, user.ID, fields)
	return data
}
