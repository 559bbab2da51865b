//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/manetu/datasentinel/internal/core/consent"
	"github.com/manetu/datasentinel/internal/core/restriction"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
	"github.com/manetu/datasentinel/pkg/core/watermark"
)

// InjectTrap plants a decoy of trapType into document.
func (e *Engine) InjectTrap(document, trapType string) (*model.TrapInjection, error) {
	redacted, value, err := e.state.Traps.Inject(document, trapType)
	if err != nil {
		return nil, err
	}
	return &model.TrapInjection{
		RedactedDocument: redacted,
		TrapValue:        value,
		TrapType:         model.TrapType(trapType),
	}, nil
}

// TestTrapValue scans value for a registered decoy on behalf of partnerID.  A hit is scored
// like any other detection.
func (e *Engine) TestTrapValue(ctx context.Context, partnerID, value string) (bool, error) {
	if partnerID == "" {
		return false, common.NewError(common.InvalidRequest, "partnerId is required")
	}
	return e.state.Traps.DetectUsage(ctx, partnerID, payload.StringLeaf(value))
}

// DetectTrapUsage scans node for a registered decoy on behalf of partnerID and attributes
// a hit to userID, so repeated hits block the partner for that user.  userID may be empty.
func (e *Engine) DetectTrapUsage(ctx context.Context, partnerID, userID string, node payload.Node) (bool, error) {
	if partnerID == "" {
		return false, common.NewError(common.InvalidRequest, "partnerId is required")
	}
	return e.state.Traps.DetectUsageFor(ctx, partnerID, userID, node)
}

// RiskScore returns the partner's ledger snapshot.  Unknown partners yield defaults.
func (e *Engine) RiskScore(partnerID string) model.PartnerSnapshot {
	return e.state.Ledger.Snapshot(partnerID)
}

// GenerateWatermark fingerprints content for partnerID and records the issuance so a leaked
// copy can be traced back.
func (e *Engine) GenerateWatermark(content, partnerID string) string {
	wm := watermark.Generate(content, partnerID)
	e.state.Journal.RecordWatermark(wm, partnerID)
	return wm
}

// VerifyWatermark traces a leaked watermark to the partner it was issued to.  Every
// attempt is kept in the decode log.
func (e *Engine) VerifyWatermark(leaked string) (model.WatermarkIssue, error) {
	if leaked == "" {
		return model.WatermarkIssue{}, common.NewError(common.InvalidRequest, "watermark is required")
	}
	w, ok := e.state.Journal.TraceWatermark(leaked)
	if !ok {
		logger.Infof(agent, "watermark", "no issued watermark matches %s", leaked)
		return model.WatermarkIssue{}, common.NewError(common.WatermarkNotFound, "no match found")
	}
	logger.Warnf(agent, "watermark", "leaked watermark traced to partner %s", w.Partner)
	return w, nil
}

// CurrentPolicy returns the active policy.
func (e *Engine) CurrentPolicy() model.Policy {
	return e.state.Policy.Current()
}

// GeneratePolicy replaces the active policy.  Listed users have their policy expiry aligned
// with the new policy; unknown users reject the call before anything changes.
func (e *Engine) GeneratePolicy(purpose string, daysValid int, region string, users []string) (model.Policy, error) {
	switch {
	case purpose == "":
		return model.Policy{}, common.NewError(common.InvalidRequest, "purpose is required")
	case region == "":
		return model.Policy{}, common.NewError(common.InvalidRequest, "region is required")
	case daysValid <= 0:
		return model.Policy{}, common.NewError(common.InvalidRequest, "daysValid must be positive")
	}
	for _, u := range users {
		if _, ok := e.state.Consent.Get(u); !ok {
			return model.Policy{}, common.NewError(common.UserNotFound, "user %s not found", u)
		}
	}

	p := consent.GeneratePolicy(purpose, daysValid, region, e.now())
	e.state.Policy.Replace(p)
	for _, u := range users {
		if err := e.state.Consent.SetExpiry(u, p.ExpiryDate); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Consent returns the user's consent record.
func (e *Engine) Consent(userID string) (model.User, error) {
	u, ok := e.state.Consent.Get(userID)
	if !ok {
		return model.User{}, common.NewError(common.UserNotFound, "user %s not found", userID)
	}
	return u, nil
}

// UpdateConsent merges patch into the user's consent flags.
func (e *Engine) UpdateConsent(userID string, patch model.Consent) (model.User, error) {
	return e.state.Consent.Update(userID, patch)
}

func requirePair(partnerID, userID string) error {
	if partnerID == "" || userID == "" {
		return common.NewError(common.InvalidRequest, "partnerId and userId are required")
	}
	return nil
}

// RestrictAccess applies an administrative block or expiry to (partnerID, userID).
func (e *Engine) RestrictAccess(partnerID, userID string, action model.RestrictAction) error {
	if err := requirePair(partnerID, userID); err != nil {
		return err
	}
	if _, ok := e.state.Consent.Get(userID); !ok {
		return common.NewError(common.UserNotFound, "user %s not found", userID)
	}

	switch action {
	case model.ActionBlock:
		e.state.Restrictions.Restrict(partnerID, userID, restriction.OriginAdmin)
		e.alert(model.AlertAdminBlock, partnerID, userID,
			fmt.Sprintf("Administrator blocked partner %s for user %s", partnerID, userID))
	case model.ActionExpire:
		today := e.now().UTC().Format(model.DateLayout)
		if err := e.state.Consent.SetExpiry(userID, today); err != nil {
			return err
		}
		e.alert(model.AlertAdminExpire, partnerID, userID,
			fmt.Sprintf("Administrator expired the policy of user %s after activity by partner %s", userID, partnerID))
	default:
		return common.NewError(common.InvalidRequest, "unsupported action %q", action)
	}
	return nil
}

// RestrictPartner blocks partnerID for every registered user and returns those users.
func (e *Engine) RestrictPartner(partnerID string) ([]string, error) {
	if partnerID == "" {
		return nil, common.NewError(common.InvalidRequest, "partnerId is required")
	}

	users := e.state.Consent.Users()
	for _, u := range users {
		e.state.Restrictions.Restrict(partnerID, u, restriction.OriginAdmin)
	}
	e.alert(model.AlertPartnerRestrictions, partnerID, "",
		fmt.Sprintf("Administrator restricted partner %s for all %d users", partnerID, len(users)))
	return users, nil
}

// RequestRestriction lets a user block a partner for themself.
func (e *Engine) RequestRestriction(partnerID, userID string) error {
	if err := requirePair(partnerID, userID); err != nil {
		return err
	}
	if _, ok := e.state.Consent.Get(userID); !ok {
		return common.NewError(common.UserNotFound, "user %s not found", userID)
	}

	e.state.Restrictions.Restrict(partnerID, userID, restriction.OriginUser)
	e.alert(model.AlertRestrictionRequest, partnerID, userID,
		fmt.Sprintf("User %s restricted partner %s", userID, partnerID))
	return nil
}

// Escalate records a user's request for administrator attention.
func (e *Engine) Escalate(userID, partnerID, reason string) (model.Alert, error) {
	if err := requirePair(partnerID, userID); err != nil {
		return model.Alert{}, err
	}
	if reason == "" {
		reason = "no reason given"
	}
	a := e.alert(model.AlertUserEscalation, partnerID, userID,
		fmt.Sprintf("User %s escalated partner %s: %s", userID, partnerID, reason))
	return a, nil
}

func (e *Engine) alert(t model.AlertType, partnerID, userID, msg string) model.Alert {
	a := model.Alert{
		ID:        uuid.NewString(),
		Type:      t,
		Partner:   partnerID,
		User:      userID,
		Risk:      e.state.Ledger.Score(partnerID),
		Message:   msg,
		Timestamp: e.now().UTC(),
	}
	e.state.Journal.AppendAlert(a)
	return a
}
