//
//  Copyright © Manetu Inc. All rights reserved.
//

package api

import (
	"encoding/json"
	"time"

	"github.com/manetu/datasentinel/pkg/core/model"
)

// BulkRequest wraps several access requests.  Requests are decoded individually so each
// keeps its raw payload for decoy scanning.
type BulkRequest struct {
	Requests []json.RawMessage `json:"requests"`
}

// InjectTrapRequest plants a decoy into a document.
type InjectTrapRequest struct {
	Document string `json:"document"`
	TrapType string `json:"trapType"`
}

// TestTrapValueRequest scans a value on behalf of a partner.
type TestTrapValueRequest struct {
	PartnerID string `json:"partnerId"`
	Value     string `json:"value"`
}

// TestTrapValueResponse reports whether a decoy was found.
type TestTrapValueResponse struct {
	Detected bool `json:"detected"`
}

// PartnerRequest names a partner.
type PartnerRequest struct {
	PartnerID string `json:"partnerId"`
}

// RiskScoreResponse is the partner's risk posture.
type RiskScoreResponse struct {
	PartnerID       string         `json:"partnerId"`
	Score           int            `json:"score"`
	Traits          model.TraitSet `json:"traits"`
	TrapHits        int            `json:"trapHits"`
	DeceptionActive bool           `json:"deceptionActive"`
}

// GeneratePolicyRequest replaces the active policy.
type GeneratePolicyRequest struct {
	Purpose   string   `json:"purpose"`
	DaysValid int      `json:"daysValid"`
	Region    string   `json:"region"`
	Users     []string `json:"users,omitempty"`
}

// WatermarkRequest fingerprints content for a partner.
type WatermarkRequest struct {
	Content   string `json:"content"`
	PartnerID string `json:"partnerId"`
}

// WatermarkResponse carries the fingerprint.
type WatermarkResponse struct {
	Watermark string `json:"watermark"`
}

// VerifyWatermarkRequest names a leaked watermark to trace.
type VerifyWatermarkRequest struct {
	Watermark string `json:"watermark"`
}

// VerifyWatermarkResponse names the partner a watermark was issued to and when.
type VerifyWatermarkResponse struct {
	Culprit   string    `json:"culprit"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateConsentRequest patches a user's consent flags.
type UpdateConsentRequest struct {
	UserID  string        `json:"userId"`
	Consent model.Consent `json:"consent"`
}

// RestrictAccessRequest applies an administrative action to a (partner, user) pair.
type RestrictAccessRequest struct {
	PartnerID string `json:"partnerId"`
	UserID    string `json:"userId"`
	Action    string `json:"action"`
}

// RestrictPartnerResponse lists the users the partner was blocked for.
type RestrictPartnerResponse struct {
	PartnerID string   `json:"partnerId"`
	Users     []string `json:"users"`
}

// PairRequest names a (partner, user) pair.
type PairRequest struct {
	PartnerID string `json:"partnerId"`
	UserID    string `json:"userId"`
}

// EscalationRequest asks an administrator to look at a partner.
type EscalationRequest struct {
	UserID    string `json:"userId"`
	PartnerID string `json:"partnerId"`
	Reason    string `json:"reason"`
}

// StatusResponse acknowledges a state change.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
