//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import (
	"fmt"
	"time"

	"github.com/manetu/datasentinel/pkg/core/payload"
)

// TrapType selects the shape of a planted decoy.
type TrapType string

// Supported decoy shapes.
const (
	TrapEmail TrapType = "email"
	TrapPhone TrapType = "phone"
	TrapName  TrapType = "name"
	TrapID    TrapType = "id"
)

// ParseTrapType validates s as a [TrapType].
func ParseTrapType(s string) (TrapType, error) {
	switch t := TrapType(s); t {
	case TrapEmail, TrapPhone, TrapName, TrapID:
		return t, nil
	}
	return "", fmt.Errorf("unsupported trap type %q", s)
}

// TrapToken is a registered decoy value.
type TrapToken struct {
	Value             string     `json:"value"`
	Type              TrapType   `json:"type"`
	CreatedAt         time.Time  `json:"createdAt"`
	TriggeringPartner string     `json:"triggeringPartner,omitempty"`
	TriggeredAt       *time.Time `json:"triggeredAt,omitempty"`
}

// Status is the outcome of an admission decision.
type Status string

// Decision outcomes.
const (
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
)

// AccessDecision is the per (partner, user) outcome.
type AccessDecision struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Expiry string `json:"expiry,omitempty"`
}

// Granted is shorthand for a grant.
func Granted(expiry string) AccessDecision {
	return AccessDecision{Status: StatusGranted, Expiry: expiry}
}

// Denied is shorthand for a denial.
func Denied(reason string) AccessDecision {
	return AccessDecision{Status: StatusDenied, Reason: reason}
}

// Level is the severity tier of a user notification.
type Level string

// Notification tiers.
const (
	LevelNormal  Level = "normal"
	LevelWarning Level = "warning"
	LevelThreat  Level = "threat"
)

// Notification tells a user that a partner accessed their data.
type Notification struct {
	ID               string    `json:"id"`
	User             string    `json:"user"`
	Partner          string    `json:"partner"`
	Type             string    `json:"type"`
	Level            Level     `json:"level"`
	Message          string    `json:"message"`
	Risk             int       `json:"risk"`
	CanEscalate      bool      `json:"canEscalate"`
	EscalationReason string    `json:"escalationReason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// AlertType classifies an alert.
type AlertType string

// Alert types raised by the sentinel.
const (
	AlertTrapTriggered       AlertType = "trap_triggered"
	AlertBlockedAfterTraps   AlertType = "blocked_after_3_trap_hits"
	AlertDeceptionActivated  AlertType = "deception_activated"
	AlertAdminBlock          AlertType = "admin_block"
	AlertAdminExpire         AlertType = "admin_expire"
	AlertRestrictionRequest  AlertType = "restriction_requested"
	AlertUserEscalation      AlertType = "user_escalation"
	AlertRegionMismatch      AlertType = "region_mismatch"
	AlertPartnerRestrictions AlertType = "partner_restricted"
)

// Alert is an append-only administrative event.  User is empty for partner-wide alerts.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Partner   string    `json:"partner"`
	User      string    `json:"user,omitempty"`
	Risk      int       `json:"risk"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Source tells whether a delivered field was real or synthetic.
type Source string

// Field sources.
const (
	SourceReal      Source = "real"
	SourceSynthetic Source = "synthetic"
)

// AccessRecord is a forensic log entry.  Grants produce one record per delivered field;
// denials produce a single record without a field.
type AccessRecord struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Partner       string            `json:"partner"`
	User          string            `json:"user"`
	Purpose       string            `json:"purpose,omitempty"`
	Region        string            `json:"region,omitempty"`
	Field         string            `json:"field,omitempty"`
	Source        Source            `json:"source,omitempty"`
	Status        Status            `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	TrapTriggered bool              `json:"trapTriggered"`
	Risk          int               `json:"risk"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PartnerSnapshot is a point-in-time copy of a partner's ledger entry.
type PartnerSnapshot struct {
	ID              string    `json:"partnerId"`
	Score           int       `json:"score"`
	Traits          TraitSet  `json:"traits"`
	TrapHits        int       `json:"trapHits"`
	Frequency       int       `json:"frequency"`
	DeceptionActive bool      `json:"deceptionActive"`
	LastAccess      time.Time `json:"lastAccess"`
}

// AccessRequest asks for data of one or more users.  Payload holds the complete inbound
// body, including the named fields, for decoy scanning.
type AccessRequest struct {
	PartnerID      string       `json:"partnerId"`
	Region         string       `json:"region"`
	Purpose        string       `json:"purpose"`
	RequestedUsers []string     `json:"requestedUsers"`
	Payload        payload.Node `json:"-"`
}

// AccessResponse carries the decisions and the records handed to the partner.
type AccessResponse struct {
	PartnerID     string                       `json:"partnerId"`
	Decisions     map[string]AccessDecision    `json:"decisions"`
	Data          map[string]map[string]string `json:"data"`
	TrapTriggered bool                         `json:"trapTriggered"`
}

// WatermarkIssue links an issued watermark to the partner it was generated for.
type WatermarkIssue struct {
	Watermark string    `json:"watermark"`
	Partner   string    `json:"partnerId"`
	Timestamp time.Time `json:"timestamp"`
}

// WatermarkDecode is one attempt to trace a leaked watermark.  Culprit is empty when the
// watermark was never issued.
type WatermarkDecode struct {
	Leaked    string    `json:"leaked"`
	Culprit   string    `json:"culprit"`
	Timestamp time.Time `json:"timestamp"`
}
