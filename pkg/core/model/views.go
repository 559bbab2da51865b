//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import (
	"fmt"
	"time"
)

// RestrictAction is an administrative restriction kind.
type RestrictAction string

// Administrative restriction kinds.  Block is a hard (partner, user) restriction; expire is
// a soft block that forces the user's policy expiry to today.
const (
	ActionBlock  RestrictAction = "block"
	ActionExpire RestrictAction = "expire"
)

// ParseRestrictAction validates s as a [RestrictAction].
func ParseRestrictAction(s string) (RestrictAction, error) {
	switch a := RestrictAction(s); a {
	case ActionBlock, ActionExpire:
		return a, nil
	}
	return "", fmt.Errorf("unsupported restriction action %q", s)
}

// TrapInjection is the result of planting a decoy into a document.
type TrapInjection struct {
	RedactedDocument string   `json:"redactedDocument"`
	TrapValue        string   `json:"trapValue"`
	TrapType         TrapType `json:"trapType"`
}

// PartnerActivity summarizes a partner for administrators.
type PartnerActivity struct {
	PartnerSnapshot
	GrantedRecords   int      `json:"grantedRecords"`
	DeniedRecords    int      `json:"deniedRecords"`
	SyntheticRecords int      `json:"syntheticRecords"`
	TrapsTriggered   int      `json:"trapsTriggered"`
	RestrictedUsers  []string `json:"restrictedUsers"`
}

// RestrictedPartner lists the users a partner is blocked for, with its risk posture.
type RestrictedPartner struct {
	PartnerSnapshot
	Users []string `json:"users"`
}

// UserActivity summarizes a user for administrators.
type UserActivity struct {
	TotalNotifications   int        `json:"totalNotifications"`
	ThreatNotifications  int        `json:"threatNotifications"`
	WarningNotifications int        `json:"warningNotifications"`
	AccessRecords        int        `json:"accessRecords"`
	RestrictedPartners   []string   `json:"restrictedPartners"`
	LastAccess           *time.Time `json:"lastAccess,omitempty"`
}
