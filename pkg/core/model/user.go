//
//  Copyright © Manetu Inc. All rights reserved.
//

package model

import (
	"fmt"
	"time"
)

// DateLayout is the layout of every date string exchanged by the sentinel.
const DateLayout = "2006-01-02"

// Capability is a data-sharing permission a user can grant or revoke.
type Capability uint8

// Consent capabilities.
const (
	CapabilityWatermark Capability = iota
	CapabilityPolicy
	CapabilityHoneytoken

	capabilityCount
)

var capabilityNames = [capabilityCount]string{"watermark", "policy", "honeytoken"}

// ConsentCheckOrder is the order in which consent flags are verified during admission.
var ConsentCheckOrder = []Capability{CapabilityPolicy, CapabilityWatermark, CapabilityHoneytoken}

// String returns the wire name of the capability.
func (c Capability) String() string {
	if c >= capabilityCount {
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
	return capabilityNames[c]
}

// MarshalText encodes the capability by name; it also makes [Consent] encode as a JSON
// object keyed by name.
func (c Capability) MarshalText() ([]byte, error) {
	if c >= capabilityCount {
		return nil, fmt.Errorf("unknown capability %d", uint8(c))
	}
	return []byte(capabilityNames[c]), nil
}

// UnmarshalText decodes a capability name.
func (c *Capability) UnmarshalText(b []byte) error {
	parsed, err := ParseCapability(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCapability maps a wire name to a [Capability].
func ParseCapability(s string) (Capability, error) {
	for i, n := range capabilityNames {
		if n == s {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// Consent is a user's capability matrix.  A missing capability counts as revoked.
type Consent map[Capability]bool

// FullConsent grants every capability.
func FullConsent() Consent {
	return Consent{CapabilityWatermark: true, CapabilityPolicy: true, CapabilityHoneytoken: true}
}

// User is a data subject known to the consent store.
type User struct {
	ID           string            `json:"id"`
	Consent      Consent           `json:"consent"`
	PolicyExpiry string            `json:"policyExpiry"`
	Profile      map[string]string `json:"profile,omitempty"`
}

// Expired reports whether now is past the user's policy expiry, where the expiry date
// starts at midnight UTC.  An unparseable expiry counts as expired.
func (u User) Expired(now time.Time) bool {
	expiry, err := time.Parse(DateLayout, u.PolicyExpiry)
	if err != nil {
		return true
	}
	return now.UTC().After(expiry)
}

// Policy is the process-wide data-sharing envelope.
type Policy struct {
	Purpose         string `json:"purpose"`
	ExpiryDate      string `json:"expiryDate"`
	RetentionPolicy string `json:"retentionPolicy"`
	GeoRestriction  string `json:"geoRestriction"`
}
