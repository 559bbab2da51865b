//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package model holds the data types shared by the sentinel's decision pipeline, its
// registries and its API surface.
package model

import (
	"encoding/json"
	"fmt"
)

// Trait is a behavioural tag summarizing a partner's access pattern.
type Trait uint8

// Known traits.  The set is closed; [TraitSet] can only hold these values.
const (
	TraitReckless Trait = iota
	TraitNocturnal
	TraitBursty
	TraitStealthy

	traitCount
)

var traitNames = [traitCount]string{"reckless", "nocturnal", "bursty", "stealthy"}

// String returns the wire name of the trait.
func (t Trait) String() string {
	if t >= traitCount {
		return fmt.Sprintf("trait(%d)", uint8(t))
	}
	return traitNames[t]
}

// MarshalText encodes the trait by name.
func (t Trait) MarshalText() ([]byte, error) {
	if t >= traitCount {
		return nil, fmt.Errorf("unknown trait %d", uint8(t))
	}
	return []byte(traitNames[t]), nil
}

// UnmarshalText decodes a trait name.
func (t *Trait) UnmarshalText(b []byte) error {
	for i, n := range traitNames {
		if n == string(b) {
			*t = Trait(i)
			return nil
		}
	}
	return fmt.Errorf("unknown trait %q", string(b))
}

// TraitSet is an append-only set of traits.
type TraitSet uint8

// With returns the set extended by t.
func (s TraitSet) With(t Trait) TraitSet {
	if t >= traitCount {
		return s
	}
	return s | 1<<t
}

// Has reports membership.
func (s TraitSet) Has(t Trait) bool {
	return t < traitCount && s&(1<<t) != 0
}

// List returns the members in declaration order.
func (s TraitSet) List() []Trait {
	out := []Trait{}
	for t := Trait(0); t < traitCount; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Strings returns the member names in declaration order.
func (s TraitSet) Strings() []string {
	out := []string{}
	for _, t := range s.List() {
		out = append(out, t.String())
	}
	return out
}

// MarshalJSON encodes the set as an array of names.
func (s TraitSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of names.
func (s *TraitSet) UnmarshalJSON(b []byte) error {
	var names []Trait
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var set TraitSet
	for _, t := range names {
		set = set.With(t)
	}
	*s = set
	return nil
}

// Reason is the cause of a score update.
type Reason uint8

// Score update reasons.
const (
	ReasonTrap Reason = iota
	ReasonLateAccess
	ReasonHighFrequency
	ReasonRegionMismatch
)

// String returns the wire name of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonTrap:
		return "trap"
	case ReasonLateAccess:
		return "late_access"
	case ReasonHighFrequency:
		return "high_frequency"
	case ReasonRegionMismatch:
		return "region_mismatch"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}
