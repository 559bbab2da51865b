//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package seed loads a user registry file that replaces the built-in demo users.
//
// Example:
//
//	apiVersion: datasentinel.manetu.io/v1
//	kind: UserRegistry
//	users:
//	  - id: user1
//	    policyExpiry: "2099-12-31"
//	    consent:
//	      watermark: true
//	      policy: true
//	      honeytoken: true
//	    profile:
//	      name: Ananya Rao
//	      region: IN
//
// A user without a consent section grants every capability; a user without an expiry gets
// the far-future default.
package seed

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manetu/datasentinel/internal/core/consent"
	"github.com/manetu/datasentinel/pkg/core/model"
)

// Supported file header.
const (
	APIVersion = "datasentinel.manetu.io/v1"
	Kind       = "UserRegistry"
)

// Preamble represents the header of a registry file.
type Preamble struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// User is the on-disk form of a [model.User].
type User struct {
	ID           string            `yaml:"id"`
	PolicyExpiry string            `yaml:"policyExpiry"`
	Consent      map[string]bool   `yaml:"consent"`
	Profile      map[string]string `yaml:"profile"`
}

// Registry is the on-disk form of the user registry.
type Registry struct {
	Preamble `yaml:",inline"`
	Users    []User `yaml:"users"`
}

// Load reads a registry file from path.
func Load(path string) ([]model.User, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) ([]model.User, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, err
	}

	if reg.Kind != Kind {
		return nil, fmt.Errorf("expected %s got %s", Kind, reg.Kind)
	}
	if reg.APIVersion != APIVersion {
		return nil, fmt.Errorf("unsupported %s API Version %s", Kind, reg.APIVersion)
	}

	seen := make(map[string]bool, len(reg.Users))
	users := make([]model.User, 0, len(reg.Users))
	for i, u := range reg.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("users[%d]: duplicate id %s", i, u.ID)
		}
		seen[u.ID] = true

		mu, err := u.toModel()
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		users = append(users, mu)
	}
	return users, nil
}

func (u User) toModel() (model.User, error) {
	out := model.User{
		ID:           u.ID,
		PolicyExpiry: u.PolicyExpiry,
		Profile:      u.Profile,
	}

	if out.PolicyExpiry == "" {
		out.PolicyExpiry = consent.DefaultExpiry
	}
	if _, err := time.Parse(model.DateLayout, out.PolicyExpiry); err != nil {
		return model.User{}, fmt.Errorf("policyExpiry %q is not a %s date", out.PolicyExpiry, model.DateLayout)
	}

	if u.Consent == nil {
		out.Consent = model.FullConsent()
		return out, nil
	}
	out.Consent = make(model.Consent, len(u.Consent))
	for name, granted := range u.Consent {
		c, err := model.ParseCapability(name)
		if err != nil {
			return model.User{}, err
		}
		out.Consent[c] = granted
	}
	return out, nil
}
