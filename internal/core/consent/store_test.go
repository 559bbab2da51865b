//
//  Copyright © Manetu Inc. All rights reserved.
//

package consent

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
)

func TestDefaultUsers(t *testing.T) {
	s := NewStore(DefaultUsers())
	assert.Equal(t, []string{"user1", "user2", "user3"}, s.Users())

	u, ok := s.Get("user1")
	require.True(t, ok)
	assert.Equal(t, model.FullConsent(), u.Consent)
	assert.Equal(t, DefaultExpiry, u.PolicyExpiry)
	assert.Equal(t, "IN", u.Profile["region"])

	_, ok = s.Get("user9")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(DefaultUsers())

	u, _ := s.Get("user1")
	u.Consent[model.CapabilityPolicy] = false
	u.Profile["name"] = "someone else"

	again, _ := s.Get("user1")
	assert.True(t, again.Consent[model.CapabilityPolicy])
	assert.Equal(t, "Ananya Rao", again.Profile["name"])
}

func TestUpdateMergesPatch(t *testing.T) {
	s := NewStore(DefaultUsers())

	u, err := s.Update("user2", model.Consent{model.CapabilityWatermark: false})
	require.NoError(t, err)
	assert.False(t, u.Consent[model.CapabilityWatermark])
	assert.True(t, u.Consent[model.CapabilityPolicy])
	assert.True(t, u.Consent[model.CapabilityHoneytoken])

	_, err = s.Update("ghost", model.Consent{model.CapabilityPolicy: false})
	assert.True(t, common.IsCode(err, common.UserNotFound))
}

func TestSetExpiry(t *testing.T) {
	s := NewStore(DefaultUsers())

	require.NoError(t, s.SetExpiry("user3", "2026-01-01"))
	u, _ := s.Get("user3")
	assert.Equal(t, "2026-01-01", u.PolicyExpiry)

	assert.True(t, common.IsCode(s.SetExpiry("user3", "tomorrow"), common.InvalidRequest))
	assert.True(t, common.IsCode(s.SetExpiry("ghost", "2026-01-01"), common.UserNotFound))
}

func TestResetDoesNotAliasSeed(t *testing.T) {
	seed := []model.User{{ID: "u", Consent: model.FullConsent(), PolicyExpiry: DefaultExpiry}}
	s := NewStore(seed)

	seed[0].Consent[model.CapabilityPolicy] = false
	u, _ := s.Get("u")
	assert.True(t, u.Consent[model.CapabilityPolicy])

	s.Reset(nil)
	assert.Empty(t, s.Users())
}

func TestNilConsentIsRevoked(t *testing.T) {
	s := NewStore([]model.User{{ID: "bare", PolicyExpiry: DefaultExpiry}})

	u, ok := s.Get("bare")
	require.True(t, ok)
	assert.False(t, u.Consent[model.CapabilityPolicy])

	_, err := s.Update("bare", model.Consent{model.CapabilityPolicy: true})
	require.NoError(t, err)
}

func TestConcurrentUpdates(t *testing.T) {
	s := NewStore(DefaultUsers())

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", i%3+1)
			_, err := s.Update(user, model.Consent{model.CapabilityHoneytoken: i%2 == 0})
			assert.NoError(t, err)
			_, _ = s.Get(user)
		}(i)
	}
	wg.Wait()
}

func TestGeneratePolicy(t *testing.T) {
	now := time.Date(2026, 12, 30, 23, 0, 0, 0, time.UTC)
	p := GeneratePolicy("analytics", 5, "US", now)

	assert.Equal(t, model.Policy{
		Purpose:         "analytics",
		ExpiryDate:      "2027-01-04",
		RetentionPolicy: "standard",
		GeoRestriction:  "US",
	}, p)
}

func TestPolicyStore(t *testing.T) {
	ps := NewPolicyStore(model.Policy{GeoRestriction: "IN"})
	assert.Equal(t, "IN", ps.Current().GeoRestriction)

	ps.Replace(model.Policy{GeoRestriction: "EU", Purpose: "research"})
	assert.Equal(t, "EU", ps.Current().GeoRestriction)
	assert.Equal(t, "research", ps.Current().Purpose)
}
