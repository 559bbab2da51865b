//
//  Copyright © Manetu Inc. All rights reserved.
//

package traps

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

type scoreCall struct {
	partner string
	reason  model.Reason
	user    string
}

type fakeScorer struct {
	mu    sync.Mutex
	calls []scoreCall
	err   error
}

func (f *fakeScorer) UpdateScore(_ context.Context, partnerID string, reason model.Reason, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scoreCall{partnerID, reason, userID})
	return 80 * len(f.calls), f.err
}

func fixedNow() time.Time {
	return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
}

func TestInjectEmailReplacesEveryAddress(t *testing.T) {
	r := New(&fakeScorer{}, fixedNow)

	doc := "Contact alice@example.com or bob.smith@corp.example.org; cc alice@example.com."
	redacted, value, err := r.Inject(doc, "email")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(redacted, value))
	assert.NotContains(t, redacted, "alice@example.com")
	assert.NotContains(t, redacted, "bob.smith@corp.example.org")
	assert.True(t, shapes[model.TrapEmail].pattern.MatchString(value))

	tok, ok := r.Lookup(value)
	require.True(t, ok)
	assert.Equal(t, model.TrapEmail, tok.Type)
	assert.Equal(t, fixedNow(), tok.CreatedAt)
	assert.Empty(t, tok.TriggeringPartner)
	assert.Nil(t, tok.TriggeredAt)
}

func TestInjectShapes(t *testing.T) {
	r := New(nil, fixedNow)

	cases := map[string]string{
		"phone": "call +91 98765 43210 now",
		"name":  "signed by Jane Doe",
		"id":    "account 12345678",
	}
	for tt, doc := range cases {
		t.Run(tt, func(t *testing.T) {
			redacted, value, err := r.Inject(doc, tt)
			require.NoError(t, err)
			assert.Contains(t, redacted, value)
			assert.True(t, shapes[model.TrapType(tt)].pattern.MatchString(value), "decoy %q matches its own shape", value)
		})
	}

	assert.Len(t, r.Tokens(), 3)
}

func TestInjectWithoutMatchStillRegisters(t *testing.T) {
	r := New(nil, fixedNow)

	redacted, value, err := r.Inject("nothing to see", "id")
	require.NoError(t, err)
	assert.Equal(t, "nothing to see", redacted)
	assert.Regexp(t, `^9\d{9}$`, value)

	_, ok := r.Lookup(value)
	assert.True(t, ok)
}

func TestInjectInvalidType(t *testing.T) {
	r := New(nil, fixedNow)

	_, _, err := r.Inject("alice@example.com", "ssn")
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.InvalidTrapType))
	assert.Empty(t, r.Tokens())
}

func TestInjectProducesUniqueValues(t *testing.T) {
	r := New(nil, fixedNow)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		_, v, err := r.Inject("", "phone")
		require.NoError(t, err)
		assert.False(t, seen[v])
		seen[v] = true
	}
}

func TestDetectUsageNested(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)
	_, value, err := r.Inject("x", "id")
	require.NoError(t, err)

	node := payload.MappingNode{
		"a": payload.MappingNode{
			"b": payload.MappingNode{
				"c": payload.StringLeaf("prefix " + value + " suffix"),
			},
		},
		"other": payload.StringLeaf("clean"),
	}

	hit, err := r.DetectUsage(context.Background(), "p1", node)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, scorer.calls, 1)
	assert.Equal(t, scoreCall{"p1", model.ReasonTrap, ""}, scorer.calls[0])
}

func TestDetectUsageStringifiedLeaf(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)
	_, value, err := r.Inject("x", "id")
	require.NoError(t, err)

	node, err := payload.Parse([]byte(`{"partnerId": "p1", "extra": {"n": ` + value + `}}`))
	require.NoError(t, err)

	hit, err := r.DetectUsage(context.Background(), "p1", node)
	require.NoError(t, err)
	assert.True(t, hit, "numeric leaves are matched by their string form")
}

func TestDetectUsageMiss(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)

	hit, err := r.DetectUsage(context.Background(), "p1", payload.StringLeaf("anything"))
	require.NoError(t, err)
	assert.False(t, hit, "empty registry")

	_, _, err = r.Inject("x", "email")
	require.NoError(t, err)

	hit, err = r.DetectUsage(context.Background(), "p1", payload.MappingNode{"f": payload.StringLeaf("someone@else.example")})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, scorer.calls)
}

func TestDetectUsageShortCircuits(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)
	_, v1, err := r.Inject("x", "id")
	require.NoError(t, err)
	_, v2, err := r.Inject("x", "phone")
	require.NoError(t, err)

	node := payload.MappingNode{
		"a": payload.StringLeaf(v1),
		"b": payload.StringLeaf(v2),
	}
	hit, err := r.DetectUsage(context.Background(), "p1", node)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, scorer.calls, 1, "one penalty per scan")

	t1, _ := r.Lookup(v1)
	t2, _ := r.Lookup(v2)
	assert.Equal(t, "p1", t1.TriggeringPartner)
	assert.Empty(t, t2.TriggeringPartner)
}

func TestFirstWriterWins(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)
	_, value, err := r.Inject("reach me at carol@example.com", "email")
	require.NoError(t, err)

	field := payload.MappingNode{"field": payload.StringLeaf(value)}

	hit, err := r.DetectUsage(context.Background(), "p1", field)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = r.DetectUsage(context.Background(), "p2", field)
	require.NoError(t, err)
	assert.True(t, hit)

	tok, _ := r.Lookup(value)
	assert.Equal(t, "p1", tok.TriggeringPartner)
	require.NotNil(t, tok.TriggeredAt)
	assert.Len(t, scorer.calls, 2, "both partners are penalized")
}

func TestConcurrentClaim(t *testing.T) {
	r := New(&fakeScorer{}, fixedNow)
	_, value, err := r.Inject("x", "name")
	require.NoError(t, err)

	partners := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	var wg sync.WaitGroup
	for _, p := range partners {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, _ = r.DetectUsage(context.Background(), p, payload.StringLeaf(value))
		}(p)
	}
	wg.Wait()

	tok, _ := r.Lookup(value)
	assert.Contains(t, partners, tok.TriggeringPartner)
}

func TestDetectUsageScorerFailure(t *testing.T) {
	scorer := &fakeScorer{err: common.NewError(common.LockFailed, "busy")}
	r := New(scorer, fixedNow)
	_, value, err := r.Inject("x", "id")
	require.NoError(t, err)

	hit, err := r.DetectUsage(context.Background(), "p1", payload.StringLeaf(value))
	assert.True(t, hit)
	assert.True(t, common.IsCode(err, common.LockFailed))
}

func TestTokensAreCopies(t *testing.T) {
	r := New(nil, fixedNow)
	_, value, err := r.Inject("x", "id")
	require.NoError(t, err)

	toks := r.Tokens()
	toks[0].TriggeringPartner = "mallory"

	tok, _ := r.Lookup(value)
	assert.Empty(t, tok.TriggeringPartner)

	r.Reset()
	assert.Empty(t, r.Tokens())
}

func TestDetectUsageForAttributesUser(t *testing.T) {
	scorer := &fakeScorer{}
	r := New(scorer, fixedNow)
	_, value, err := r.Inject("x", "id")
	require.NoError(t, err)

	hit, err := r.DetectUsageFor(context.Background(), "p2", "user1", payload.StringLeaf(value))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []scoreCall{{"p2", model.ReasonTrap, "user1"}}, scorer.calls)
}
