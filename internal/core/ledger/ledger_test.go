//
//  Copyright © Manetu Inc. All rights reserved.
//

package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(hour int) *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, hour, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu         sync.Mutex
	restricted map[string][]string
	alerts     []model.Alert
}

func newRecorder() *recorder {
	return &recorder{restricted: map[string][]string{}}
}

func (r *recorder) Restrict(partnerID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restricted[partnerID] = append(r.restricted[partnerID], userID)
	return true
}

func (r *recorder) AppendAlert(a model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recorder) alertsOf(t model.AlertType) []model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Alert
	for _, a := range r.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func newTestLedger(hour int, opts ...Option) (*Ledger, *fakeClock, *recorder) {
	clock := newClock(hour)
	rec := newRecorder()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(rec, rec, opts...), clock, rec
}

func TestUnknownPartnerDefaults(t *testing.T) {
	l, _, _ := newTestLedger(12)

	assert.Equal(t, 0, l.Score("ghost"))
	assert.Empty(t, l.Traits("ghost").List())
	assert.False(t, l.IsDeceptionActive("ghost"))
	assert.Empty(t, l.Partners(), "reads do not create entries")
}

func TestRecordAccessWindow(t *testing.T) {
	ctx := context.Background()
	l, clock, _ := newTestLedger(12)

	for i := 1; i <= 3; i++ {
		freq, err := l.RecordAccess(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, i, freq)
		clock.Advance(4 * time.Minute)
	}

	// now at +12m: the first entry (t0) is 12m old, the second 8m old
	freq, err := l.RecordAccess(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, freq)

	// an entry exactly one window old is discarded
	clock.Advance(6 * time.Minute) // +18m: t4=+4m is 14m old, t8=+8m is 10m old
	freq, err = l.RecordAccess(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, freq)
}

func TestTrapUpdate(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(12)

	score, err := l.UpdateScore(ctx, "p1", model.ReasonTrap, "")
	require.NoError(t, err)
	assert.Equal(t, 80, score)
	assert.True(t, l.Traits("p1").Has(model.TraitReckless))
	assert.True(t, l.IsDeceptionActive("p1"))
	assert.Equal(t, 1, l.Snapshot("p1").TrapHits)
	require.Len(t, rec.alertsOf(model.AlertDeceptionActivated), 1)

	_, err = l.UpdateScore(ctx, "p1", model.ReasonTrap, "")
	require.NoError(t, err)
	assert.Len(t, rec.alertsOf(model.AlertDeceptionActivated), 1, "activation alert only on transition")
}

func TestLateAccess(t *testing.T) {
	ctx := context.Background()

	night, _, _ := newTestLedger(3)
	score, err := night.UpdateScore(ctx, "p1", model.ReasonLateAccess, "user1")
	require.NoError(t, err)
	assert.Equal(t, 10, score)
	assert.True(t, night.Traits("p1").Has(model.TraitNocturnal))

	edge, _, _ := newTestLedger(6)
	score, err = edge.UpdateScore(ctx, "p1", model.ReasonLateAccess, "user1")
	require.NoError(t, err)
	assert.Equal(t, 10, score, "hour 6 is still suspicious")

	day, _, _ := newTestLedger(7)
	score, err = day.UpdateScore(ctx, "p1", model.ReasonLateAccess, "user1")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.False(t, day.Traits("p1").Has(model.TraitNocturnal))
	assert.Equal(t, 1, day.Snapshot("p1").Frequency, "access is recorded even without a delta")
}

func TestHighFrequency(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(12)

	for i := 0; i < 5; i++ {
		score, err := l.UpdateScore(ctx, "p1", model.ReasonHighFrequency, "user1")
		require.NoError(t, err)
		assert.Equal(t, 0, score)
	}
	assert.False(t, l.Traits("p1").Has(model.TraitBursty))

	score, err := l.UpdateScore(ctx, "p1", model.ReasonHighFrequency, "user1")
	require.NoError(t, err)
	assert.Equal(t, 10, score)
	assert.True(t, l.Traits("p1").Has(model.TraitBursty))
}

func TestRegionMismatchAddsTwenty(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(12)

	before := l.Score("p1")
	score, err := l.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
	require.NoError(t, err)
	assert.Equal(t, before+20, score)
	assert.Empty(t, l.Traits("p1").List())
}

func TestStealthy(t *testing.T) {
	ctx := context.Background()

	quiet, _, _ := newTestLedger(12)
	for i := 0; i < 11; i++ {
		_, err := quiet.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
		require.NoError(t, err)
	}
	assert.True(t, quiet.Traits("p1").Has(model.TraitStealthy))

	noisy, _, _ := newTestLedger(12)
	_, err := noisy.UpdateScore(ctx, "p1", model.ReasonTrap, "")
	require.NoError(t, err)
	for i := 0; i < 11; i++ {
		_, err := noisy.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
		require.NoError(t, err)
	}
	assert.False(t, noisy.Traits("p1").Has(model.TraitStealthy))
}

func TestFirstTrapAtHighFrequencyIsStealthy(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(12)

	for i := 0; i < 10; i++ {
		_, err := l.UpdateScore(ctx, "p1", model.ReasonHighFrequency, "")
		require.NoError(t, err)
	}
	assert.False(t, l.Traits("p1").Has(model.TraitStealthy))

	// the eleventh access is the first trap hit
	_, err := l.UpdateScore(ctx, "p1", model.ReasonTrap, "")
	require.NoError(t, err)

	traits := l.Traits("p1")
	assert.True(t, traits.Has(model.TraitStealthy))
	assert.True(t, traits.Has(model.TraitReckless))
	assert.True(t, traits.Has(model.TraitBursty))

	// once a trap hit is on record no later update adds it
	noisy, _, _ := newTestLedger(12)
	for i := 0; i < 11; i++ {
		_, err := noisy.UpdateScore(ctx, "p1", model.ReasonTrap, "")
		require.NoError(t, err)
	}
	assert.False(t, noisy.Traits("p1").Has(model.TraitStealthy))
}

func TestRestrictAfterThreeTraps(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(12)

	for i := 0; i < 2; i++ {
		_, err := l.UpdateScore(ctx, "p2", model.ReasonTrap, "user1")
		require.NoError(t, err)
	}
	assert.Empty(t, rec.restricted["p2"])
	assert.Empty(t, rec.alertsOf(model.AlertBlockedAfterTraps))

	_, err := l.UpdateScore(ctx, "p2", model.ReasonTrap, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user1"}, rec.restricted["p2"])

	blocked := rec.alertsOf(model.AlertBlockedAfterTraps)
	require.Len(t, blocked, 1)
	assert.Equal(t, "p2", blocked[0].Partner)
	assert.Equal(t, "user1", blocked[0].User)
	assert.Equal(t, 240, blocked[0].Risk)
}

func TestTrapWithoutUserAlertsButDoesNotRestrict(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(12)

	for i := 0; i < 3; i++ {
		_, err := l.UpdateScore(ctx, "p3", model.ReasonTrap, "")
		require.NoError(t, err)
	}
	assert.Empty(t, rec.restricted)
	assert.Len(t, rec.alertsOf(model.AlertBlockedAfterTraps), 1)
}

func TestScoreUnclampedByDefault(t *testing.T) {
	ctx := context.Background()

	l, _, _ := newTestLedger(12)
	for i := 0; i < 2; i++ {
		_, err := l.UpdateScore(ctx, "p1", model.ReasonTrap, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 160, l.Score("p1"))

	clamped, _, _ := newTestLedger(12, WithClamp(true))
	for i := 0; i < 2; i++ {
		_, err := clamped.UpdateScore(ctx, "p1", model.ReasonTrap, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 100, clamped.Score("p1"))
}

func TestDeceptionReachedFromAccumulation(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(12)

	for i := 0; i < 3; i++ {
		_, err := l.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
		require.NoError(t, err)
	}
	assert.False(t, l.IsDeceptionActive("p1"))

	score, err := l.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
	require.NoError(t, err)
	assert.Equal(t, 80, score)
	assert.True(t, l.IsDeceptionActive("p1"))

	for i := 0; i < 5; i++ {
		_, err := l.RecordAccess(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, l.IsDeceptionActive("p1"))
	}
}

func TestActivateDeception(t *testing.T) {
	l, _, rec := newTestLedger(12)

	require.NoError(t, l.ActivateDeception(context.Background(), "p9"))
	assert.True(t, l.IsDeceptionActive("p9"))
	assert.Equal(t, 0, l.Score("p9"))
	assert.Len(t, rec.alertsOf(model.AlertDeceptionActivated), 1)
}

func TestLockFailure(t *testing.T) {
	l, _, _ := newTestLedger(12)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.UpdateScore(ctx, "p1", model.ReasonTrap, "")
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.LockFailed))
	assert.Equal(t, 0, l.Score("p1"))
}

func TestLockHonoursDeadline(t *testing.T) {
	l, _, _ := newTestLedger(12)

	// hold the partner lock so the update has to wait
	e := l.entry("p1")
	unlock, err := e.lock.lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.UpdateScore(ctx, "p1", model.ReasonRegionMismatch, "user1")
	assert.True(t, common.IsCode(err, common.LockFailed))
}

func TestUnknownReason(t *testing.T) {
	l, _, _ := newTestLedger(12)
	_, err := l.UpdateScore(context.Background(), "p1", model.Reason(99), "")
	assert.Error(t, err)
}

func TestConcurrentUpdatesAreSerializedPerPartner(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(12)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			partner := fmt.Sprintf("p%d", i%2)
			_, err := l.UpdateScore(ctx, partner, model.ReasonRegionMismatch, "user1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25*20, l.Score("p0"))
	assert.Equal(t, 25*20, l.Score("p1"))
	assert.Equal(t, []string{"p0", "p1"}, l.Partners())
	assert.Len(t, rec.alertsOf(model.AlertDeceptionActivated), 2)
}

func TestReset(t *testing.T) {
	l, _, _ := newTestLedger(12)
	_, err := l.UpdateScore(context.Background(), "p1", model.ReasonTrap, "")
	require.NoError(t, err)

	l.Reset()
	assert.Equal(t, 0, l.Score("p1"))
	assert.Empty(t, l.Partners())
}
