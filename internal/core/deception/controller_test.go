//
//  Copyright © Manetu Inc. All rights reserved.
//

package deception

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/synthetic"
)

type fakeState struct {
	active map[string]bool
}

func (f fakeState) IsDeceptionActive(p string) bool { return f.active[p] }
func (f fakeState) Score(p string) int {
	if f.active[p] {
		return 90
	}
	return 0
}

type sink struct {
	mu      sync.Mutex
	records []model.AccessRecord
}

func (s *sink) AppendRecord(r model.AccessRecord) model.AccessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return r
}

func fixed(string) map[string]string {
	return map[string]string{"name": "Fake Person", "email": "fake@example.com"}
}

func TestIsActive(t *testing.T) {
	c := New(fakeState{active: map[string]bool{"p1": true}}, nil, &sink{})
	assert.True(t, c.IsActive("p1"))
	assert.False(t, c.IsActive("p2"))
}

func TestServeLogsEveryField(t *testing.T) {
	s := &sink{}
	c := New(fakeState{active: map[string]bool{"p1": true}}, synthetic.GeneratorFunc(fixed), s, WithLatency(0, 0))

	rec, err := c.Serve(context.Background(), "p1", "user1")
	require.NoError(t, err)
	assert.Equal(t, fixed(""), rec)

	require.Len(t, s.records, 2)
	for _, r := range s.records {
		assert.Equal(t, model.SourceSynthetic, r.Source)
		assert.Equal(t, model.StatusGranted, r.Status)
		assert.Equal(t, "p1", r.Partner)
		assert.Equal(t, "user1", r.User)
		assert.Equal(t, 90, r.Risk)
	}
	assert.Equal(t, "email", s.records[0].Field)
	assert.Equal(t, "name", s.records[1].Field)
}

func TestServeWaitsWithinBounds(t *testing.T) {
	c := New(fakeState{}, synthetic.GeneratorFunc(fixed), &sink{}, WithLatency(20*time.Millisecond, 40*time.Millisecond))

	for i := 0; i < 20; i++ {
		d := c.latency()
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}

	start := time.Now()
	_, err := c.Serve(context.Background(), "p1", "user1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestServeHonoursCancellation(t *testing.T) {
	s := &sink{}
	c := New(fakeState{}, synthetic.GeneratorFunc(fixed), s, WithLatency(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Serve(ctx, "p1", "user1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, s.records)
}

func TestServeDoesNotSerializeUsers(t *testing.T) {
	c := New(fakeState{}, synthetic.GeneratorFunc(fixed), &sink{}, WithLatency(50*time.Millisecond, 50*time.Millisecond))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Serve(context.Background(), "p1", "user1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestWithLatencyNormalizesBounds(t *testing.T) {
	c := New(fakeState{}, nil, &sink{}, WithLatency(30*time.Millisecond, 10*time.Millisecond))
	assert.Equal(t, 30*time.Millisecond, c.latency())
}
