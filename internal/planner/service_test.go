package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/familyzen/internal/events"
)

type memoryCache struct {
	mu    sync.Mutex
	plans map[string]*Plan
	sets  int
}

func (c *memoryCache) key(familyID string, ref time.Time) string {
	return familyID + "|" + ref.Format(time.DateOnly)
}

func (c *memoryCache) GetPlan(_ context.Context, familyID string, _ Input, ref time.Time) (*Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[c.key(familyID, ref)]
	return p, ok
}

func (c *memoryCache) SetPlan(_ context.Context, plan *Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plans == nil {
		c.plans = make(map[string]*Plan)
	}
	c.plans[c.key(plan.FamilyID, plan.ReferenceDate)] = plan
	c.sets++
	return nil
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestServiceSuggestUsesCapturedReferenceDate(t *testing.T) {
	svc := NewService(time.UTC, nil, zerolog.Nop())
	svc.SetClock(fixedClock(time.Date(2024, time.January, 15, 23, 59, 59, 0, time.UTC)))

	plan, err := svc.Suggest(context.Background(), "12", Request{})
	require.NoError(t, err)

	require.Len(t, plan.Events, 7)
	for _, ev := range plan.Events[:5] {
		if ev.ID == EventStudy {
			continue
		}
		assert.Equal(t, 15, ev.StartsAt.Day(), "%s", ev.ID)
	}
	assert.Equal(t, "12", plan.FamilyID)
	assert.Equal(t, FormatVersion, plan.Version)
}

func TestServiceSuggestConvertsClockToServiceLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	svc := NewService(loc, nil, zerolog.Nop())
	// 02:00 UTC on the 16th is still the 15th five hours west.
	svc.SetClock(fixedClock(time.Date(2024, time.January, 16, 2, 0, 0, 0, time.UTC)))

	plan, err := svc.Suggest(context.Background(), "1", Request{})
	require.NoError(t, err)
	assert.Equal(t, 15, plan.Events[0].StartsAt.Day())
	assert.Equal(t, loc, plan.Events[0].StartsAt.Location())
}

func TestServiceSuggestRejectsInvalidTime(t *testing.T) {
	svc := NewService(time.UTC, nil, zerolog.Nop())

	plan, err := svc.Suggest(context.Background(), "1", Request{SchoolStart: Present("8h30")})
	assert.Nil(t, plan)
	assert.True(t, errors.Is(err, ErrInvalidTimeFormat))
}

func TestServicePublishesPlanGenerated(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventPlanGenerated)
	defer bus.Unsubscribe(events.EventPlanGenerated, sub)

	svc := NewService(time.UTC, bus, zerolog.Nop())
	svc.SetClock(fixedClock(refDate))

	_, err := svc.Suggest(context.Background(), "99", Request{Chores: Present([]string{"x"})})
	require.NoError(t, err)

	select {
	case payload := <-sub:
		assert.Equal(t, "99", payload["family_id"])
		assert.Equal(t, 6, payload["event_count"])
		assert.Equal(t, "2024-01-15", payload["reference_date"])
	case <-time.After(time.Second):
		t.Fatal("expected plan.generated event")
	}
}

func TestServiceServesCachedPlan(t *testing.T) {
	cache := &memoryCache{}
	svc := NewService(time.UTC, nil, zerolog.Nop())
	svc.SetClock(fixedClock(refDate))
	svc.SetCache(cache)

	first, err := svc.Suggest(context.Background(), "5", Request{})
	require.NoError(t, err)
	second, err := svc.Suggest(context.Background(), "5", Request{})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	assert.Same(t, first, second)
}

type invalidatingCache struct {
	memoryCache
	dropped []string
}

func (c *invalidatingCache) InvalidateFamily(_ context.Context, familyID string) error {
	c.dropped = append(c.dropped, familyID)
	return nil
}

func TestServiceInvalidateFamily(t *testing.T) {
	svc := NewService(time.UTC, nil, zerolog.Nop())
	assert.ErrorIs(t, svc.InvalidateFamily(context.Background(), "5"), ErrNoInvalidation, "no cache configured")

	svc.SetCache(&memoryCache{})
	assert.ErrorIs(t, svc.InvalidateFamily(context.Background(), "5"), ErrNoInvalidation)

	cache := &invalidatingCache{}
	svc.SetCache(cache)
	require.NoError(t, svc.InvalidateFamily(context.Background(), "5"))
	assert.Equal(t, []string{"5"}, cache.dropped)
}
