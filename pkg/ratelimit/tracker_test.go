package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	return NewTracker(NewMemoryStore(clock), clock), clock
}

func TestCheckLimitsUnlimited(t *testing.T) {
	t.Parallel()
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	decision, err := tracker.CheckLimits(ctx, "openlibrary", Limits{})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestCheckLimitsMinuteWindow(t *testing.T) {
	t.Parallel()
	tracker, clock := newTestTracker(t)
	ctx := context.Background()
	limits := Limits{PerMinute: 2}

	for i := 0; i < 2; i++ {
		decision, err := tracker.CheckLimits(ctx, "openlibrary", limits)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		require.NoError(t, tracker.RecordRequest(ctx, "openlibrary", limits))
	}

	// Third call in the same minute bucket is denied.
	decision, err := tracker.CheckLimits(ctx, "openlibrary", limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "minute limit of 2")
	assert.Equal(t, 2, decision.Counts["minute"])
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, decision.RetryAfter, time.Minute)

	// The minute rolls over and the source is admitted again.
	clock.Advance(time.Minute)
	decision, err = tracker.CheckLimits(ctx, "openlibrary", limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Counts["minute"])
}

func TestCheckLimitsDailyTakesPrecedence(t *testing.T) {
	t.Parallel()
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	limits := Limits{PerDay: 1, PerMinute: 1}

	require.NoError(t, tracker.RecordRequest(ctx, "openlibrary", limits))

	decision, err := tracker.CheckLimits(ctx, "openlibrary", limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "daily limit of 1")
}

func TestCheckLimitsPerSource(t *testing.T) {
	t.Parallel()
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	limits := Limits{PerMinute: 1}

	require.NoError(t, tracker.RecordRequest(ctx, "openlibrary", limits))

	decision, err := tracker.CheckLimits(ctx, "googlebooks", limits)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestRecordRequestOnlyConfiguredPeriods(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	tracker := NewTracker(store, clock)
	ctx := context.Background()

	require.NoError(t, tracker.RecordRequest(ctx, "openlibrary", Limits{PerHour: 10}))

	count, err := store.Get(ctx, bucketKey("openlibrary", periods[1], clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.Get(ctx, bucketKey("openlibrary", periods[0], clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBucketKeyIsWallClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, "openlibrary:daily:2026-03-14", bucketKey("openlibrary", periods[0], now))
	assert.Equal(t, "openlibrary:hourly:2026-03-14T10", bucketKey("openlibrary", periods[1], now))
	assert.Equal(t, "openlibrary:minute:2026-03-14T10:30", bucketKey("openlibrary", periods[2], now))

	// Non-UTC inputs land in the same bucket as their UTC equivalent.
	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t,
		bucketKey("openlibrary", periods[2], now),
		bucketKey("openlibrary", periods[2], now.In(est)))
}

func TestRollover(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, 15*time.Second, rollover(periods[2], now))
	assert.Equal(t, 29*time.Minute+15*time.Second, rollover(periods[1], now))
	assert.Equal(t, 13*time.Hour+29*time.Minute+15*time.Second, rollover(periods[0], now))
}
