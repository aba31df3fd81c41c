package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker() (*Breaker, *fakeClock) {
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	configs := map[string]BreakerConfig{
		"openlibrary": {FailureThreshold: 3, Cooldown: time.Minute},
	}
	return NewBreaker(clock, configs), clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	t.Parallel()
	breaker, _ := newTestBreaker()

	breaker.RecordFailure("openlibrary")
	breaker.RecordFailure("openlibrary")
	assert.False(t, breaker.IsOpen("openlibrary"))

	breaker.RecordFailure("openlibrary")
	assert.True(t, breaker.IsOpen("openlibrary"))
}

func TestBreakerLazyResetAfterCooldown(t *testing.T) {
	t.Parallel()
	breaker, clock := newTestBreaker()

	for i := 0; i < 3; i++ {
		breaker.RecordFailure("openlibrary")
	}
	assert.True(t, breaker.IsOpen("openlibrary"))

	clock.Advance(time.Minute + time.Second)
	assert.False(t, breaker.IsOpen("openlibrary"))

	// State was reset, so a single new failure doesn't reopen it.
	breaker.RecordFailure("openlibrary")
	assert.False(t, breaker.IsOpen("openlibrary"))
}

func TestBreakerSuccessClearsState(t *testing.T) {
	t.Parallel()
	breaker, _ := newTestBreaker()

	breaker.RecordFailure("openlibrary")
	breaker.RecordFailure("openlibrary")
	breaker.RecordSuccess("openlibrary")
	breaker.RecordFailure("openlibrary")
	breaker.RecordFailure("openlibrary")
	assert.False(t, breaker.IsOpen("openlibrary"))
}

func TestBreakerEvictsIdleState(t *testing.T) {
	t.Parallel()
	breaker, clock := newTestBreaker()

	breaker.RecordFailure("openlibrary")
	clock.Advance(2*time.Minute + time.Second)

	assert.False(t, breaker.IsOpen("openlibrary"))
	status := breaker.Status("openlibrary")
	assert.Zero(t, status.Failures)
	assert.Nil(t, status.LastFailureAt)
}

func TestBreakerFallbackConfig(t *testing.T) {
	t.Parallel()
	breaker, _ := newTestBreaker()

	// googlebooks has no explicit config, so the default threshold of 5
	// applies.
	for i := 0; i < 4; i++ {
		breaker.RecordFailure("googlebooks")
	}
	assert.False(t, breaker.IsOpen("googlebooks"))
	breaker.RecordFailure("googlebooks")
	assert.True(t, breaker.IsOpen("googlebooks"))
}

func TestBreakerStatus(t *testing.T) {
	t.Parallel()
	breaker, clock := newTestBreaker()

	status := breaker.Status("openlibrary")
	assert.False(t, status.Open)
	assert.Zero(t, status.Failures)

	for i := 0; i < 3; i++ {
		breaker.RecordFailure("openlibrary")
	}

	status = breaker.Status("openlibrary")
	assert.True(t, status.Open)
	assert.Equal(t, 3, status.Failures)
	if assert.NotNil(t, status.LastFailureAt) {
		assert.Equal(t, clock.Now(), *status.LastFailureAt)
	}
	if assert.NotNil(t, status.ReopensAt) {
		assert.Equal(t, clock.Now().Add(time.Minute), *status.ReopensAt)
	}
}
