package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceAccessRecordRetryBackoff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 15 * time.Minute},
		{2, 30 * time.Minute},
		{3, time.Hour},
		{4, 2 * time.Hour},
		{7, 16 * time.Hour},
		{8, 24 * time.Hour},
		{50, 24 * time.Hour},
	}

	for _, tt := range cases {
		record := &SourceAccessRecord{ConsecutiveFailures: tt.failures}
		assert.Equal(t, tt.want, record.RetryBackoff(), "failures=%d", tt.failures)
	}
}

func TestSourceAccessRecordIsHealthy(t *testing.T) {
	t.Parallel()

	assert.True(t, (&SourceAccessRecord{ConsecutiveFailures: 0}).IsHealthy())
	assert.True(t, (&SourceAccessRecord{ConsecutiveFailures: 2}).IsHealthy())
	assert.False(t, (&SourceAccessRecord{ConsecutiveFailures: 3}).IsHealthy())
}

func TestSourceAccessRecordCanRetry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Never attempted: always eligible.
	fresh := &SourceAccessRecord{}
	assert.True(t, fresh.CanRetryNow(now))

	attempted := now.Add(-10 * time.Minute)
	record := &SourceAccessRecord{
		ConsecutiveFailures: 1,
		LastAttemptAt:       &attempted,
	}
	assert.Equal(t, attempted.Add(15*time.Minute), record.CanRetryAt())
	assert.False(t, record.CanRetryNow(now))
	assert.True(t, record.CanRetryNow(now.Add(5*time.Minute)))
}

func TestBookCompletedSources(t *testing.T) {
	t.Parallel()

	book := &Book{CompletedSources: "[3,5]"}
	assert.NoError(t, book.UnmarshalCompletedSources())
	assert.True(t, book.SourceCompleted(3))
	assert.False(t, book.SourceCompleted(4))

	book.MarkSourceCompleted(4)
	book.MarkSourceCompleted(3)
	assert.Equal(t, []int{3, 5, 4}, book.CompletedSourcesParsed)

	assert.NoError(t, book.MarshalCompletedSources())
	assert.Equal(t, "[3,5,4]", book.CompletedSources)

	empty := &Book{}
	assert.NoError(t, empty.UnmarshalCompletedSources())
	assert.Empty(t, empty.CompletedSourcesParsed)
}