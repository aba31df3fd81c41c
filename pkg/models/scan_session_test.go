package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSessionQueue(t *testing.T) {
	t.Parallel()

	session := &ScanSession{}
	require.NoError(t, session.UnmarshalPayloads())

	session.EnqueueMissingSource(1, 10)
	session.EnqueueMissingSource(1, 11)
	session.EnqueueMissingSource(1, 10)
	session.EnqueueMissingSource(2, 10)

	require.Len(t, session.ResumeQueueParsed, 2)
	entry := session.QueueEntryFor(1)
	require.NotNil(t, entry)
	assert.Equal(t, []int{10, 11}, entry.MissingSources)

	session.DequeueSource(1, 10)
	entry = session.QueueEntryFor(1)
	require.NotNil(t, entry)
	assert.Equal(t, []int{11}, entry.MissingSources)

	// Removing the last missing source drops the whole entry.
	session.DequeueSource(1, 11)
	assert.Nil(t, session.QueueEntryFor(1))
	require.Len(t, session.ResumeQueueParsed, 1)

	session.DequeueBook(2)
	assert.Empty(t, session.ResumeQueueParsed)

	// Dequeueing unknown pairs is a no-op.
	session.DequeueSource(5, 5)
	session.DequeueBook(5)
	assert.Empty(t, session.ResumeQueueParsed)
}

func TestScanSessionPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	session := &ScanSession{}
	require.NoError(t, session.UnmarshalPayloads())

	session.CountCall("openlibrary")
	session.CountCall("openlibrary")
	session.CountFailure("openlibrary")
	session.CountRateLimitHit("googlebooks")
	session.EnqueueMissingSource(7, 3)

	require.NoError(t, session.MarshalPayloads())

	restored := &ScanSession{
		CallsMade:     session.CallsMade,
		Failures:      session.Failures,
		RateLimitsHit: session.RateLimitsHit,
		ResumeQueue:   session.ResumeQueue,
	}
	require.NoError(t, restored.UnmarshalPayloads())

	assert.Equal(t, 2, restored.CallsMadeParsed["openlibrary"])
	assert.Equal(t, 1, restored.FailuresParsed["openlibrary"])
	assert.Equal(t, 1, restored.RateLimitsHitParsed["googlebooks"])
	require.Len(t, restored.ResumeQueueParsed, 1)
	assert.Equal(t, 7, restored.ResumeQueueParsed[0].BookID)
	assert.Equal(t, []int{3}, restored.ResumeQueueParsed[0].MissingSources)
}

func TestScanSessionUnmarshalEmptyColumns(t *testing.T) {
	t.Parallel()

	session := &ScanSession{}
	require.NoError(t, session.UnmarshalPayloads())

	assert.NotNil(t, session.CallsMadeParsed)
	assert.NotNil(t, session.FailuresParsed)
	assert.NotNil(t, session.RateLimitsHitParsed)
	assert.NotNil(t, session.ResumeQueueParsed)
}