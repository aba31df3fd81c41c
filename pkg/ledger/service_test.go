package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/migrations"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func ptr[T any](v T) *T {
	return &v
}

func TestRecordAttemptUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	attempted := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	record, err := svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:       1,
		SourceID:     2,
		Success:      false,
		ErrorMessage: ptr("connection reset"),
		AttemptedAt:  attempted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusFailed, record.Status)
	assert.Equal(t, 1, record.ConsecutiveFailures)
	require.NotNil(t, record.LastError)
	assert.Equal(t, "connection reset", *record.LastError)

	// A second failure lands on the same row and increments the streak.
	record, err = svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:      1,
		SourceID:    2,
		Success:     false,
		RateLimited: true,
		AttemptedAt: attempted.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusRateLimited, record.Status)
	assert.Equal(t, 2, record.ConsecutiveFailures)

	records, err := svc.ListRecords(ctx, ListRecordsOptions{BookID: ptr(1)})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// A success resets the streak.
	record, err = svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:      1,
		SourceID:    2,
		Success:     true,
		ItemsFound:  4,
		Confidence:  ptr(0.85),
		AttemptedAt: attempted.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusSuccess, record.Status)
	assert.Equal(t, 0, record.ConsecutiveFailures)
	assert.Equal(t, 4, record.ItemsFound)
	require.NotNil(t, record.LastConfidence)
	assert.Equal(t, 0.85, *record.LastConfidence)
}

func TestRecordAttemptIsolatesPairs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.RecordAttempt(ctx, RecordAttemptOptions{BookID: 1, SourceID: 1, Success: false})
	require.NoError(t, err)
	_, err = svc.RecordAttempt(ctx, RecordAttemptOptions{BookID: 1, SourceID: 2, Success: true})
	require.NoError(t, err)
	_, err = svc.RecordAttempt(ctx, RecordAttemptOptions{BookID: 2, SourceID: 1, Success: true})
	require.NoError(t, err)

	records, err := svc.ListRecords(ctx, ListRecordsOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	record, err := svc.RetrieveRecord(ctx, RetrieveRecordOptions{BookID: 1, SourceID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.AccessStatusFailed, record.Status)
	assert.Equal(t, 1, record.ConsecutiveFailures)
}

func TestRetrieveRecordNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.RetrieveRecord(ctx, RetrieveRecordOptions{BookID: 99, SourceID: 99})
	assert.ErrorIs(t, err, errcodes.NotFound("SourceAccessRecord"))
}

func TestRetryEligibleCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// One failure 20 minutes ago: backoff is 15 minutes, so eligible.
	_, err := svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:      1,
		SourceID:    1,
		AttemptedAt: now.Add(-20 * time.Minute),
	})
	require.NoError(t, err)

	// One failure 5 minutes ago: still inside the backoff window.
	_, err = svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:      2,
		SourceID:    1,
		AttemptedAt: now.Add(-5 * time.Minute),
	})
	require.NoError(t, err)

	// Three straight failures: unhealthy, never counted.
	for i := 0; i < models.HealthyFailureThreshold; i++ {
		_, err = svc.RecordAttempt(ctx, RecordAttemptOptions{
			BookID:      3,
			SourceID:    1,
			AttemptedAt: now.Add(-48 * time.Hour),
		})
		require.NoError(t, err)
	}

	// A success is not a retry target.
	_, err = svc.RecordAttempt(ctx, RecordAttemptOptions{
		BookID:      4,
		SourceID:    1,
		Success:     true,
		AttemptedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	count, err := svc.RetryEligibleCount(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}