package scansessions

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/migrations"
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

func TestCreateOrResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	session, err := svc.CreateOrResume(ctx, "", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, 10, session.TotalBooks)
	assert.True(t, session.IsActive)

	// Reusing the id resumes the same row instead of creating a new one.
	session.ProcessedBooks = 4
	session.CountCall("openlibrary")
	session.EnqueueMissingSource(1, 2)
	err = svc.UpdateSession(ctx, session, UpdateSessionOptions{})
	require.NoError(t, err)

	resumed, err := svc.CreateOrResume(ctx, session.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resumed.ID)
	assert.Equal(t, 4, resumed.ProcessedBooks)
	assert.Equal(t, 1, resumed.CallsMadeParsed["openlibrary"])
	require.Len(t, resumed.ResumeQueueParsed, 1)

	// A larger library grows the total; a smaller one never shrinks it.
	grown, err := svc.CreateOrResume(ctx, session.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, grown.TotalBooks)

	same, err := svc.CreateOrResume(ctx, session.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 15, same.TotalBooks)

	sessions, err := svc.ListSessions(ctx, ListSessionsOptions{})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRetrieveSessionNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.RetrieveSession(ctx, "missing")
	assert.ErrorIs(t, err, errcodes.NotFound("ScanSession"))
}

func TestCompleteResumable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	session, err := svc.CreateOrResume(ctx, "", 2)
	require.NoError(t, err)

	session.ProcessedBooks = 2
	session.EnqueueMissingSource(1, 7)
	require.NoError(t, svc.Complete(ctx, session))

	stored, err := svc.RetrieveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.True(t, stored.CanResume)
	require.NotNil(t, stored.CompletedAt)
	require.Len(t, stored.ResumeQueueParsed, 1)
}

func TestCompleteDrained(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	session, err := svc.CreateOrResume(ctx, "", 1)
	require.NoError(t, err)

	session.EnqueueMissingSource(1, 7)
	session.DequeueSource(1, 7)
	require.NoError(t, svc.Complete(ctx, session))

	stored, err := svc.RetrieveSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.CanResume)
}

func TestListSessionsFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	active, err := svc.CreateOrResume(ctx, "", 1)
	require.NoError(t, err)

	done, err := svc.CreateOrResume(ctx, "", 1)
	require.NoError(t, err)
	done.EnqueueMissingSource(1, 1)
	require.NoError(t, svc.Complete(ctx, done))

	activeOnly, err := svc.ListSessions(ctx, ListSessionsOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID, activeOnly[0].ID)

	resumable, err := svc.ListSessions(ctx, ListSessionsOptions{ResumableOnly: true})
	require.NoError(t, err)
	require.Len(t, resumable, 1)
	assert.Equal(t, done.ID, resumable[0].ID)

	limit := 1
	limited, err := svc.ListSessions(ctx, ListSessionsOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}