package candidates

import (
	"context"
	"database/sql"
	"testing"

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

func seedCandidate(t *testing.T, svc *Service, bookID, sourceID int, field, value string, active bool) *models.MetadataCandidate {
	t.Helper()

	candidate := &models.MetadataCandidate{
		BookID:     bookID,
		SourceID:   sourceID,
		Field:      field,
		Value:      value,
		Confidence: 0.5,
		Active:     active,
	}
	require.NoError(t, svc.CreateCandidate(context.Background(), candidate))
	return candidate
}

func TestListCandidatesFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	seedCandidate(t, svc, 1, 1, models.FieldTitle, "A", true)
	seedCandidate(t, svc, 1, 2, models.FieldTitle, "B", false)
	seedCandidate(t, svc, 1, 2, models.FieldAuthor, "C", true)
	seedCandidate(t, svc, 2, 1, models.FieldTitle, "D", true)

	all, err := svc.ListCandidates(ctx, ListCandidatesOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byBook, err := svc.ListCandidates(ctx, ListCandidatesOptions{BookID: ptr(1)})
	require.NoError(t, err)
	assert.Len(t, byBook, 3)

	active, err := svc.ListCandidates(ctx, ListCandidatesOptions{BookID: ptr(1), ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	bySource, err := svc.ListCandidates(ctx, ListCandidatesOptions{SourceID: ptr(2)})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)

	field := models.FieldTitle
	byField, err := svc.ListCandidates(ctx, ListCandidatesOptions{BookID: ptr(1), Field: &field})
	require.NoError(t, err)
	require.Len(t, byField, 2)
	// Creation order is preserved.
	assert.Equal(t, "A", byField[0].Value)
	assert.Equal(t, "B", byField[1].Value)
}

func TestCountForBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	count, err := svc.CountForBook(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	seedCandidate(t, svc, 1, 1, models.FieldTitle, "A", true)
	seedCandidate(t, svc, 1, 1, models.FieldAuthor, "B", false)
	seedCandidate(t, svc, 2, 1, models.FieldTitle, "C", true)

	count, err = svc.CountForBook(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSetActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	candidate := seedCandidate(t, svc, 1, 1, models.FieldTitle, "A", true)

	require.NoError(t, svc.SetActive(ctx, candidate.ID, false))

	listed, err := svc.ListCandidates(ctx, ListCandidatesOptions{BookID: ptr(1)})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Active)

	// Value and confidence are untouched; active is the only mutable column.
	assert.Equal(t, "A", listed[0].Value)
	assert.Equal(t, 0.5, listed[0].Confidence)

	err = svc.SetActive(ctx, 999, true)
	assert.ErrorIs(t, err, errcodes.NotFound("Candidate"))
}