package books

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

func TestCreateAndRetrieveBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	book := &models.Book{
		Filepath: "/library/solaris.epub",
		Title:    "Solaris",
		ISBN:     ptr("9780156027328"),
	}
	require.NoError(t, svc.CreateBook(ctx, book))
	require.NotZero(t, book.ID)

	byID, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Solaris", byID.Title)
	require.NotNil(t, byID.ISBN)
	assert.Equal(t, "9780156027328", *byID.ISBN)
	assert.Empty(t, byID.CompletedSourcesParsed)

	byPath, err := svc.RetrieveBook(ctx, RetrieveBookOptions{Filepath: ptr("/library/solaris.epub")})
	require.NoError(t, err)
	assert.Equal(t, book.ID, byPath.ID)

	_, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: ptr(999)})
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestUpdateBookCompletedSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	book := &models.Book{Filepath: "/library/a.epub", Title: "A"}
	require.NoError(t, svc.CreateBook(ctx, book))

	book.MarkSourceCompleted(3)
	book.MarkSourceCompleted(7)
	require.NoError(t, svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"completed_sources"}}))

	stored, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, stored.CompletedSourcesParsed)
	assert.True(t, stored.SourceCompleted(3))
	assert.False(t, stored.SourceCompleted(4))
}

func TestListBooks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	for _, path := range []string{"/library/a.epub", "/library/b.epub", "/library/c.epub"} {
		require.NoError(t, svc.CreateBook(ctx, &models.Book{Filepath: path, Title: path}))
	}

	all, err := svc.ListBooks(ctx, ListBooksOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/library/a.epub", all[0].Filepath)

	paged, err := svc.ListBooks(ctx, ListBooksOptions{Limit: ptr(1), Offset: ptr(1)})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "/library/b.epub", paged[0].Filepath)
}