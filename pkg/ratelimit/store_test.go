package ratelimit

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

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

func TestMemoryStoreIncrementAndExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	ctx := context.Background()

	count, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Past expiry the counter reads zero and restarts at one.
	clock.Advance(2 * time.Minute)
	count, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	t.Parallel()
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, "k", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, workers, count)
}

func TestDBStoreIncrementAndExpiry(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	store := NewDBStore(db, clock)
	ctx := context.Background()

	count, err := store.Increment(ctx, "openlibrary:minute:2026-03-14T10:30", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.Increment(ctx, "openlibrary:minute:2026-03-14T10:30", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.Get(ctx, "openlibrary:minute:2026-03-14T10:30")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// An expired row restarts at one with a fresh expiry.
	clock.Advance(2 * time.Minute)
	count, err = store.Get(ctx, "openlibrary:minute:2026-03-14T10:30")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.Increment(ctx, "openlibrary:minute:2026-03-14T10:30", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDBStoreMissingKey(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	store := NewDBStore(db, clock)

	count, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
