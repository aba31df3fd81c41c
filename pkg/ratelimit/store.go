package ratelimit

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Store holds the shared request counters. Concurrent scan jobs must observe
// the same counts, so Increment has to be atomic: two jobs incrementing the
// same bucket may never both read the pre-increment value.
type Store interface {
	// Increment adds one to the counter for key and returns the new count.
	// The counter expires ttl after its first increment.
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)

	// Get returns the current count for key, or zero if absent or expired.
	Get(ctx context.Context, key string) (int, error)
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is a process-local Store. It is sufficient when all scan jobs
// run inside one process, which is how the worker schedules them.
type MemoryStore struct {
	mu       sync.Mutex
	clock    Clock
	counters map[string]*memoryCounter
}

func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		counters: map[string]*memoryCounter{},
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || s.clock.Now().After(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

type counterRow struct {
	bun.BaseModel `bun:"table:rate_limit_counters,alias:rlc"`

	Key       string    `bun:",pk"`
	Count     int       `bun:",nullzero"`
	ExpiresAt time.Time `bun:",nullzero"`
}

// DBStore is a Store backed by the rate_limit_counters table, for deployments
// where more than one process calls the same sources. The increment is a
// single upsert so concurrent writers serialize in the database.
type DBStore struct {
	db    *bun.DB
	clock Clock
}

func NewDBStore(db *bun.DB, clock Clock) *DBStore {
	return &DBStore{db: db, clock: clock}
}

func (s *DBStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	now := s.clock.Now()
	row := &counterRow{
		Key:       key,
		Count:     1,
		ExpiresAt: now.Add(ttl),
	}

	// An expired row is treated as fresh: the count restarts at one and the
	// expiry moves forward a full ttl.
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("count = CASE WHEN rlc.expires_at <= ? THEN 1 ELSE rlc.count + 1 END", now).
		Set("expires_at = CASE WHEN rlc.expires_at <= ? THEN ? ELSE rlc.expires_at END", now, now.Add(ttl)).
		Returning("count").
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return row.Count, nil
}

func (s *DBStore) Get(ctx context.Context, key string) (int, error) {
	row := &counterRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("rlc.key = ?", key).
		Where("rlc.expires_at > ?", s.clock.Now()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.WithStack(err)
	}
	return row.Count, nil
}
