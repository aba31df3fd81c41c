package worker

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/config"
	"github.com/mokurokubooks/mokuroku/pkg/jobs"
	"github.com/mokurokubooks/mokuroku/pkg/migrations"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
	"github.com/mokurokubooks/mokuroku/pkg/resolver"
	"github.com/mokurokubooks/mokuroku/pkg/scanner"
	"github.com/mokurokubooks/mokuroku/pkg/scansessions"
	"github.com/mokurokubooks/mokuroku/pkg/sourceclient"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider answers lookups from a scripted queue; once the script is
// exhausted the last step repeats. When waitForCancel is set, Lookup instead
// blocks until the context is cancelled, signalling started on first entry.
type fakeProvider struct {
	name          string
	steps         []lookupStep
	calls         int
	waitForCancel bool
	started       chan struct{}
	startOnce     sync.Once
}

type lookupStep struct {
	cands []*models.MetadataCandidate
	err   error
}

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) Lookup(ctx context.Context, book *models.Book) ([]*models.MetadataCandidate, error) {
	if p.waitForCancel {
		p.startOnce.Do(func() {
			close(p.started)
		})
		<-ctx.Done()
		return nil, &sourceclient.TransportError{Source: p.name, Err: ctx.Err()}
	}

	step := p.steps[len(p.steps)-1]
	if p.calls < len(p.steps) {
		step = p.steps[p.calls]
	}
	p.calls++
	if step.err != nil {
		return nil, step.err
	}
	out := make([]*models.MetadataCandidate, len(step.cands))
	for i, c := range step.cands {
		clone := *c
		out[i] = &clone
	}
	return out, nil
}

// testContext holds the worker under test plus the services needed to seed
// and inspect the database.
type testContext struct {
	t                *testing.T
	ctx              context.Context
	db               *bun.DB
	clock            *fakeClock
	worker           *Worker
	bookService      *books.Service
	jobService       *jobs.Service
	sessionService   *scansessions.Service
	candidateService *candidates.Service
	sources          map[string]*models.Source
}

func newTestContext(t *testing.T, providers ...*fakeProvider) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// Worker goroutines share the test database, so a single connection is
	// required to keep every query on the same in-memory store.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	clock := newFakeClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	store := ratelimit.NewMemoryStore(clock)
	tracker := ratelimit.NewTracker(store, clock)
	breaker := ratelimit.NewBreaker(clock, map[string]ratelimit.BreakerConfig{})

	tc := &testContext{
		t:                t,
		ctx:              logger.New().WithContext(context.Background()),
		db:               db,
		clock:            clock,
		bookService:      books.NewService(db),
		jobService:       jobs.NewService(db),
		sessionService:   scansessions.NewService(db),
		candidateService: candidates.NewService(db),
		sources:          map[string]*models.Source{},
	}

	bindings := []*scanner.SourceBinding{}
	for _, provider := range providers {
		now := clock.Now()
		source := &models.Source{
			CreatedAt:  now,
			UpdatedAt:  now,
			Name:       provider.name,
			Kind:       models.SourceKindAPI,
			TrustLevel: 0.8,
		}
		_, err := db.NewInsert().Model(source).Returning("*").Exec(context.Background())
		if err != nil {
			t.Fatalf("failed to insert source: %v", err)
		}

		client := sourceclient.New(sourceclient.Config{
			Source: provider.name,
			Limits: ratelimit.Limits{PerMinute: 100},
		}, tracker, breaker, nil, clock)

		bindings = append(bindings, &scanner.SourceBinding{
			Source:   source,
			Provider: provider,
			Client:   client,
		})
		tc.sources[provider.name] = source
	}

	scn := scanner.New(db, bindings, resolver.NewService(db, nil), clock)
	cfg := &config.Config{
		WorkerProcesses: 1,
	}
	tc.worker = New(cfg, db, scn)

	t.Cleanup(func() {
		db.Close()
	})

	return tc
}

// createBook inserts a book with the given filepath.
func (tc *testContext) createBook(filepath string) *models.Book {
	tc.t.Helper()

	book := &models.Book{Filepath: filepath, Title: "seed"}
	err := tc.bookService.CreateBook(tc.ctx, book)
	if err != nil {
		tc.t.Fatalf("failed to create book: %v", err)
	}
	return book
}

// listSessions returns all scan sessions in the database.
func (tc *testContext) listSessions() []*models.ScanSession {
	tc.t.Helper()

	sessions, err := tc.sessionService.ListSessions(tc.ctx, scansessions.ListSessionsOptions{})
	if err != nil {
		tc.t.Fatalf("failed to list sessions: %v", err)
	}
	return sessions
}

// listCandidates returns all candidates stored for the given book.
func (tc *testContext) listCandidates(bookID int) []*models.MetadataCandidate {
	tc.t.Helper()

	cands, err := tc.candidateService.ListCandidates(tc.ctx, candidates.ListCandidatesOptions{BookID: &bookID})
	if err != nil {
		tc.t.Fatalf("failed to list candidates: %v", err)
	}
	return cands
}

func titleCandidates(value string, confidence float64) []*models.MetadataCandidate {
	return []*models.MetadataCandidate{
		{Field: models.FieldTitle, Value: value, Confidence: confidence},
	}
}
