package scanner

import (
	"context"

	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/ledger"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
	"github.com/mokurokubooks/mokuroku/pkg/resolver"
	"github.com/mokurokubooks/mokuroku/pkg/scansessions"
	"github.com/mokurokubooks/mokuroku/pkg/sourceclient"
	"github.com/mokurokubooks/mokuroku/pkg/sources"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// SourceBinding ties one Source row to the provider that queries it and the
// client that rate-limits it.
type SourceBinding struct {
	Source   *models.Source
	Provider sources.Provider
	Client   *sourceclient.Client
}

// Scanner decides, per book, which sources to attempt on this pass, invokes
// them through their rate-limited clients, and keeps the ledger and session
// bookkeeping straight. A failure on one (book, source) pair never aborts the
// other sources for that book or the books after it.
type Scanner struct {
	bindings []*SourceBinding
	clock    ratelimit.Clock

	bookService      *books.Service
	candidateService *candidates.Service
	ledgerService    *ledger.Service
	sessionService   *scansessions.Service
	resolverService  *resolver.Service
}

func New(db *bun.DB, bindings []*SourceBinding, resolverService *resolver.Service, clock ratelimit.Clock) *Scanner {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	return &Scanner{
		bindings: bindings,
		clock:    clock,

		bookService:      books.NewService(db),
		candidateService: candidates.NewService(db),
		ledgerService:    ledger.NewService(db),
		sessionService:   scansessions.NewService(db),
		resolverService:  resolverService,
	}
}

// ScanBookOptions narrow a single-book pass. ForceAll bypasses every
// exclusion check; OnlySources restricts the pass to the listed source ids
// (used when resuming a session's queue).
type ScanBookOptions struct {
	ForceAll    bool
	OnlySources []int
}

// ScanBookResult summarizes one pass over one book.
type ScanBookResult struct {
	Attempted   int   `json:"attempted"`
	Succeeded   int   `json:"succeeded"`
	Failed      int   `json:"failed"`
	ItemsAdded  int   `json:"items_added"`
	CoversAdded int   `json:"covers_added"`
	NeedsRetry  []int `json:"needs_retry"`
}

func sourceInList(id int, list []int) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// ScanBook attempts the eligible sources for one book and updates the ledger,
// the session counters, and the resume queue. Session mutations are kept in
// memory and persisted once at the end of the pass.
func (s *Scanner) ScanBook(ctx context.Context, session *models.ScanSession, book *models.Book, opts ScanBookOptions) (*ScanBookResult, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"book_id": book.ID, "session_id": session.ID})
	result := &ScanBookResult{NeedsRetry: []int{}}
	gainedData := false

	for _, binding := range s.bindings {
		if len(opts.OnlySources) > 0 && !sourceInList(binding.Source.ID, opts.OnlySources) {
			continue
		}
		if !opts.ForceAll {
			skip, reason, err := s.shouldSkip(ctx, binding, book)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			if skip {
				log.Info("skipping source", logger.Data{"source": binding.Source.Name, "reason": reason})
				continue
			}
		}

		s.attemptSource(ctx, session, book, binding, result)
		if result.ItemsAdded > 0 {
			gainedData = true
		}
	}

	// A resume pass revisits books the original pass already counted, so the
	// per-book aggregates only move on a full pass.
	if len(opts.OnlySources) == 0 {
		session.ProcessedBooks++
		if gainedData {
			session.BooksWithExternalData++
		}
	}

	err := s.sessionService.UpdateSession(ctx, session, scansessions.UpdateSessionOptions{
		Columns: []string{
			"processed_books", "books_with_external_data",
			"calls_made", "failures", "rate_limits_hit", "resume_queue",
		},
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if result.ItemsAdded > 0 {
		if _, err := s.resolverService.ResolveFinalMetadata(ctx, book.ID); err != nil {
			// Resolution failures are not fatal to the scan itself.
			log.Err(err).Error("resolve final metadata error")
		}
	}

	return result, nil
}

// shouldSkip applies the exclusion checks in priority order: source globally
// unavailable, source already complete for this book, pair unhealthy, pair
// still inside its retry backoff.
func (s *Scanner) shouldSkip(ctx context.Context, binding *SourceBinding, book *models.Book) (bool, string, error) {
	available, err := binding.Client.Available(ctx)
	if err != nil {
		return false, "", errors.WithStack(err)
	}
	if !available {
		return true, "source unavailable", nil
	}
	if book.SourceCompleted(binding.Source.ID) {
		return true, "source complete for book", nil
	}

	record, err := s.ledgerService.RetrieveRecord(ctx, ledger.RetrieveRecordOptions{
		BookID:   book.ID,
		SourceID: binding.Source.ID,
	})
	if err != nil {
		// No history yet means no reason to skip.
		if errors.Is(err, errcodes.NotFound("SourceAccessRecord")) {
			return false, "", nil
		}
		return false, "", errors.WithStack(err)
	}
	if !record.IsHealthy() {
		return true, "pair unhealthy", nil
	}
	if !record.CanRetryNow(s.clock.Now()) {
		return true, "retry backoff", nil
	}
	return false, "", nil
}

// attemptSource performs one attempt for one (book, source) pair, isolating
// any failure to that pair.
func (s *Scanner) attemptSource(ctx context.Context, session *models.ScanSession, book *models.Book, binding *SourceBinding, result *ScanBookResult) {
	log := logger.FromContext(ctx).Data(logger.Data{
		"book_id": book.ID,
		"source":  binding.Source.Name,
	})
	name := binding.Source.Name
	sourceID := binding.Source.ID

	before, err := s.candidateService.CountForBook(ctx, book.ID)
	if err != nil {
		log.Err(err).Error("candidate count error")
		return
	}

	result.Attempted++
	session.CountCall(name)

	cands, err := binding.Provider.Lookup(ctx, book)
	if err != nil {
		s.recordFailure(ctx, session, book, binding, err, result)
		return
	}

	coversBefore := result.CoversAdded
	var confidenceSum float64
	for _, candidate := range cands {
		candidate.BookID = book.ID
		candidate.SourceID = sourceID
		candidate.Active = true
		confidenceSum += candidate.Confidence
		if err := s.candidateService.CreateCandidate(ctx, candidate); err != nil {
			log.Err(err).Error("create candidate error")
			continue
		}
		if candidate.Field == models.FieldCover {
			result.CoversAdded++
		}
	}

	after, err := s.candidateService.CountForBook(ctx, book.ID)
	if err != nil {
		log.Err(err).Error("candidate count error")
		after = before
	}
	added := after - before
	result.ItemsAdded += added

	var avgConfidence *float64
	if len(cands) > 0 {
		avg := confidenceSum / float64(len(cands))
		avgConfidence = &avg
	}

	_, err = s.ledgerService.RecordAttempt(ctx, ledger.RecordAttemptOptions{
		BookID:      book.ID,
		SourceID:    sourceID,
		Success:     true,
		ItemsFound:  len(cands),
		Confidence:  avgConfidence,
		AttemptedAt: s.clock.Now(),
	})
	if err != nil {
		log.Err(err).Error("record attempt error")
	}

	// Success clears any pending retry and marks the source done for this
	// book. The resume queue must never hold a pair whose ledger entry is a
	// success.
	session.DequeueSource(book.ID, sourceID)
	book.MarkSourceCompleted(sourceID)
	err = s.bookService.UpdateBook(ctx, book, books.UpdateBookOptions{
		Columns: []string{"completed_sources"},
	})
	if err != nil {
		log.Err(err).Error("update book error")
	}

	result.Succeeded++
	log.Info("source attempt succeeded", logger.Data{
		"items_added":  added,
		"covers_added": result.CoversAdded - coversBefore,
	})
}

// recordFailure applies the bookkeeping for a failed attempt and, when the
// failure is retry-eligible, queues the pair for a later pass.
func (s *Scanner) recordFailure(ctx context.Context, session *models.ScanSession, book *models.Book, binding *SourceBinding, attemptErr error, result *ScanBookResult) {
	log := logger.FromContext(ctx).Data(logger.Data{
		"book_id": book.ID,
		"source":  binding.Source.Name,
	})
	name := binding.Source.Name
	sourceID := binding.Source.ID

	rateLimited := sourceclient.IsRateLimited(attemptErr)
	session.CountFailure(name)
	if rateLimited {
		session.CountRateLimitHit(name)
	}

	msg := attemptErr.Error()
	_, err := s.ledgerService.RecordAttempt(ctx, ledger.RecordAttemptOptions{
		BookID:       book.ID,
		SourceID:     sourceID,
		Success:      false,
		RateLimited:  rateLimited,
		ErrorMessage: &msg,
		AttemptedAt:  s.clock.Now(),
	})
	if err != nil {
		log.Err(err).Error("record attempt error")
	}

	if sourceclient.IsRetryEligible(attemptErr) {
		session.EnqueueMissingSource(book.ID, sourceID)
		result.NeedsRetry = append(result.NeedsRetry, sourceID)
	}

	result.Failed++
	log.Info("source attempt failed", logger.Data{
		"err":          msg,
		"rate_limited": rateLimited,
	})
}

// RunScan processes the given books sequentially under one session. It checks
// for cancellation between books; an interrupted run leaves the session and
// ledgers consistent, so a later run with the same session id resumes where
// this one stopped.
func (s *Scanner) RunScan(ctx context.Context, sessionID string, bookList []*models.Book, forceAll bool) (*models.ScanSession, error) {
	log := logger.FromContext(ctx)

	session, err := s.sessionService.CreateOrResume(ctx, sessionID, len(bookList))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log = log.Data(logger.Data{"session_id": session.ID})
	log.Info("starting acquisition scan", logger.Data{"total_books": len(bookList)})

	for _, book := range bookList {
		select {
		case <-ctx.Done():
			log.Info("scan cancelled; leaving session resumable")
			session.CanResume = len(session.ResumeQueueParsed) > 0
			// The scan context is already cancelled, so persist the session
			// state on a fresh one. The queue and counters ride along because
			// the interrupted book's own update may have failed on the
			// cancelled context.
			if err := s.sessionService.UpdateSession(context.Background(), session, scansessions.UpdateSessionOptions{
				Columns: []string{
					"can_resume", "resume_queue",
					"processed_books", "books_with_external_data",
					"calls_made", "failures", "rate_limits_hit",
				},
			}); err != nil {
				log.Err(err).Error("update session error")
			}
			return session, errors.WithStack(ctx.Err())
		default:
		}

		if _, err := s.ScanBook(ctx, session, book, ScanBookOptions{ForceAll: forceAll}); err != nil {
			// Book-level bookkeeping errors are logged and the scan moves on.
			log.Err(err).Error("scan book error", logger.Data{"book_id": book.ID})
		}
	}

	if err := s.sessionService.Complete(ctx, session); err != nil {
		return nil, errors.WithStack(err)
	}
	log.Info("finished acquisition scan", logger.Data{
		"processed":      session.ProcessedBooks,
		"external_data":  session.BooksWithExternalData,
		"resume_entries": len(session.ResumeQueueParsed),
	})

	return session, nil
}
