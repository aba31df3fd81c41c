package scanner

import (
	"context"

	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/scansessions"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ResumeResult summarizes a resume pass.
type ResumeResult struct {
	SessionsProcessed int `json:"sessions_processed"`
	BooksResumed      int `json:"books_resumed"`
	BooksCompleted    int `json:"books_completed"`
}

// ResumeInterruptedScans re-checks which sources are available now and works
// through the resume queues of resumable sessions. Passing a session id
// restricts the pass to that session; nil means every resumable session. A
// session whose queue drains is marked no longer resumable.
func (s *Scanner) ResumeInterruptedScans(ctx context.Context, sessionID *string) (*ResumeResult, error) {
	log := logger.FromContext(ctx)
	result := &ResumeResult{}

	var sessionList []*models.ScanSession
	if sessionID != nil {
		session, err := s.sessionService.RetrieveSession(ctx, *sessionID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		sessionList = []*models.ScanSession{session}
	} else {
		var err error
		sessionList, err = s.sessionService.ListSessions(ctx, scansessions.ListSessionsOptions{
			ResumableOnly: true,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	available := s.availableSourceIDs(ctx)

	for _, session := range sessionList {
		if len(session.ResumeQueueParsed) == 0 {
			// A drained queue means there is nothing left to resume; clear a
			// stale flag so the session stops being listed.
			if session.CanResume {
				session.CanResume = false
				err := s.sessionService.UpdateSession(ctx, session, scansessions.UpdateSessionOptions{
					Columns: []string{"can_resume"},
				})
				if err != nil {
					return nil, errors.WithStack(err)
				}
			}
			continue
		}
		result.SessionsProcessed++
		log := log.Data(logger.Data{"session_id": session.ID})
		log.Info("resuming session", logger.Data{"queued_books": len(session.ResumeQueueParsed)})

		// The queue is mutated during scanning, so walk a copy.
		entries := make([]models.ResumeEntry, len(session.ResumeQueueParsed))
		copy(entries, session.ResumeQueueParsed)

		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return result, errors.WithStack(ctx.Err())
			default:
			}

			retryable := intersect(entry.MissingSources, available)
			if len(retryable) == 0 {
				continue
			}

			book, err := s.bookService.RetrieveBook(ctx, books.RetrieveBookOptions{ID: &entry.BookID})
			if err != nil {
				log.Err(err).Error("retrieve book error", logger.Data{"book_id": entry.BookID})
				continue
			}

			result.BooksResumed++
			if _, err := s.ScanBook(ctx, session, book, ScanBookOptions{OnlySources: retryable}); err != nil {
				log.Err(err).Error("resume scan book error", logger.Data{"book_id": entry.BookID})
				continue
			}
			if session.QueueEntryFor(entry.BookID) == nil {
				result.BooksCompleted++
			}
		}

		session.CanResume = len(session.ResumeQueueParsed) > 0
		err := s.sessionService.UpdateSession(ctx, session, scansessions.UpdateSessionOptions{
			Columns: []string{"can_resume", "resume_queue", "processed_books", "books_with_external_data", "calls_made", "failures", "rate_limits_hit"},
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return result, nil
}

// availableSourceIDs returns the ids of sources whose breaker is closed and
// whose limits are not currently exhausted.
func (s *Scanner) availableSourceIDs(ctx context.Context) []int {
	ids := []int{}
	for _, binding := range s.bindings {
		available, err := binding.Client.Available(ctx)
		if err == nil && available {
			ids = append(ids, binding.Source.ID)
		}
	}
	return ids
}

func intersect(a, b []int) []int {
	out := []int{}
	for _, v := range a {
		if sourceInList(v, b) {
			out = append(out, v)
		}
	}
	return out
}
