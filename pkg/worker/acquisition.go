package worker

import (
	"context"

	"github.com/mokurokubooks/mokuroku/pkg/books"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ProcessAcquisitionScanJob runs one acquisition pass over every book,
// tracked under a scan session. Reusing a session id in the job data resumes
// that session's bookkeeping instead of starting a new one.
func (w *Worker) ProcessAcquisitionScanJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing acquisition scan job")

	data, ok := job.DataParsed.(*models.JobAcquisitionScanData)
	if !ok {
		return errors.New("unexpected job data for acquisition scan")
	}

	bookList, err := w.bookService.ListBooks(ctx, books.ListBooksOptions{})
	if err != nil {
		return errors.WithStack(err)
	}
	log.Info("processing books", logger.Data{"count": len(bookList)})

	sessionID := ""
	if data.SessionID != nil {
		sessionID = *data.SessionID
	}

	session, err := w.scanner.RunScan(ctx, sessionID, bookList, data.ForceAll)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Info("finished acquisition scan job", logger.Data{
		"session_id":         session.ID,
		"processed_books":    session.ProcessedBooks,
		"books_with_data":    session.BooksWithExternalData,
		"resume_queue_size":  len(session.ResumeQueueParsed),
		"session_can_resume": session.CanResume,
	})
	return nil
}

// ProcessResumeScanJob retries the queued (book, source) pairs of resumable
// sessions against whichever sources are available now.
func (w *Worker) ProcessResumeScanJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing resume scan job")

	data, ok := job.DataParsed.(*models.JobResumeScanData)
	if !ok {
		return errors.New("unexpected job data for resume scan")
	}

	result, err := w.scanner.ResumeInterruptedScans(ctx, data.SessionID)
	if err != nil {
		return errors.WithStack(err)
	}

	log.Info("finished resume scan job", logger.Data{
		"sessions_processed": result.SessionsProcessed,
		"books_resumed":      result.BooksResumed,
		"books_completed":    result.BooksCompleted,
	})
	return nil
}
