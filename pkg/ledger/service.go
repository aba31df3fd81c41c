package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// RecordAttemptOptions describes one finished attempt for a (book, source)
// pair. RateLimited distinguishes a limit outcome from a plain failure.
type RecordAttemptOptions struct {
	BookID       int
	SourceID     int
	Success      bool
	RateLimited  bool
	ItemsFound   int
	Confidence   *float64
	ErrorMessage *string
	AttemptedAt  time.Time
}

type RetrieveRecordOptions struct {
	BookID   int
	SourceID int
}

type ListRecordsOptions struct {
	BookID   *int
	SourceID *int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// RecordAttempt upserts the ledger entry for the pair. The whole update is a
// single ON CONFLICT statement so that two racing attempts for the same pair
// serialize in the database and neither update is lost.
func (svc *Service) RecordAttempt(ctx context.Context, opts RecordAttemptOptions) (*models.SourceAccessRecord, error) {
	now := opts.AttemptedAt
	if now.IsZero() {
		now = time.Now()
	}

	status := models.AccessStatusFailed
	failures := 1
	if opts.Success {
		status = models.AccessStatusSuccess
		failures = 0
	} else if opts.RateLimited {
		status = models.AccessStatusRateLimited
	}

	record := &models.SourceAccessRecord{
		BookID:              opts.BookID,
		SourceID:            opts.SourceID,
		Status:              status,
		ConsecutiveFailures: failures,
		ItemsFound:          opts.ItemsFound,
		LastConfidence:      opts.Confidence,
		LastError:           opts.ErrorMessage,
		LastAttemptAt:       &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	q := svc.db.
		NewInsert().
		Model(record).
		On("CONFLICT (book_id, source_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("items_found = EXCLUDED.items_found").
		Set("last_confidence = EXCLUDED.last_confidence").
		Set("last_error = EXCLUDED.last_error").
		Set("last_attempt_at = EXCLUDED.last_attempt_at").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*")

	if opts.Success {
		q = q.Set("consecutive_failures = 0")
	} else {
		q = q.Set("consecutive_failures = consecutive_failures + 1")
	}

	_, err := q.Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return record, nil
}

func (svc *Service) RetrieveRecord(ctx context.Context, opts RetrieveRecordOptions) (*models.SourceAccessRecord, error) {
	record := &models.SourceAccessRecord{}

	err := svc.db.
		NewSelect().
		Model(record).
		Where("sar.book_id = ?", opts.BookID).
		Where("sar.source_id = ?", opts.SourceID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("SourceAccessRecord")
		}
		return nil, errors.WithStack(err)
	}

	return record, nil
}

func (svc *Service) ListRecords(ctx context.Context, opts ListRecordsOptions) ([]*models.SourceAccessRecord, error) {
	records := []*models.SourceAccessRecord{}

	q := svc.db.
		NewSelect().
		Model(&records).
		Order("sar.book_id ASC", "sar.source_id ASC")

	if opts.BookID != nil {
		q = q.Where("sar.book_id = ?", *opts.BookID)
	}
	if opts.SourceID != nil {
		q = q.Where("sar.source_id = ?", *opts.SourceID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return records, nil
}

// RetryEligibleCount counts (book, source) pairs that have failed at least
// once, are still healthy, and whose backoff window has elapsed. Feeds the
// scanning recommendations surface.
func (svc *Service) RetryEligibleCount(ctx context.Context, now time.Time) (int, error) {
	records := []*models.SourceAccessRecord{}

	err := svc.db.
		NewSelect().
		Model(&records).
		Where("sar.status != ?", models.AccessStatusSuccess).
		Where("sar.consecutive_failures > 0").
		Where("sar.consecutive_failures < ?", models.HealthyFailureThreshold).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	count := 0
	for _, r := range records {
		if r.CanRetryNow(now) {
			count++
		}
	}
	return count, nil
}
