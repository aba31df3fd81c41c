package scansessions

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListSessionsOptions struct {
	ResumableOnly bool
	ActiveOnly    bool
	Limit         *int
}

type UpdateSessionOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateOrResume returns the session with the given id, creating it when it
// does not exist yet. Reusing an id is how an interrupted run picks its
// bookkeeping back up, so this must be idempotent. An empty id gets a fresh
// uuid.
func (svc *Service) CreateOrResume(ctx context.Context, id string, totalBooks int) (*models.ScanSession, error) {
	if id != "" {
		existing, err := svc.RetrieveSession(ctx, id)
		if err == nil {
			existing.IsActive = true
			if totalBooks > existing.TotalBooks {
				existing.TotalBooks = totalBooks
			}
			err = svc.UpdateSession(ctx, existing, UpdateSessionOptions{
				Columns: []string{"is_active", "total_books"},
			})
			if err != nil {
				return nil, errors.WithStack(err)
			}
			return existing, nil
		}
		if !errors.Is(err, errcodes.NotFound("ScanSession")) {
			return nil, errors.WithStack(err)
		}
	}

	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	session := &models.ScanSession{
		ID:         id,
		CreatedAt:  now,
		UpdatedAt:  now,
		TotalBooks: totalBooks,
		IsActive:   true,
	}
	if err := session.MarshalPayloads(); err != nil {
		return nil, errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(session).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return session, nil
}

func (svc *Service) RetrieveSession(ctx context.Context, id string) (*models.ScanSession, error) {
	session := &models.ScanSession{}

	err := svc.db.
		NewSelect().
		Model(session).
		Where("ss.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("ScanSession")
		}
		return nil, errors.WithStack(err)
	}

	if err := session.UnmarshalPayloads(); err != nil {
		return nil, errors.WithStack(err)
	}

	return session, nil
}

func (svc *Service) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]*models.ScanSession, error) {
	sessions := []*models.ScanSession{}

	q := svc.db.
		NewSelect().
		Model(&sessions).
		Order("ss.created_at DESC")

	if opts.ResumableOnly {
		q = q.Where("ss.can_resume = ?", true)
	}
	if opts.ActiveOnly {
		q = q.Where("ss.is_active = ?", true)
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, session := range sessions {
		if err := session.UnmarshalPayloads(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return sessions, nil
}

// UpdateSession persists the given columns after re-marshaling the JSON
// payload columns from their parsed forms.
func (svc *Service) UpdateSession(ctx context.Context, session *models.ScanSession, opts UpdateSessionOptions) error {
	if err := session.MarshalPayloads(); err != nil {
		return errors.WithStack(err)
	}
	session.UpdatedAt = time.Now()

	q := svc.db.
		NewUpdate().
		Model(session).
		WherePK()

	if len(opts.Columns) > 0 {
		opts.Columns = append(opts.Columns, "updated_at")
		q = q.Column(opts.Columns...)
	}

	_, err := q.Exec(ctx)
	return errors.WithStack(err)
}

// Complete marks the session inactive. It stays resumable exactly when the
// resume queue is non-empty.
func (svc *Service) Complete(ctx context.Context, session *models.ScanSession) error {
	now := time.Now()
	session.IsActive = false
	session.CanResume = len(session.ResumeQueueParsed) > 0
	session.CompletedAt = &now

	return errors.WithStack(svc.UpdateSession(ctx, session, UpdateSessionOptions{
		Columns: []string{
			"is_active", "can_resume", "completed_at",
			"processed_books", "books_with_external_data",
			"calls_made", "failures", "rate_limits_hit", "resume_queue",
		},
	}))
}
