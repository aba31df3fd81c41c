package candidates

import (
	"context"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListCandidatesOptions struct {
	BookID     *int
	SourceID   *int
	Field      *string
	ActiveOnly bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateCandidate inserts a new candidate. Candidates are immutable after
// creation; corrections come in as new candidates, not updates.
func (svc *Service) CreateCandidate(ctx context.Context, candidate *models.MetadataCandidate) error {
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(candidate).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListCandidates(ctx context.Context, opts ListCandidatesOptions) ([]*models.MetadataCandidate, error) {
	cands := []*models.MetadataCandidate{}

	q := svc.db.
		NewSelect().
		Model(&cands).
		Order("mc.created_at ASC", "mc.id ASC")

	if opts.BookID != nil {
		q = q.Where("mc.book_id = ?", *opts.BookID)
	}
	if opts.SourceID != nil {
		q = q.Where("mc.source_id = ?", *opts.SourceID)
	}
	if opts.Field != nil {
		q = q.Where("mc.field = ?", *opts.Field)
	}
	if opts.ActiveOnly {
		q = q.Where("mc.active = ?", true)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return cands, nil
}

// CountForBook returns the number of candidates for a book. The scanner
// diffs this before and after a source attempt to compute items added.
func (svc *Service) CountForBook(ctx context.Context, bookID int) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.MetadataCandidate)(nil)).
		Where("mc.book_id = ?", bookID).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// SetActive toggles a candidate's visibility to the resolver. This is the
// only mutation a candidate ever receives.
func (svc *Service) SetActive(ctx context.Context, candidateID int, active bool) error {
	res, err := svc.db.
		NewUpdate().
		Model((*models.MetadataCandidate)(nil)).
		Set("active = ?", active).
		Where("id = ?", candidateID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return errcodes.NotFound("Candidate")
	}
	return nil
}
