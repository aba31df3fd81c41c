package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID       *int
	Filepath *string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
}

type UpdateBookOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt

	if err := book.MarshalCompletedSources(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.Filepath != nil {
		q = q.Where("b.filepath = ?", *opts.Filepath)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	if err := book.UnmarshalCompletedSources(); err != nil {
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	bks := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&bks).
		Order("b.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, book := range bks {
		if err := book.UnmarshalCompletedSources(); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return bks, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if err := book.MarshalCompletedSources(); err != nil {
		return errors.WithStack(err)
	}
	book.UpdatedAt = time.Now()

	q := svc.db.
		NewUpdate().
		Model(book).
		WherePK()

	if len(opts.Columns) > 0 {
		opts.Columns = append(opts.Columns, "updated_at")
		q = q.Column(opts.Columns...)
	}

	_, err := q.Exec(ctx)
	return errors.WithStack(err)
}
