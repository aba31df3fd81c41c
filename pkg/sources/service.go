package sources

import (
	"context"
	"database/sql"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/errcodes"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveSourceOptions struct {
	ID   *int
	Name *string
}

type ListSourcesOptions struct {
	Kind *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateSource(ctx context.Context, source *models.Source) error {
	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = source.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(source).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveSource(ctx context.Context, opts RetrieveSourceOptions) (*models.Source, error) {
	source := &models.Source{}

	q := svc.db.
		NewSelect().
		Model(source)

	if opts.ID != nil {
		q = q.Where("src.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("src.name = ?", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Source")
		}
		return nil, errors.WithStack(err)
	}

	return source, nil
}

func (svc *Service) ListSources(ctx context.Context, opts ListSourcesOptions) ([]*models.Source, error) {
	srcs := []*models.Source{}

	q := svc.db.
		NewSelect().
		Model(&srcs).
		Order("src.id ASC")

	if opts.Kind != nil {
		q = q.Where("src.kind = ?", *opts.Kind)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return srcs, nil
}

// EnsureSource returns the source with the given name, creating it from the
// template if absent. Seeding at boot keeps configured sources and source
// rows in step without an admin surface.
func (svc *Service) EnsureSource(ctx context.Context, template *models.Source) (*models.Source, error) {
	existing, err := svc.RetrieveSource(ctx, RetrieveSourceOptions{Name: &template.Name})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errcodes.NotFound("Source")) {
		return nil, errors.WithStack(err)
	}

	if err := svc.CreateSource(ctx, template); err != nil {
		return nil, errors.WithStack(err)
	}
	return template, nil
}
