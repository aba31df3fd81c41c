package resolver

import (
	"context"
	"database/sql"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/candidates"
	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Service recomputes and persists a book's FinalMetadata from its active
// candidates.
type Service struct {
	db               *bun.DB
	candidateService *candidates.Service
	resolver         *Resolver
}

func NewService(db *bun.DB, resolver *Resolver) *Service {
	if resolver == nil {
		resolver = New(DefaultWeights, FirstCreated)
	}
	return &Service{
		db:               db,
		candidateService: candidates.NewService(db),
		resolver:         resolver,
	}
}

func (svc *Service) retrieveFinal(ctx context.Context, bookID int) (*models.FinalMetadata, error) {
	final := &models.FinalMetadata{}
	err := svc.db.
		NewSelect().
		Model(final).
		Where("fm.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	return final, nil
}

// ResolveFinalMetadata recomputes the final record for a book. Running it
// twice over an unchanged candidate set yields an identical record. When the
// record is reviewed, the chosen fields are left exactly as the curator set
// them; only the language code is canonicalized.
func (svc *Service) ResolveFinalMetadata(ctx context.Context, bookID int) (*models.FinalMetadata, error) {
	log := logger.FromContext(ctx)

	final, err := svc.retrieveFinal(ctx, bookID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if final != nil && final.Reviewed {
		normalized := CanonicalLanguage(final.Language)
		if normalized != final.Language {
			final.Language = normalized
			final.UpdatedAt = time.Now()
			_, err := svc.db.
				NewUpdate().
				Model(final).
				Column("language", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return nil, errors.WithStack(err)
			}
		}
		log.Info("final metadata is reviewed; skipping resolution", logger.Data{"book_id": bookID})
		return final, nil
	}

	cands, err := svc.candidateService.ListCandidates(ctx, candidates.ListCandidatesOptions{
		BookID:     &bookID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result := svc.resolver.Resolve(cands)

	now := time.Now()
	if final == nil {
		final = &models.FinalMetadata{
			BookID:    bookID,
			CreatedAt: now,
		}
	}
	final.UpdatedAt = now

	final.Title = result.Value(models.FieldTitle)
	final.TitleConfidence = result.confidence(models.FieldTitle)
	final.Author = result.Value(models.FieldAuthor)
	final.AuthorConfidence = result.confidence(models.FieldAuthor)
	final.Series = result.Value(models.FieldSeries)
	final.SeriesConfidence = result.confidence(models.FieldSeries)
	final.Cover = result.Value(models.FieldCover)
	final.CoverConfidence = result.confidence(models.FieldCover)

	final.Publisher = result.Value(models.FieldPublisher)
	final.Language = CanonicalLanguage(result.Value(models.FieldLanguage))
	final.Identifier = result.Value(models.FieldIdentifier)
	final.Year = result.Value(models.FieldYear)
	final.Description = result.Value(models.FieldDescription)

	final.OverallConfidence = result.OverallConfidence
	final.CompletenessScore = result.CompletenessScore

	if final.ID == 0 {
		_, err = svc.db.
			NewInsert().
			Model(final).
			Returning("*").
			Exec(ctx)
	} else {
		_, err = svc.db.
			NewUpdate().
			Model(final).
			WherePK().
			Exec(ctx)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return final, nil
}

// SetReviewed toggles the manual-override lock on a book's final record.
func (svc *Service) SetReviewed(ctx context.Context, bookID int, reviewed bool) (*models.FinalMetadata, error) {
	final, err := svc.retrieveFinal(ctx, bookID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if final == nil {
		// Resolve first so there is a record to lock.
		final, err = svc.ResolveFinalMetadata(ctx, bookID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	final.Reviewed = reviewed
	final.UpdatedAt = time.Now()

	_, err = svc.db.
		NewUpdate().
		Model(final).
		Column("reviewed", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return final, nil
}
