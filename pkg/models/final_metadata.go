package models

import (
	"time"

	"github.com/uptrace/bun"
)

// FinalMetadata is the resolved, single-value-per-field record for a book. It
// is derived by the resolver on every call and never hand-authored, except
// that Reviewed locks the chosen fields against automatic updates.
type FinalMetadata struct {
	bun.BaseModel `bun:"table:final_metadata,alias:fm"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	BookID    int       `bun:",nullzero" json:"book_id"`

	Title            string  `json:"title"`
	TitleConfidence  float64 `json:"title_confidence"`
	Author           string  `json:"author"`
	AuthorConfidence float64 `json:"author_confidence"`
	Series           string  `json:"series"`
	SeriesConfidence float64 `json:"series_confidence"`
	Cover            string  `json:"cover"`
	CoverConfidence  float64 `json:"cover_confidence"`

	Publisher   string `json:"publisher"`
	Language    string `json:"language"`
	Identifier  string `json:"identifier"`
	Year        string `json:"year"`
	Description string `json:"description"`

	OverallConfidence float64 `json:"overall_confidence"`
	CompletenessScore float64 `json:"completeness_score"`

	// Reviewed marks the record as curated by a human. While set, the
	// resolver must not overwrite any chosen field.
	Reviewed bool `json:"reviewed"`
}

// FieldValue returns the stored value for a checklist field name.
func (fm *FinalMetadata) FieldValue(field string) string {
	switch field {
	case FieldTitle:
		return fm.Title
	case FieldAuthor:
		return fm.Author
	case FieldSeries:
		return fm.Series
	case FieldCover:
		return fm.Cover
	case FieldPublisher:
		return fm.Publisher
	case FieldLanguage:
		return fm.Language
	case FieldIdentifier:
		return fm.Identifier
	case FieldYear:
		return fm.Year
	case FieldDescription:
		return fm.Description
	}
	return ""
}
