package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Metadata field names. The first four are the primary fields that feed the
// overall confidence score; the full list is the completeness checklist.
const (
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldSeries      = "series"
	FieldCover       = "cover"
	FieldPublisher   = "publisher"
	FieldLanguage    = "language"
	FieldIdentifier  = "identifier"
	FieldYear        = "year"
	FieldDescription = "description"
)

// PrimaryFields feed FinalMetadata.OverallConfidence.
var PrimaryFields = []string{FieldTitle, FieldAuthor, FieldSeries, FieldCover}

// CompletenessFields is the fixed checklist behind CompletenessScore.
var CompletenessFields = []string{
	FieldTitle,
	FieldAuthor,
	FieldCover,
	FieldPublisher,
	FieldLanguage,
	FieldIdentifier,
	FieldYear,
	FieldDescription,
}

// MetadataCandidate is one proposed value for one field of one book, from one
// source. Candidates are immutable after creation except for the Active flag,
// which hides a candidate from resolution without deleting history.
type MetadataCandidate struct {
	bun.BaseModel `bun:"table:metadata_candidates,alias:mc"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	BookID     int       `bun:",nullzero" json:"book_id"`
	SourceID   int       `bun:",nullzero" json:"source_id"`
	Source     *Source   `bun:"rel:belongs-to" json:"source,omitempty"`
	Field      string    `bun:",nullzero" json:"field"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Active     bool      `json:"active"`
}
