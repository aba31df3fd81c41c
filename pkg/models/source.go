package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SourceKindExtractor = "extractor"
	SourceKindAPI       = "api"
)

// Source is an origin of metadata: a local extractor or an external API.
// TrustLevel is a static weight expressing the inherent reliability of the
// origin; it is independent of any single candidate's confidence and only
// changes by administrative action.
type Source struct {
	bun.BaseModel `bun:"table:sources,alias:src"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Name       string    `bun:",nullzero" json:"name"`
	Kind       string    `bun:",nullzero" json:"kind"`
	TrustLevel float64   `json:"trust_level"`
}
