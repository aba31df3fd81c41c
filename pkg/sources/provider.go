package sources

import (
	"context"

	"github.com/mokurokubooks/mokuroku/pkg/models"
)

// Provider fetches metadata candidates for one book from one external source.
// Implementations own the response parsing for their source; the rate and
// failure discipline lives in the sourceclient they are built on. A lookup
// that finds nothing returns an empty slice, not an error.
type Provider interface {
	// Name matches the Source row this provider answers for.
	Name() string

	// Lookup returns candidates for the book. SourceID and BookID are filled
	// in by the caller; providers only set field, value, and confidence.
	Lookup(ctx context.Context, book *models.Book) ([]*models.MetadataCandidate, error)
}
