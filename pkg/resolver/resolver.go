package resolver

import (
	"github.com/mokurokubooks/mokuroku/pkg/models"
)

// TieBreak picks between two candidates with equal confidence, returning true
// when challenger should replace current.
type TieBreak func(current, challenger *models.MetadataCandidate) bool

// FirstCreated keeps the earliest-created candidate on ties. This mirrors the
// historical behavior; it is deterministic but not principled.
func FirstCreated(_, _ *models.MetadataCandidate) bool {
	return false
}

// ByTrustLevel breaks ties by the source's static trust weight, descending.
// Candidates must have Source loaded; missing sources count as zero trust.
func ByTrustLevel(current, challenger *models.MetadataCandidate) bool {
	return trustOf(challenger) > trustOf(current)
}

func trustOf(c *models.MetadataCandidate) float64 {
	if c.Source == nil {
		return 0
	}
	return c.Source.TrustLevel
}

// Weights distribute the overall confidence across the primary fields. They
// are configured once; they are never book-specific.
type Weights struct {
	Title  float64
	Author float64
	Series float64
	Cover  float64
}

// DefaultWeights favor title and author, which matter most for identifying a
// book.
var DefaultWeights = Weights{
	Title:  0.4,
	Author: 0.3,
	Series: 0.15,
	Cover:  0.15,
}

// FieldResult is the chosen value and confidence for one field.
type FieldResult struct {
	Value      string
	Confidence float64
}

// Result is the outcome of resolving one book's candidate set.
type Result struct {
	Fields            map[string]FieldResult
	OverallConfidence float64
	CompletenessScore float64
}

// Resolver turns a book's weighted candidates into one answer per field.
type Resolver struct {
	weights  Weights
	tieBreak TieBreak
}

func New(weights Weights, tieBreak TieBreak) *Resolver {
	if tieBreak == nil {
		tieBreak = FirstCreated
	}
	return &Resolver{weights: weights, tieBreak: tieBreak}
}

// Resolve picks, per field independently, the active candidate with the
// highest confidence; ties fall to the tie-break function. Candidates must be
// in creation order. A field with no active candidate resolves to an empty
// value with zero confidence; that is a valid state, never an error.
func (r *Resolver) Resolve(candidates []*models.MetadataCandidate) *Result {
	chosen := map[string]*models.MetadataCandidate{}

	for _, candidate := range candidates {
		if !candidate.Active {
			continue
		}
		current, ok := chosen[candidate.Field]
		if !ok || candidate.Confidence > current.Confidence {
			chosen[candidate.Field] = candidate
			continue
		}
		if candidate.Confidence == current.Confidence && r.tieBreak(current, candidate) {
			chosen[candidate.Field] = candidate
		}
	}

	result := &Result{Fields: map[string]FieldResult{}}
	for field, candidate := range chosen {
		result.Fields[field] = FieldResult{
			Value:      candidate.Value,
			Confidence: candidate.Confidence,
		}
	}

	result.OverallConfidence = r.weights.Title*result.confidence(models.FieldTitle) +
		r.weights.Author*result.confidence(models.FieldAuthor) +
		r.weights.Series*result.confidence(models.FieldSeries) +
		r.weights.Cover*result.confidence(models.FieldCover)

	filled := 0
	for _, field := range models.CompletenessFields {
		if result.Fields[field].Value != "" {
			filled++
		}
	}
	result.CompletenessScore = float64(filled) / float64(len(models.CompletenessFields))

	return result
}

func (r *Result) confidence(field string) float64 {
	return r.Fields[field].Confidence
}

// Value returns the resolved value for field, empty when unresolved.
func (r *Result) Value(field string) string {
	return r.Fields[field].Value
}
