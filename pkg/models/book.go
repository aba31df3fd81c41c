package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// Book is the unit of work for acquisition and resolution. File discovery and
// format parsing happen outside this system; a Book row only needs enough
// identity for candidates, ledger entries, and sessions to hang off of.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Filepath  string    `bun:",nullzero" json:"filepath"`
	Title     string    `json:"title"`
	ISBN      *string   `json:"isbn,omitempty"`

	// CompletedSources is the set of source IDs that have fully answered for
	// this book, stored as a JSON array. A completed source is skipped on
	// later passes unless the scan forces all sources.
	CompletedSources       string `bun:",nullzero" json:"-"`
	CompletedSourcesParsed []int  `bun:"-" json:"completed_sources"`
}

func (b *Book) UnmarshalCompletedSources() error {
	b.CompletedSourcesParsed = []int{}
	if b.CompletedSources == "" {
		return nil
	}
	err := json.Unmarshal([]byte(b.CompletedSources), &b.CompletedSourcesParsed)
	return errors.WithStack(err)
}

func (b *Book) MarshalCompletedSources() error {
	if b.CompletedSourcesParsed == nil {
		b.CompletedSourcesParsed = []int{}
	}
	data, err := json.Marshal(b.CompletedSourcesParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	b.CompletedSources = string(data)
	return nil
}

// SourceCompleted reports whether sourceID is in the completed set.
func (b *Book) SourceCompleted(sourceID int) bool {
	for _, id := range b.CompletedSourcesParsed {
		if id == sourceID {
			return true
		}
	}
	return false
}

// MarkSourceCompleted adds sourceID to the completed set if absent.
func (b *Book) MarkSourceCompleted(sourceID int) {
	if b.SourceCompleted(sourceID) {
		return
	}
	b.CompletedSourcesParsed = append(b.CompletedSourcesParsed, sourceID)
}
