package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// ResumeEntry is one queued unit of unfinished acquisition work: a book and
// the sources that still need a successful answer for it.
type ResumeEntry struct {
	BookID         int   `json:"book_id"`
	MissingSources []int `json:"missing_sources"`
}

// ScanSession is a resumable unit of acquisition work: aggregate counters plus
// a queue of books still needing attention. The per-source maps and the queue
// are stored as JSON columns and round-tripped through the *Parsed fields,
// mirroring how job payloads are stored.
type ScanSession struct {
	bun.BaseModel `bun:"table:scan_sessions,alias:ss"`

	ID        string    `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalBooks            int `json:"total_books"`
	ProcessedBooks        int `json:"processed_books"`
	BooksWithExternalData int `json:"books_with_external_data"`

	CallsMade           string         `bun:",nullzero" json:"-"`
	Failures            string         `bun:",nullzero" json:"-"`
	RateLimitsHit       string         `bun:",nullzero" json:"-"`
	ResumeQueue         string         `bun:",nullzero" json:"-"`
	CallsMadeParsed     map[string]int `bun:"-" json:"calls_made"`
	FailuresParsed      map[string]int `bun:"-" json:"failures"`
	RateLimitsHitParsed map[string]int `bun:"-" json:"rate_limits_hit"`
	ResumeQueueParsed   []ResumeEntry  `bun:"-" json:"resume_queue"`

	IsActive    bool       `json:"is_active"`
	CanResume   bool       `json:"can_resume"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *ScanSession) UnmarshalPayloads() error {
	s.CallsMadeParsed = map[string]int{}
	s.FailuresParsed = map[string]int{}
	s.RateLimitsHitParsed = map[string]int{}
	s.ResumeQueueParsed = []ResumeEntry{}

	pairs := []struct {
		raw  string
		dest interface{}
	}{
		{s.CallsMade, &s.CallsMadeParsed},
		{s.Failures, &s.FailuresParsed},
		{s.RateLimitsHit, &s.RateLimitsHitParsed},
		{s.ResumeQueue, &s.ResumeQueueParsed},
	}
	for _, p := range pairs {
		if p.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(p.raw), p.dest); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (s *ScanSession) MarshalPayloads() error {
	if s.CallsMadeParsed == nil {
		s.CallsMadeParsed = map[string]int{}
	}
	if s.FailuresParsed == nil {
		s.FailuresParsed = map[string]int{}
	}
	if s.RateLimitsHitParsed == nil {
		s.RateLimitsHitParsed = map[string]int{}
	}
	if s.ResumeQueueParsed == nil {
		s.ResumeQueueParsed = []ResumeEntry{}
	}

	pairs := []struct {
		src  interface{}
		dest *string
	}{
		{s.CallsMadeParsed, &s.CallsMade},
		{s.FailuresParsed, &s.Failures},
		{s.RateLimitsHitParsed, &s.RateLimitsHit},
		{s.ResumeQueueParsed, &s.ResumeQueue},
	}
	for _, p := range pairs {
		data, err := json.Marshal(p.src)
		if err != nil {
			return errors.WithStack(err)
		}
		*p.dest = string(data)
	}
	return nil
}

// QueueEntryFor returns the resume entry for bookID, or nil.
func (s *ScanSession) QueueEntryFor(bookID int) *ResumeEntry {
	for i := range s.ResumeQueueParsed {
		if s.ResumeQueueParsed[i].BookID == bookID {
			return &s.ResumeQueueParsed[i]
		}
	}
	return nil
}

// EnqueueMissingSource records that (bookID, sourceID) still needs a
// successful attempt. Entries and source ids are deduplicated; queue order is
// preserved for existing entries.
func (s *ScanSession) EnqueueMissingSource(bookID, sourceID int) {
	entry := s.QueueEntryFor(bookID)
	if entry == nil {
		s.ResumeQueueParsed = append(s.ResumeQueueParsed, ResumeEntry{
			BookID:         bookID,
			MissingSources: []int{sourceID},
		})
		return
	}
	for _, id := range entry.MissingSources {
		if id == sourceID {
			return
		}
	}
	entry.MissingSources = append(entry.MissingSources, sourceID)
}

// DequeueSource removes sourceID from the book's entry, dropping the entry
// entirely once no sources remain.
func (s *ScanSession) DequeueSource(bookID, sourceID int) {
	for i := range s.ResumeQueueParsed {
		if s.ResumeQueueParsed[i].BookID != bookID {
			continue
		}
		remaining := make([]int, 0, len(s.ResumeQueueParsed[i].MissingSources))
		for _, id := range s.ResumeQueueParsed[i].MissingSources {
			if id != sourceID {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			s.ResumeQueueParsed = append(s.ResumeQueueParsed[:i], s.ResumeQueueParsed[i+1:]...)
		} else {
			s.ResumeQueueParsed[i].MissingSources = remaining
		}
		return
	}
}

// DequeueBook removes the book's entry regardless of remaining sources.
func (s *ScanSession) DequeueBook(bookID int) {
	for i := range s.ResumeQueueParsed {
		if s.ResumeQueueParsed[i].BookID == bookID {
			s.ResumeQueueParsed = append(s.ResumeQueueParsed[:i], s.ResumeQueueParsed[i+1:]...)
			return
		}
	}
}

func incrementCounter(m map[string]int, key string) map[string]int {
	if m == nil {
		m = map[string]int{}
	}
	m[key]++
	return m
}

// CountCall increments the per-source outbound call counter.
func (s *ScanSession) CountCall(source string) {
	s.CallsMadeParsed = incrementCounter(s.CallsMadeParsed, source)
}

// CountFailure increments the per-source failure counter.
func (s *ScanSession) CountFailure(source string) {
	s.FailuresParsed = incrementCounter(s.FailuresParsed, source)
}

// CountRateLimitHit increments the per-source rate-limit counter.
func (s *ScanSession) CountRateLimitHit(source string) {
	s.RateLimitsHitParsed = incrementCounter(s.RateLimitsHitParsed, source)
}
