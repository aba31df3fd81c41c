package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AccessStatusNotAttempted = "not_attempted"
	AccessStatusSuccess      = "success"
	AccessStatusFailed       = "failed"
	AccessStatusRateLimited  = "rate_limited"
)

// SourceAccessRecord is the per (book, source) attempt ledger entry. It exists
// so that a source which is fine globally but keeps failing for one troublesome
// record is skipped for that record. Created lazily on first attempt, updated
// after every attempt, never deleted.
type SourceAccessRecord struct {
	bun.BaseModel `bun:"table:source_access_records,alias:sar"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	BookID    int       `bun:",nullzero" json:"book_id"`
	SourceID  int       `bun:",nullzero" json:"source_id"`

	Status              string     `bun:",nullzero" json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	ItemsFound          int        `json:"items_found"`
	LastConfidence      *float64   `json:"last_confidence,omitempty"`
	LastError           *string    `json:"last_error,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
}

// HealthyFailureThreshold is the consecutive-failure count at which a (book,
// source) pair stops being retried automatically.
const HealthyFailureThreshold = 3

// Retry backoff bounds for a single (book, source) pair.
const (
	retryBackoffBase = 15 * time.Minute
	retryBackoffMax  = 24 * time.Hour
)

// IsHealthy reports whether automatic retries are still allowed for this pair.
func (r *SourceAccessRecord) IsHealthy() bool {
	return r.ConsecutiveFailures < HealthyFailureThreshold
}

// RetryBackoff returns the wait required after the last attempt before the
// pair is eligible again. The wait doubles with every consecutive failure and
// is capped so no pair is ever blocked permanently.
func (r *SourceAccessRecord) RetryBackoff() time.Duration {
	if r.ConsecutiveFailures <= 0 {
		return 0
	}
	backoff := retryBackoffBase << (r.ConsecutiveFailures - 1)
	if backoff > retryBackoffMax || backoff <= 0 {
		return retryBackoffMax
	}
	return backoff
}

// CanRetryAt returns the earliest time another attempt is allowed.
func (r *SourceAccessRecord) CanRetryAt() time.Time {
	if r.LastAttemptAt == nil {
		return time.Time{}
	}
	return r.LastAttemptAt.Add(r.RetryBackoff())
}

// CanRetryNow reports whether the backoff window has elapsed as of now.
func (r *SourceAccessRecord) CanRetryNow(now time.Time) bool {
	return !now.Before(r.CanRetryAt())
}
