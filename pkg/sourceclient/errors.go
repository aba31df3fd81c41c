package sourceclient

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen means the call was blocked before transmission because the
// source's circuit breaker is open. Retry-after is unknown; skip the source
// until its cooldown passes.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RateLimitError means the source cannot be called right now and the wait is
// too long to block on. The caller decides whether to queue a later retry.
type RateLimitError struct {
	Source     string
	Reason     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s is rate limited: %s (retry after %s)", e.Source, e.Reason, e.RetryAfter)
}

// PermanentError means the source answered definitively that the record does
// not exist. It is not retry-eligible.
type PermanentError struct {
	Source     string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s rejected the request permanently (status %d)", e.Source, e.StatusCode)
}

// TransportError covers network failures, malformed responses, and
// non-recoverable statuses. Retry-eligible with backoff.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryEligible reports whether a failed attempt should be queued for a
// later retry. Only permanent rejections are excluded.
func IsRetryEligible(err error) bool {
	var perm *PermanentError
	return !errors.As(err, &perm)
}

// IsRateLimited reports whether the failure was a rate-limit outcome.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
