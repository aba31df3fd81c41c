package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Limits are the configured request ceilings for one source. A zero value
// means the period is not limited. A source with no limits at all is always
// allowed.
type Limits struct {
	PerDay    int `json:"per_day"`
	PerHour   int `json:"per_hour"`
	PerMinute int `json:"per_minute"`
}

// Configured reports whether any period has a limit.
func (l Limits) Configured() bool {
	return l.PerDay > 0 || l.PerHour > 0 || l.PerMinute > 0
}

type period struct {
	name   string
	format string
	length time.Duration
}

// Periods are evaluated in this order; the first violated limit wins. Bucket
// keys are derived from the UTC wall clock, not from a rolling start time, so
// restarts and concurrent callers agree on bucket boundaries.
var periods = []period{
	{name: "daily", format: "2006-01-02", length: 24 * time.Hour},
	{name: "hourly", format: "2006-01-02T15", length: time.Hour},
	{name: "minute", format: "2006-01-02T15:04", length: time.Minute},
}

func (l Limits) forPeriod(name string) int {
	switch name {
	case "daily":
		return l.PerDay
	case "hourly":
		return l.PerHour
	case "minute":
		return l.PerMinute
	}
	return 0
}

// Decision is the answer to "may a new call to this source happen right now".
type Decision struct {
	Allowed    bool           `json:"allowed"`
	Reason     string         `json:"reason,omitempty"`
	RetryAfter time.Duration  `json:"retry_after"`
	Counts     map[string]int `json:"counts"`
}

// Tracker answers limit checks and records outbound calls against the shared
// counter store. It holds no state of its own, so one Tracker can be shared by
// every client and scan job.
type Tracker struct {
	store Store
	clock Clock
}

func NewTracker(store Store, clock Clock) *Tracker {
	return &Tracker{store: store, clock: clock}
}

func bucketKey(source string, p period, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", source, p.name, now.UTC().Format(p.format))
}

// rollover returns the time remaining until the current bucket of p ends.
func rollover(p period, now time.Time) time.Duration {
	utc := now.UTC()
	var next time.Time
	switch p.name {
	case "daily":
		next = time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	case "hourly":
		next = utc.Truncate(time.Hour).Add(time.Hour)
	default:
		next = utc.Truncate(time.Minute).Add(time.Minute)
	}
	return next.Sub(utc)
}

// CheckLimits evaluates the configured limits for source, daily first, and
// reports the first violated one along with the wait until its window rolls
// over. It is a pure read; counters are only touched by RecordRequest.
func (t *Tracker) CheckLimits(ctx context.Context, source string, limits Limits) (*Decision, error) {
	now := t.clock.Now()
	decision := &Decision{Allowed: true, Counts: map[string]int{}}

	for _, p := range periods {
		limit := limits.forPeriod(p.name)
		if limit <= 0 {
			continue
		}

		count, err := t.store.Get(ctx, bucketKey(source, p, now))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		decision.Counts[p.name] = count

		if decision.Allowed && count >= limit {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("%s limit of %d reached for %s", p.name, limit, source)
			decision.RetryAfter = rollover(p, now)
		}
	}

	return decision, nil
}

// RecordRequest increments the counter of every configured period for source.
// Each bucket expires one period length after its first increment.
func (t *Tracker) RecordRequest(ctx context.Context, source string, limits Limits) error {
	now := t.clock.Now()

	for _, p := range periods {
		if limits.forPeriod(p.name) <= 0 {
			continue
		}
		if _, err := t.store.Increment(ctx, bucketKey(source, p, now), p.length); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
