package ratelimit

import (
	"sync"
	"time"
)

// BreakerConfig tunes one source's circuit breaker. A slow, rarely-called
// source typically wants a low threshold and a long cooldown; a high-volume
// source the opposite.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// DefaultBreakerConfig is used for sources without an explicit override.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	Cooldown:         5 * time.Minute,
}

type breakerState struct {
	failures      int
	lastFailureAt time.Time
}

// BreakerStatus is a read-only snapshot of one source's breaker for
// operational dashboards.
type BreakerStatus struct {
	Open          bool       `json:"open"`
	Failures      int        `json:"failures"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	ReopensAt     *time.Time `json:"closes_at,omitempty"`
}

// Breaker stops calls to sources that are failing outright, independent of
// any formal rate limit. There is no half-open probing state: once the
// cooldown since the last failure has elapsed, state is reset lazily and the
// next call is simply allowed as a fresh attempt. Open state is always
// time-bounded, so no source is ever permanently blacklisted.
type Breaker struct {
	mu       sync.Mutex
	clock    Clock
	configs  map[string]BreakerConfig
	fallback BreakerConfig
	states   map[string]*breakerState
}

func NewBreaker(clock Clock, configs map[string]BreakerConfig) *Breaker {
	if configs == nil {
		configs = map[string]BreakerConfig{}
	}
	return &Breaker{
		clock:    clock,
		configs:  configs,
		fallback: DefaultBreakerConfig,
		states:   map[string]*breakerState{},
	}
}

func (b *Breaker) configFor(source string) BreakerConfig {
	if cfg, ok := b.configs[source]; ok {
		return cfg
	}
	return b.fallback
}

// IsOpen reports whether calls to source are currently blocked. Stale state
// is cleared on read: past cooldown the breaker closes without any explicit
// reset call, and state idle for twice the cooldown is evicted entirely.
func (b *Breaker) IsOpen(source string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[source]
	if !ok {
		return false
	}

	cfg := b.configFor(source)
	idle := b.clock.Now().Sub(state.lastFailureAt)

	if idle > 2*cfg.Cooldown {
		delete(b.states, source)
		return false
	}
	if state.failures < cfg.FailureThreshold {
		return false
	}
	if idle > cfg.Cooldown {
		delete(b.states, source)
		return false
	}
	return true
}

// RecordFailure counts one hard failure against source.
func (b *Breaker) RecordFailure(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[source]
	if !ok {
		state = &breakerState{}
		b.states[source] = state
	}
	state.failures++
	state.lastFailureAt = b.clock.Now()
}

// RecordSuccess clears all breaker state for source.
func (b *Breaker) RecordSuccess(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.states, source)
}

// Status returns the current snapshot for source.
func (b *Breaker) Status(source string) BreakerStatus {
	open := b.IsOpen(source)

	b.mu.Lock()
	defer b.mu.Unlock()

	status := BreakerStatus{Open: open}
	if state, ok := b.states[source]; ok {
		status.Failures = state.failures
		at := state.lastFailureAt
		status.LastFailureAt = &at
		if open {
			reopens := state.lastFailureAt.Add(b.configFor(source).Cooldown)
			status.ReopensAt = &reopens
		}
	}
	return status
}
