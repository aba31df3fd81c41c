package sourceclient

import (
	"sync"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
)

type cacheEntry struct {
	body       []byte
	statusCode int
	expiresAt  time.Time
}

// responseCache holds successful response bodies keyed by the request's cache
// key. A cache hit never touches the network, the rate counters, or the
// breaker.
type responseCache struct {
	mu      sync.Mutex
	clock   ratelimit.Clock
	ttl     time.Duration
	entries map[string]*cacheEntry
}

func newResponseCache(clock ratelimit.Clock, ttl time.Duration) *responseCache {
	return &responseCache{
		clock:   clock,
		ttl:     ttl,
		entries: map[string]*cacheEntry{},
	}
}

func (c *responseCache) get(key string) (*cacheEntry, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

func (c *responseCache) set(key string, body []byte, statusCode int) {
	if key == "" || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		body:       body,
		statusCode: statusCode,
		expiresAt:  c.clock.Now().Add(c.ttl),
	}
}
