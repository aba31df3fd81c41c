package sourceclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mokurokubooks/mokuroku/pkg/ratelimit"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Config describes one external source's calling discipline.
type Config struct {
	// Source is the source name used for counter keys and breaker state.
	Source string

	// Limits are the formal request ceilings. Any subset may be zero.
	Limits ratelimit.Limits

	// MinInterval is the minimum delay between consecutive requests to this
	// source, enforced even when no limit has been hit. It is the primary
	// defense against bursting a source whose only configured limit is
	// coarse, like a daily cap.
	MinInterval time.Duration

	// MaxLimitWait bounds how long a denied limit check may be slept through
	// inline. Longer waits fail fast with a RateLimitError instead.
	MaxLimitWait time.Duration

	// MaxRetryAfterWait bounds how long a server-supplied retry delay may be
	// honored inline on a 429 response.
	MaxRetryAfterWait time.Duration

	// CacheTTL is how long successful responses are served from cache when a
	// request carries a cache key. Zero disables caching.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxLimitWait <= 0 {
		c.MaxLimitWait = time.Hour
	}
	if c.MaxRetryAfterWait <= 0 {
		c.MaxRetryAfterWait = 5 * time.Minute
	}
	return c
}

// Request is one logical call to the source. CacheKey is optional; requests
// without one are never cached.
type Request struct {
	Method   string
	URL      string
	Header   http.Header
	CacheKey string
}

// Response is a substantive answer from the source.
type Response struct {
	StatusCode int
	Body       []byte
	FromCache  bool

	retryAfterHeader string
}

// Client is the only path through which the system calls one external source.
// It composes the shared tracker and breaker with a response cache and the
// per-source minimum delay. The only cross-request state the client itself
// holds is the time of the last request, for the minimum-delay check.
type Client struct {
	cfg     Config
	tracker *ratelimit.Tracker
	breaker *ratelimit.Breaker
	cache   *responseCache
	httpc   *http.Client
	clock   ratelimit.Clock

	mu            sync.Mutex
	lastRequestAt time.Time
}

// New builds a Client. The http.Client is the injected transport; response
// parsing into domain metadata belongs to the source's provider, not here.
func New(cfg Config, tracker *ratelimit.Tracker, breaker *ratelimit.Breaker, httpc *http.Client, clock ratelimit.Clock) *Client {
	cfg = cfg.withDefaults()
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		tracker: tracker,
		breaker: breaker,
		cache:   newResponseCache(clock, cfg.CacheTTL),
		httpc:   httpc,
		clock:   clock,
	}
}

// Source returns the source name this client calls.
func (c *Client) Source() string {
	return c.cfg.Source
}

// Available reports whether a call would currently be admitted: breaker
// closed and no configured limit exhausted. It performs no side effects.
func (c *Client) Available(ctx context.Context) (bool, error) {
	if c.breaker.IsOpen(c.cfg.Source) {
		return false, nil
	}
	decision, err := c.tracker.CheckLimits(ctx, c.cfg.Source, c.cfg.Limits)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return decision.Allowed, nil
}

// Status is a read-only operational snapshot of this source's breaker and
// rate-limit state.
type Status struct {
	Available bool                    `json:"available"`
	Breaker   ratelimit.BreakerStatus `json:"breaker"`
	Limits    ratelimit.Limits        `json:"limits"`
	Decision  *ratelimit.Decision     `json:"decision,omitempty"`
}

// Status reports the current breaker and limit state without side effects.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	breaker := c.breaker.Status(c.cfg.Source)
	decision, err := c.tracker.CheckLimits(ctx, c.cfg.Source, c.cfg.Limits)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Status{
		Available: !breaker.Open && decision.Allowed,
		Breaker:   breaker,
		Limits:    c.cfg.Limits,
		Decision:  decision,
	}, nil
}

// Do performs one request against the source, enforcing the breaker, the
// cache, the rate limits, and the minimum inter-request delay, in that order.
// A source-reported "too many requests" answer is retried inline exactly once
// after honoring the server's delay; further retries are the caller's problem.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	log := logger.FromContext(ctx)

	if c.breaker.IsOpen(c.cfg.Source) {
		return nil, errors.WithStack(ErrCircuitOpen)
	}

	if entry, ok := c.cache.get(req.CacheKey); ok {
		return &Response{StatusCode: entry.statusCode, Body: entry.body, FromCache: true}, nil
	}

	decision, err := c.tracker.CheckLimits(ctx, c.cfg.Source, c.cfg.Limits)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !decision.Allowed {
		if decision.RetryAfter > c.cfg.MaxLimitWait {
			return nil, &RateLimitError{
				Source:     c.cfg.Source,
				Reason:     decision.Reason,
				RetryAfter: decision.RetryAfter,
			}
		}
		log.Info("waiting for rate limit window", logger.Data{
			"source": c.cfg.Source,
			"reason": decision.Reason,
			"wait":   decision.RetryAfter.String(),
		})
		if err := sleep(ctx, decision.RetryAfter); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := c.enforceMinInterval(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	resp, err := c.perform(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfterDelay(resp)
		if wait > c.cfg.MaxRetryAfterWait {
			// Reached the source, so it counts against the limit.
			_ = c.tracker.RecordRequest(ctx, c.cfg.Source, c.cfg.Limits)
			return nil, &RateLimitError{
				Source:     c.cfg.Source,
				Reason:     "source reported too many requests",
				RetryAfter: wait,
			}
		}
		log.Info("source reported too many requests; retrying once", logger.Data{
			"source": c.cfg.Source,
			"wait":   wait.String(),
		})
		// The first attempt reached the source, so it counts.
		if err := c.tracker.RecordRequest(ctx, c.cfg.Source, c.cfg.Limits); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, errors.WithStack(err)
		}
		resp, err = c.perform(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = c.tracker.RecordRequest(ctx, c.cfg.Source, c.cfg.Limits)
			return nil, &RateLimitError{
				Source:     c.cfg.Source,
				Reason:     "source reported too many requests after retry",
				RetryAfter: retryAfterDelay(resp),
			}
		}
	}

	return c.settle(ctx, req, resp)
}

// settle applies counter, breaker, and cache side effects for a substantive
// response. Anything that reached the source counts toward the rate limit;
// only calls blocked before transmission are exempt.
func (c *Client) settle(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if err := c.tracker.RecordRequest(ctx, c.cfg.Source, c.cfg.Limits); err != nil {
		return nil, errors.WithStack(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.breaker.RecordSuccess(c.cfg.Source)
		c.cache.set(req.CacheKey, resp.Body, resp.StatusCode)
		return resp, nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The source is healthy; it just has no such record.
		c.breaker.RecordSuccess(c.cfg.Source)
		return nil, &PermanentError{Source: c.cfg.Source, StatusCode: resp.StatusCode}

	default:
		c.breaker.RecordFailure(c.cfg.Source)
		return nil, &TransportError{
			Source: c.cfg.Source,
			Err:    errors.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

// perform issues the HTTP call. A request that never reaches the source is a
// breaker failure but does not count toward the rate limit.
func (c *Client) perform(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, &TransportError{Source: c.cfg.Source, Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	c.stampRequestTime()

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure(c.cfg.Source)
		return nil, &TransportError{Source: c.cfg.Source, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.breaker.RecordFailure(c.cfg.Source)
		return nil, &TransportError{Source: c.cfg.Source, Err: err}
	}

	return &Response{
		StatusCode:       httpResp.StatusCode,
		Body:             body,
		retryAfterHeader: httpResp.Header.Get("Retry-After"),
	}, nil
}

func (c *Client) enforceMinInterval(ctx context.Context) error {
	if c.cfg.MinInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	last := c.lastRequestAt
	c.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	elapsed := c.clock.Now().Sub(last)
	if elapsed >= c.cfg.MinInterval {
		return nil
	}
	return sleep(ctx, c.cfg.MinInterval-elapsed)
}

func (c *Client) stampRequestTime() {
	c.mu.Lock()
	c.lastRequestAt = c.clock.Now()
	c.mu.Unlock()
}

// retryAfterDelay reads the server-supplied Retry-After seconds from a 429
// response body carrier, defaulting to a short fixed wait.
func retryAfterDelay(resp *Response) time.Duration {
	if resp.retryAfterHeader != "" {
		if secs, err := strconv.Atoi(resp.retryAfterHeader); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 5 * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
