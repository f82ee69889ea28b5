// Package infra holds the plumbing shared by the upstream providers: a TTL
// response cache, request spacing and a GET helper.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// --- Response cache ---

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe in-memory map with a single TTL. Expired entries
// are swept on every Set once the map has grown past sweepAt entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	sweepAt int
}

const minSweep = 256

// NewCache creates a cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl, sweepAt: minSweep}
}

// Get returns the live value for key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *Cache) Set(key string, value any) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: now.Add(c.ttl)}
	if len(c.entries) < c.sweepAt {
		return
	}
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.sweepAt = max(minSweep, 2*len(c.entries))
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// --- Rate limiter ---

// RateLimiter spaces outbound calls to one upstream. A nil *RateLimiter
// never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows n requests per period, bursting up to n.
func NewRateLimiter(n int, period time.Duration) *RateLimiter {
	n = max(n, 1)
	if period <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, n)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(period/time.Duration(n)), n)}
}

// NewIntervalLimiter enforces at least interval between calls. Zero
// disables limiting.
func NewIntervalLimiter(interval time.Duration) *RateLimiter {
	return NewRateLimiter(1, interval)
}

// Wait blocks until a call may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}

// --- HTTP ---

// ErrHTTP is a response with status >= 400.
type ErrHTTP struct {
	URL        string
	StatusCode int
	Status     string
	Body       string        // first KiB
	RetryAfter time.Duration // server hint on throttled responses, 0 if absent
}

func (e *ErrHTTP) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d %s (retry after %s): %s", e.StatusCode, e.Status, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Throttled reports whether the upstream asked the caller to slow down.
func (e *ErrHTTP) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// DefaultUserAgent is sent unless the caller overrides it. EDGAR requires
// its own contact-bearing value, which the sec provider sets.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is shared by every provider.
var HTTPClient = &http.Client{Timeout: 30 * time.Second}

// DoGet issues a GET with headers and returns the open body, which the
// caller closes. A status >= 400 is returned as *ErrHTTP. Throttled calls
// are not retried; the caller treats the source as unavailable.
func DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	if resp.StatusCode < 400 {
		return resp.Body, resp.StatusCode, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, resp.StatusCode, &ErrHTTP{
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(snippet),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
	}
}

// retryAfter reads the delay-seconds form of Retry-After, capped at a minute.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, time.Minute)
}
