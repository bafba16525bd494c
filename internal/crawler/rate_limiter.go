package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles hosts that declared a robots.txt Crawl-delay. Hosts
// without a configured delay are not limited here; the fixed pause before
// every fetch still applies to them.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to urlStr may proceed.
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	r.mu.RLock()
	limiter, ok := r.limiters[strings.ToLower(parsedURL.Host)]
	r.mu.RUnlock()
	if !ok {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// SetHostDelay limits host to one request per delay. A non-positive delay
// removes the limit. Re-setting the same delay keeps the existing limiter
// and its state.
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	host = strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()

	if delay <= 0 {
		delete(r.limiters, host)
		return
	}

	limit := rate.Every(delay)
	if existing, ok := r.limiters[host]; ok && existing.Limit() == limit {
		return
	}
	r.limiters[host] = rate.NewLimiter(limit, 1)
}
