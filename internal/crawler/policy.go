package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsTimeout  = 10 * time.Second
	robotsMaxBytes = 512 * 1024
)

// RobotsPolicy answers robots.txt permission questions for one job, caching
// the parsed file per origin.
//
// The policy fails open: when robots.txt cannot be fetched, answers with a
// 5xx status or cannot be parsed, every path of that origin is allowed. The
// decision is cached like a successful parse. A 4xx answer means there is no
// robots.txt and everything is allowed as well.
type RobotsPolicy struct {
	client *HTTPClient
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.Group
}

// NewRobotsPolicy creates a policy that fetches robots.txt through client.
func NewRobotsPolicy(client *HTTPClient, logger *slog.Logger) *RobotsPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsPolicy{
		client: client,
		logger: logger,
		cache:  make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the wildcard user-agent group permits rawURL.
// Unparseable URLs are refused.
func (r *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	group := r.group(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.RequestURI())
}

// CrawlDelay returns the Crawl-delay declared for rawURL's origin, or zero.
// It only consults the cache filled by Allowed.
func (r *RobotsPolicy) CrawlDelay(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g := r.cache[originKey(u)]; g != nil {
		return g.CrawlDelay
	}
	return 0
}

// group returns the wildcard group for u's origin, nil meaning allow all.
func (r *RobotsPolicy) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := originKey(u)

	r.mu.Lock()
	g, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return g
	}

	g, err := r.load(ctx, key)
	if err != nil {
		r.logger.Warn("robots.txt unavailable; allowing access", "origin", key, "error", err)
		g = nil
	}

	r.mu.Lock()
	r.cache[key] = g
	r.mu.Unlock()
	return g
}

func (r *RobotsPolicy) load(ctx context.Context, origin string) (*robotstxt.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	status, body, err := r.client.Get(ctx, origin+"/robots.txt", robotsMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	if status >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fetch robots: status %d", status)
	}
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data.FindGroup("*"), nil
}

func originKey(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// SameDomain reports whether candidate belongs to the seed's site: the hosts
// are equal or one is a dot-suffix subdomain of the other, in either
// direction.
func SameDomain(seed, candidate string) bool {
	a := hostOf(seed)
	b := hostOf(candidate)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// TimerPauser sleeps with a timer and returns early when ctx is done.
type TimerPauser struct{}

// Pause implements Pauser.
func (TimerPauser) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
