package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *HTTPClient {
	return NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 5*time.Second)
}

func robotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRobotsPolicyRules(t *testing.T) {
	robotsTxt := `
User-agent: *
Disallow: /admin/
Disallow: /private/
Allow: /private/public/
Crawl-delay: 2

User-agent: Googlebot
Disallow: /no-google/
`
	var hits int32
	server := robotsServer(t, http.StatusOK, robotsTxt, &hits)

	client := newTestClient()
	defer client.Close()
	policy := NewRobotsPolicy(client, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"Root allowed", server.URL + "/", true},
		{"Admin disallowed", server.URL + "/admin/page", false},
		{"Private disallowed", server.URL + "/private/data", false},
		{"Private public allowed", server.URL + "/private/public/page", true},
		{"Other agent rules ignored", server.URL + "/no-google/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Allowed(ctx, tt.url))
		})
	}

	assert.Equal(t, 2*time.Second, policy.CrawlDelay(server.URL+"/anything"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "robots.txt is fetched once per origin")
}

func TestRobotsPolicyDisallowAll(t *testing.T) {
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", nil)
	client := newTestClient()
	defer client.Close()

	policy := NewRobotsPolicy(client, nil)
	assert.False(t, policy.Allowed(context.Background(), server.URL+"/"))
	assert.False(t, policy.Allowed(context.Background(), server.URL+"/docs/report.pdf"))
}

func TestRobotsPolicyFailsOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		var hits int32
		server := robotsServer(t, http.StatusInternalServerError, "boom", &hits)
		client := newTestClient()
		defer client.Close()

		policy := NewRobotsPolicy(client, nil)
		assert.True(t, policy.Allowed(context.Background(), server.URL+"/"))
		assert.True(t, policy.Allowed(context.Background(), server.URL+"/admin/"))
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "failure is cached")
		assert.Zero(t, policy.CrawlDelay(server.URL+"/"))
	})

	t.Run("not found", func(t *testing.T) {
		server := robotsServer(t, http.StatusNotFound, "", nil)
		client := newTestClient()
		defer client.Close()

		policy := NewRobotsPolicy(client, nil)
		assert.True(t, policy.Allowed(context.Background(), server.URL+"/admin/"))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		client := newTestClient()
		defer client.Close()

		policy := NewRobotsPolicy(client, nil)
		assert.True(t, policy.Allowed(context.Background(), addr+"/"))
	})
}

func TestRobotsPolicyRejectsInvalidURL(t *testing.T) {
	client := newTestClient()
	defer client.Close()
	policy := NewRobotsPolicy(client, nil)
	assert.False(t, policy.Allowed(context.Background(), "not a url"))
}

func TestSameDomain(t *testing.T) {
	tests := []struct {
		name      string
		seed      string
		candidate string
		want      bool
	}{
		{"subdomain of seed", "https://example.org/y", "https://a.example.org/x", true},
		{"seed is subdomain", "https://a.example.org/x", "https://example.org/y", true},
		{"sibling subdomains", "https://a.example.org/", "https://b.example.org/", false},
		{"different domain", "https://example.org", "https://other.org", false},
		{"suffix without dot", "https://example.org/", "https://notexample.org/", false},
		{"lookalike host", "https://example.org/", "https://example.org.evil.test/", false},
		{"case insensitive", "https://Example.ORG/", "https://docs.example.org/", true},
		{"same host", "https://example.org/", "http://example.org/about/", true},
		{"invalid candidate", "https://example.org/", "::", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameDomain(tt.seed, tt.candidate))
		})
	}
}

func TestTimerPauser(t *testing.T) {
	start := time.Now()
	require.NoError(t, TimerPauser{}.Pause(context.Background(), 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	err := TimerPauser{}.Pause(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
