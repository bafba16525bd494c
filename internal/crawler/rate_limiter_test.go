package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterUnlimitedHost(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(ctx, "https://example.com/page"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterHostDelay(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	limiter.SetHostDelay("Example.com", 100*time.Millisecond)

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://example.com/page1"))
	require.NoError(t, limiter.Wait(ctx, "https://EXAMPLE.com/page2"))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	// Other hosts are not affected
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://other.com/page1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterRemoveDelay(t *testing.T) {
	limiter := NewRateLimiter()
	ctx := context.Background()

	limiter.SetHostDelay("example.com", time.Hour)
	require.NoError(t, limiter.Wait(ctx, "https://example.com/"))
	limiter.SetHostDelay("example.com", 0)

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://example.com/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterContextCancel(t *testing.T) {
	limiter := NewRateLimiter()
	limiter.SetHostDelay("example.com", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Wait(ctx, "https://example.com/"))
	assert.Error(t, limiter.Wait(ctx, "https://example.com/"))
}
