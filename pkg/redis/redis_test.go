package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsboard/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

// liveClient connects to REDIS_ADDR or skips
func liveClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	client, err := Connect(&goredis.Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), GoogleNewsRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != GoogleNewsRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", GoogleNewsRateLimit.Limit, remaining)
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background(), GoogleNewsRateLimit); err != nil {
		t.Errorf("Expected nil limiter to allow, got %v", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
	if err := cache.Set(context.Background(), "key", "v", TTLShort); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestNewsKey(t *testing.T) {
	if got := NewsKey("KR", "005930_삼성전자"); got != "news:KR:005930_삼성전자" {
		t.Errorf("got %q", got)
	}
}

func TestCache_Live(t *testing.T) {
	client := liveClient(t)
	cache := NewCache(client, "rsboard-test")
	ctx := context.Background()

	type entry struct{ Title string }
	require.NoError(t, cache.Set(ctx, "k", entry{Title: "hello"}, time.Minute))
	defer cache.Delete(ctx, "k")

	var got entry
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", got.Title)

	require.NoError(t, cache.Delete(ctx, "k"))
	found, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRateLimiter_Live(t *testing.T) {
	client := liveClient(t)
	limiter := NewRateLimiter(client, "rsboard-test")
	cfg := RateLimitConfig{Key: "unit-" + time.Now().Format("150405.000"), Limit: 2, Window: time.Second}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed, "third request in the same window must be rejected")
}
