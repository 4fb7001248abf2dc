package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiterForTest(t *testing.T) (*miniredis.Miniredis, *RedisFixedWindowLimiter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewRedisFixedWindowLimiter(client, "rl_test")
}

func TestRedisFixedWindowLimiterAllowAndDeny(t *testing.T) {
	_, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d denied under limit", i)
		}
	}
	ok, retryAfter, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatal("request over limit allowed")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retryAfter = %v", retryAfter)
	}
}

func TestRedisFixedWindowLimiterIsolatesKeys(t *testing.T) {
	_, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	if ok, _, _ := limiter.Allow(ctx, "client-1", 1, time.Minute); !ok {
		t.Fatal("client-1 denied")
	}
	if ok, _, _ := limiter.Allow(ctx, "client-2", 1, time.Minute); !ok {
		t.Fatal("client-2 throttled by client-1")
	}
	if ok, _, _ := limiter.Allow(ctx, "client-1", 1, time.Minute); ok {
		t.Fatal("client-1 over limit allowed")
	}
}

func TestRedisFixedWindowLimiterWindowExpiry(t *testing.T) {
	m, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()

	if ok, _, _ := limiter.Allow(ctx, "client-1", 1, time.Minute); !ok {
		t.Fatal("first request denied")
	}
	if ok, _, _ := limiter.Allow(ctx, "client-1", 1, time.Minute); ok {
		t.Fatal("second request allowed")
	}
	m.FastForward(2 * time.Minute)
	if ok, _, _ := limiter.Allow(ctx, "client-1", 1, time.Minute); !ok {
		t.Fatal("request after window expiry denied")
	}
}

func TestRedisFixedWindowLimiterNilClient(t *testing.T) {
	limiter := NewRedisFixedWindowLimiter(nil, "rl_test")
	if _, _, err := limiter.Allow(context.Background(), "client-1", 1, time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
}
