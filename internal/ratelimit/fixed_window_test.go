package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	_, client := newRedisClient(t)
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	ctx := context.Background()
	first := limiter.Allow(ctx, "ip-1")
	if !first.Allowed || first.Remaining != 1 {
		t.Fatalf("first request should pass with 1 remaining, got %+v", first)
	}
	if !limiter.Allow(ctx, "ip-1").Allowed {
		t.Fatalf("second request should pass")
	}
	third := limiter.Allow(ctx, "ip-1")
	if third.Allowed {
		t.Fatalf("third request should be blocked")
	}
	if third.RetryAfter <= 0 || third.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry after: %s", third.RetryAfter)
	}
	if !limiter.Allow(ctx, "ip-2").Allowed {
		t.Fatalf("other keys have their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	mr, client := newRedisClient(t)
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1").Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter(nil, "test:ratelimit", 1, time.Second)
	if err == nil {
		t.Fatalf("expected error for missing redis client")
	}
	if limiter != nil {
		t.Fatalf("expected nil limiter on error")
	}
}

func TestMemoryFixedWindowLimiterResetsAfterWindow(t *testing.T) {
	limiter, err := NewMemoryFixedWindowLimiter(1, time.Minute)
	if err != nil {
		t.Fatalf("new memory limiter: %v", err)
	}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	if !limiter.Allow(ctx, "sess").Allowed {
		t.Fatalf("first request should pass")
	}
	blocked := limiter.Allow(ctx, "sess")
	if blocked.Allowed || blocked.RetryAfter != time.Minute {
		t.Fatalf("expected block with full retry window, got %+v", blocked)
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "sess").Allowed {
		t.Fatalf("expected new window to allow")
	}
}
