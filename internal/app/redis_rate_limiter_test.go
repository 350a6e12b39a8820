package app

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisRateLimiterNormalizesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: defaultRateLimitPrefix},
		{prefix: "  custom:limits: ", want: "custom:limits"},
		{prefix: "svc", want: "svc"},
	}

	for _, tt := range tests {
		limiter := NewRedisRateLimiter(nil, tt.prefix)
		if got := limiter.key("transfer", "user-1"); got != tt.want+":transfer:user-1" {
			t.Fatalf("prefix %q: expected key under %q, got %q", tt.prefix, tt.want, got)
		}
	}
}

func TestConsumeRateLimitDisabledCases(t *testing.T) {
	// The client points at a closed port; none of these cases may reach it.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	var nilLimiter *RedisRateLimiter
	tests := []struct {
		name    string
		limiter *RedisRateLimiter
		scope   string
		subject string
		limit   int
		window  time.Duration
	}{
		{name: "nil limiter", limiter: nilLimiter, scope: "transfer", subject: "u", limit: 5, window: time.Minute},
		{name: "nil client", limiter: NewRedisRateLimiter(nil, ""), scope: "transfer", subject: "u", limit: 5, window: time.Minute},
		{name: "zero limit", limiter: NewRedisRateLimiter(client, ""), scope: "transfer", subject: "u", limit: 0, window: time.Minute},
		{name: "zero window", limiter: NewRedisRateLimiter(client, ""), scope: "transfer", subject: "u", limit: 5, window: 0},
		{name: "blank subject", limiter: NewRedisRateLimiter(client, ""), scope: "transfer", subject: " ", limit: 5, window: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retry, err := tt.limiter.ConsumeRateLimit(context.Background(), tt.scope, tt.subject, tt.limit, tt.window)
			if err != nil || count != 0 || retry != 0 {
				t.Fatalf("expected disabled limiter, got count=%d retry=%d err=%v", count, retry, err)
			}
		})
	}
}
