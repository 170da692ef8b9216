package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Leases, epochs and rate windows are single-key commands on the request
// path; they fail fast rather than hold a session request.
const (
	redisDialTimeout = 2 * time.Second
	redisOpTimeout   = 500 * time.Millisecond
)

// NewRedisClient opens the coordination store used for session leases,
// idempotency epochs and rate windows, and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = redisDialTimeout
	opt.ReadTimeout = redisOpTimeout
	opt.WriteTimeout = redisOpTimeout
	if opt.ClientName == "" {
		opt.ClientName = "custody_auth"
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
