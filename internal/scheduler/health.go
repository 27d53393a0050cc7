package scheduler

import (
	"context"
	"fmt"

	"bikestreets_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// RedisHealth pings the task queue's Redis for readiness checks.
type RedisHealth struct {
	client *redis.Client
}

func NewRedisHealth(cfg config.SchedulerConfig) (*RedisHealth, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisOptions(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &RedisHealth{client: redis.NewClient(opt)}, nil
}

func (h *RedisHealth) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *RedisHealth) Close() error {
	return h.client.Close()
}
