package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"bikestreets_backend/internal/events"
	"bikestreets_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// ArchiveScheduler queues debug log entries for archiving.
type ArchiveScheduler interface {
	EnqueueDebugLogArchive(ctx context.Context, payload DebugLogArchivePayload) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueDebugLogArchive(ctx context.Context, payload DebugLogArchivePayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDebugLogArchiveTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(5))
	return err
}

func (c *Client) EnqueueDebugLogCleanup(ctx context.Context, payload DebugLogCleanupPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDebugLogCleanupTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

// ArchiveOnWrite returns an event handler that queues every written debug
// log entry for archiving.
func ArchiveOnWrite(s ArchiveScheduler) events.Handler {
	return events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.DebugLogWritten)
		if !ok {
			return nil
		}
		return s.EnqueueDebugLogArchive(ctx, DebugLogArchivePayload{
			Path:            e.Path,
			OriginName:      e.OriginName,
			DestinationName: e.DestinationName,
			Routes:          e.Routes,
		})
	})
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redisOptions(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func redisOptions(redisURL string, tlsInsecure bool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}
