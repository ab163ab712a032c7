package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Options configures the Redis connection backing the report cache.
type Options struct {
	Addr        string
	DB          int
	PingTimeout time.Duration
}

// New creates a Redis client and checks it answers PING.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("platform/cache: address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}

// Optional behaves like New but degrades to a nil client when Redis cannot be
// reached. Report reads then go straight to Postgres.
func Optional(ctx context.Context, opts Options, logger *slog.Logger) *redis.Client {
	client, err := New(ctx, opts)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("report cache disabled", slog.String("addr", opts.Addr), slog.Any("error", err))
		return nil
	}
	return client
}
