package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
)

// Clients holds the shared enforcement store connection and the rate-limit
// connection. Limiter points at Shared unless a separate instance is configured.
type Clients struct {
	Shared  *redis.Client
	Limiter *redis.Client
}

// Open connects to the shared store and, when configured, the split rate-limit
// instance. Both are pinged before Open returns.
func Open(ctx context.Context, cfg config.RedisConfig) (*Clients, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis URL is empty")
	}
	shared, err := dial(ctx, cfg.URL, cfg)
	if err != nil {
		return nil, fmt.Errorf("shared store: %w", err)
	}
	c := &Clients{Shared: shared, Limiter: shared}
	if cfg.RateLimitURL != "" && cfg.RateLimitURL != cfg.URL {
		limiter, err := dial(ctx, cfg.RateLimitURL, cfg)
		if err != nil {
			_ = shared.Close()
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		c.Limiter = limiter
	}
	return c, nil
}

func dial(ctx context.Context, url string, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Health pings the shared store.
func (c *Clients) Health(ctx context.Context) error {
	return c.Shared.Ping(ctx).Err()
}

// Close closes both connections once.
func (c *Clients) Close() error {
	err := c.Shared.Close()
	if c.Limiter != c.Shared {
		err = errors.Join(err, c.Limiter.Close())
	}
	return err
}
