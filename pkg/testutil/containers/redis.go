//go:build integration

// Package containers starts throwaway backing services for integration tests.
package containers

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/redis"
)

// RedisContainer is a real Redis server for store tests that depend on exact
// TTL, Lua and MULTI behavior. Client is dialed through redis.Open so the
// production pool settings are exercised too.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.RedisConfig
	Client    *goredis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	cfg := config.RedisConfig{
		Backend:     "redis",
		URL:         url,
		PoolSize:    4,
		DialTimeout: 5 * time.Second,
	}
	clients, err := redis.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() { _ = clients.Close() })

	return &RedisContainer{Container: container, Config: cfg, Client: clients.Shared}
}

// FlushAll drops every key so subtests start from an empty store.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
