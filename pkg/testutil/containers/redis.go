//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer wraps a testcontainers Redis instance used by the draw-lock
// tests.
type RedisContainer struct {
	Container testcontainers.Container
	Addr      string
	Client    *redis.Client
}

// NewRedisContainer starts a Redis container and connects a client to it.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	fail := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	addr, err := container.ConnectionString(ctx)
	if err != nil {
		fail("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		fail("parse redis URL %q: %v", addr, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		fail("ping redis: %v", err)
	}

	// No t.Cleanup: shared through the Manager singleton, reaped by Ryuk.

	return &RedisContainer{
		Container: container,
		Addr:      addr,
		Client:    client,
	}
}

// FlushAll removes every key. Call between tests for isolation.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
