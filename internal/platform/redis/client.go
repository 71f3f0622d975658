// Package redis connects the process to Redis when a URL is configured.
// The draw lock is the only consumer; everything else runs without it.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stagepass/internal/platform/config"
)

const connectTimeout = 5 * time.Second

// Client wraps go-redis so callers depend on this package, not the driver.
type Client struct {
	*redis.Client
}

// New dials Redis using cfg and verifies the connection with a ping. An empty
// URL means Redis is not configured and New returns (nil, nil); callers fall
// back to in-process alternatives.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
