// Package cache is the Redis layer behind the authenticated context cache,
// the per-IP login limiter and the token event stream.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool defaults used when neither Options nor the URL query sets a value.
const (
	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
	defaultPoolTimeout  = 4 * time.Second
	defaultIdleTime     = 5 * time.Minute
)

// Options sizes the connection pool. Zero fields keep what the URL set,
// falling back to the package defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
}

func (o Options) apply(opt *redis.Options) {
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	} else if opt.PoolSize == 0 {
		opt.PoolSize = DefaultPoolSize
	}
	if o.MinIdleConns > 0 {
		opt.MinIdleConns = o.MinIdleConns
	} else if opt.MinIdleConns == 0 {
		opt.MinIdleConns = DefaultMinIdleConns
	}
	if o.DialTimeout > 0 {
		opt.DialTimeout = o.DialTimeout
	}
	if opt.PoolTimeout == 0 {
		opt.PoolTimeout = defaultPoolTimeout
	}
	if opt.ConnMaxIdleTime == 0 {
		opt.ConnMaxIdleTime = defaultIdleTime
	}
}

// Cache wraps the Redis client shared by the auth cache, the login limiter
// and the audit publisher.
type Cache struct {
	client *redis.Client
}

var newClient = redis.NewClient

// New connects to redisURL and checks the server answers. The client is
// closed again when it does not.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.apply(opt)

	client := newClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the connection for the audit stream publisher.
func (c *Cache) Client() *redis.Client {
	return c.client
}
