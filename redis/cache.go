// Package redis caches rendered planning results by manifest digest.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/injectgen/logging"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under keys prefixed with CacheOptions.Prefix.
type Cache struct {
	client *redis.Client
	opts   CacheOptions
	logger logging.Logger
}

// New creates a cache. The connection is checked with PING.
func New(ctx context.Context, opts *CacheOptions) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithCategory("redis")
	logger.Info("listing cache connected",
		logging.Field{Key: "addr", Value: opts.Addr},
		logging.Field{Key: "db", Value: opts.DB})
	return &Cache{client: client, opts: *opts, logger: logger}, nil
}

func (c *Cache) key(k string) string { return c.opts.Prefix + k }

// Get returns the value under key and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, c.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	c.logger.Debug("cached", logging.Field{Key: "key", Value: key})
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
