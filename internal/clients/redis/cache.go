// Package redis holds the search-result cache. The cache is fully
// disposable: every entry can be rebuilt from the primary store, and
// invalidation after a bulk re-normalization is a wholesale flush.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/platewatch/platewatch-backend/internal/platform/envutil"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Flush(ctx context.Context) error
	Close() error
}

type cache struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewCache connects to Redis from env config. A nil Cache is a valid
// degraded mode: callers must treat every Get as a miss when construction
// fails and the operator chose to continue without caching.
func NewCache(log *logger.Logger) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Username:     envutil.String("REDIS_USER", ""),
		Password:     envutil.String("REDIS_PASSWORD", ""),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &cache{log: log.With("client", "RedisCache"), rdb: rdb}, nil
}

func (c *cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set is best effort: a cache write failure never fails the request.
func (c *cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("Cache set failed", "key", key, "error", err)
	}
}

func (c *cache) Flush(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	c.log.Info("Cache flushed")
	return nil
}

func (c *cache) Close() error { return c.rdb.Close() }

// Key builds a cache key from query parts, pipe-delimited under one prefix.
func Key(parts ...string) string {
	return "search:" + strings.Join(parts, "|")
}
