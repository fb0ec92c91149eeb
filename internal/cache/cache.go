// Package cache is a thin read-through layer over Redis. A nil client
// (Redis not configured or unreachable at startup) disables every
// operation, and runtime cache errors are logged and swallowed: the cache
// must never fail a request.
package cache

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"libris-backend/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Cache struct {
	client        *redis.Client
	defaultExpiry time.Duration
}

// New connects to Redis at url. An empty url returns a disabled cache; a
// failed ping is downgraded to a disabled cache with a warning, matching
// the rest of the system's "caching is optional" stance.
func New(ctx context.Context, url string, defaultExpiry time.Duration) *Cache {
	c := &Cache{defaultExpiry: defaultExpiry}
	if url == "" {
		logger.Warn("redis url not configured, caching disabled")
		return c
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid redis url, caching disabled", "error", err)
		return c
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, caching disabled", "error", err)
		return c
	}
	logger.Info("redis connection established")
	c.client = client
	return c
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get unmarshals the cached value into dest and reports whether the key
// was present.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Error("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		logger.Error("cache entry unmarshal failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiry time.Duration) {
	if !c.Enabled() {
		return
	}
	if expiry <= 0 {
		expiry = c.defaultExpiry
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Error("cache entry marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, expiry).Err(); err != nil {
		logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Error("cache delete failed", "keys", keys, "error", err)
	}
}

// DeletePattern removes every key matching a glob pattern, e.g. "loans:*".
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Error("cache delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		logger.Error("cache scan failed", "pattern", pattern, "error", err)
	}
}

// FlushAll clears the whole cache (administrative use).
func (c *Cache) FlushAll(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.client.FlushAll(ctx).Err(); err != nil {
		logger.Error("cache flush failed", "error", err)
	}
}

// Key builders. Kept together so the invalidation patterns below stay in
// sync with the read paths.

func BookKey(id int32) string { return fmt.Sprintf("books:%d", id) }

func BookListKey(page, size int32) string { return fmt.Sprintf("books:list:%d:%d", page, size) }

func UserLoansKey(userID int32) string { return fmt.Sprintf("loans:user:%d", userID) }

const (
	OverdueLoansKey = "loans:overdue"
	LoanStatsKey    = "loans:stats"
	BooksPattern    = "books:*"
	LoansPattern    = "loans:*"
)
