// Package cache is a Redis-backed JSON read-through cache for lookup results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout: flightticketing:{module}:{operation}:{identifier}
const (
	KeyPrefix        = "flightticketing"
	KeyAirportsAll   = KeyPrefix + ":airports:all"
	KeyDeparturesFor = KeyPrefix + ":departures:airport:" // + airport code
)

// ErrMiss is returned by Get when the key is absent
var ErrMiss = errors.New("cache miss")

// DeparturesKey builds the departures key for an airport
func DeparturesKey(code string) string {
	return KeyDeparturesFor + code
}

// NewRedisClient connects to Redis and returns nil when the server cannot be
// reached, so callers run without caching or rate limiting.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// Cache stores JSON values with a fixed TTL. A Cache with a nil client
// always misses and drops writes.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache over rdb
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Enabled reports whether a Redis client is configured
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Get decodes the value stored under key into dst
func (c *Cache) Get(ctx context.Context, key string, dst any) error {
	if !c.Enabled() {
		return ErrMiss
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return nil
}

// Set stores v under key
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}
