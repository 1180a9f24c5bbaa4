package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values with a TTL, in Redis when enabled and in
// process memory otherwise.
// ⭐ SSOT: キャッシュヘルパーはここだけ
type Cache struct {
	client *Client
	prefix string

	mu     sync.Mutex
	memory map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		memory: make(map[string]memoryEntry),
		now:    time.Now,
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value into dest. A miss is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.load(ctx, c.fullKey(key))
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

func (c *Cache) load(ctx context.Context, fullKey string) ([]byte, bool, error) {
	if c.client.Enabled() {
		data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("cache get failed: %w", err)
		}
		return data, true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.memory[fullKey]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.memory, fullKey)
		return nil, false, nil
	}
	return entry.data, true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := c.fullKey(key)
	if c.client.Enabled() {
		return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
	}

	c.mu.Lock()
	c.memory[fullKey] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	fullKey := c.fullKey(key)
	if c.client.Enabled() {
		return c.client.Redis().Del(ctx, fullKey).Err()
	}

	c.mu.Lock()
	delete(c.memory, fullKey)
	c.mu.Unlock()
	return nil
}

// Predefined TTLs
const (
	TTLRates   = 10 * time.Minute // 為替レート
	TTLSitemap = 24 * time.Hour
)

// ExchangeRatesKey is the cache key of the live exchange rate set
func ExchangeRatesKey(provider string) string {
	return fmt.Sprintf("exchange-rates:%s", provider)
}
