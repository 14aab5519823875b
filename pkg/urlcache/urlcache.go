// Package urlcache caches presigned download URLs so repeated download-url
// requests for the same file do not re-sign on every call. Backed by Redis
// when available, otherwise by an in-process map.
package urlcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps cached URLs comfortably shorter than the signed expiry.
const DefaultTTL = 30 * time.Minute

type entry struct {
	url     string
	expires time.Time
}

// Cache is a TTL cache over presigned-URL generation. It owns only the
// derived URL string, never the file record.
type Cache struct {
	ttl time.Duration
	rdb *redis.Client
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache. rdb may be nil, selecting the in-memory store;
// ttl <= 0 applies DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		rdb:     rdb,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrSign returns the cached URL for (domainID, fileID) or invokes sign and
// caches the result. A Redis read failure degrades to signing rather than
// failing the request.
func (c *Cache) GetOrSign(ctx context.Context, domainID, fileID string, sign func(context.Context) (string, error)) (string, error) {
	key := cacheKey(domainID, fileID)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		signed, err := sign(ctx)
		if err != nil {
			return "", err
		}
		_ = c.rdb.Set(ctx, key, signed, c.ttl).Err()
		return signed, nil
	}

	c.mu.Lock()
	if cached, ok := c.entries[key]; ok && c.now().Before(cached.expires) {
		c.mu.Unlock()
		return cached.url, nil
	}
	delete(c.entries, key)
	c.mu.Unlock()

	signed, err := sign(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = entry{url: signed, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return signed, nil
}

// Invalidate drops the cached URL for (domainID, fileID), typically after the
// file is deleted.
func (c *Cache) Invalidate(ctx context.Context, domainID, fileID string) error {
	key := cacheKey(domainID, fileID)

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("invalidate url cache: %w", err)
		}
		return nil
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func cacheKey(domainID, fileID string) string {
	return fmt.Sprintf("filebridge:download-url:%s:%s", domainID, fileID)
}
