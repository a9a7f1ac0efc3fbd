package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/secondchance/secondchance/internal/model"
)

// Cache key prefixes and TTLs.
const (
	itemKeyPrefix     = "item:"
	negCacheKeySuffix = ":neg"

	// DefaultItemTTL is the TTL for cached item documents.
	DefaultItemTTL = time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrNegativeHit means the item was recently looked up and not found.
	ErrNegativeHit = errors.New("negative cache hit")
)

func itemKey(id string) string {
	return itemKeyPrefix + id
}

// GetItem retrieves an item by id with a single round trip.
// Returns ErrCacheMiss or ErrNegativeHit when no item is cached.
func (c *Cache) GetItem(ctx context.Context, id string) (*model.Item, error) {
	key := itemKey(id)

	vals, err := c.client.MGet(ctx, key, key+negCacheKeySuffix).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	if s, ok := vals[0].(string); ok {
		var item model.Item
		if err := bson.Unmarshal([]byte(s), &item); err != nil {
			// Drop unreadable entries so the next read repopulates them.
			c.client.Del(ctx, key)
			return nil, ErrCacheMiss
		}
		return &item, nil
	}

	if vals[1] != nil {
		return nil, ErrNegativeHit
	}

	return nil, ErrCacheMiss
}

// SetItem stores an item and clears any negative entry for its id.
func (c *Cache) SetItem(ctx context.Context, item *model.Item) error {
	data, err := bson.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	key := itemKey(item.ID)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, c.itemTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache item: %w", err)
	}

	return nil
}

// SetItemNotFound marks an id as not found.
func (c *Cache) SetItemNotFound(ctx context.Context, id string) error {
	err := c.client.SetEx(ctx, itemKey(id)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// DeleteItem removes an item and its negative entry from cache.
func (c *Cache) DeleteItem(ctx context.Context, id string) error {
	key := itemKey(id)

	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}

	return nil
}
