package suppliers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CatalogCache keeps supplier catalogs in Redis. A nil cache degrades to
// loading straight from the repository.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache instantiates the cache helper.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

func catalogKey(supplierID int64) string {
	return fmt.Sprintf("suppliers:catalog:%d", supplierID)
}

// Fetch loads the cached catalog or populates it using the loader.
func (c *CatalogCache) Fetch(ctx context.Context, supplierID int64, loader func(context.Context) ([]CatalogItem, error)) ([]CatalogItem, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := catalogKey(supplierID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var items []CatalogItem
		if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
			return items, nil
		}
		// Corrupt entry, fall through and repopulate.
	} else if err != redis.Nil {
		return nil, err
	}

	items, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Invalidate drops the cached catalog after a mutation.
func (c *CatalogCache) Invalidate(ctx context.Context, supplierID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, catalogKey(supplierID)).Err()
}
