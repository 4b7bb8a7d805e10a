package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

const negativeMarker = "\x00absent"

// CacheRepository is the L2 (shared, cross-process) cache tier, implemented
// against Redis. It stores full JSON-encoded mappings so a cold L1 can
// rehydrate without hitting PostgreSQL.
type CacheRepository struct {
	client *redis.Client
}

// NewCacheRepository creates a new Redis-backed L2 cache repository.
func NewCacheRepository(client *redis.Client) interfaces.CacheRepository {
	return &CacheRepository{client: client}
}

func mappingKey(shortCode string) string {
	return fmt.Sprintf("url:%s", shortCode)
}

// Get returns the cached mapping for a short code, distinguishing a
// confirmed hit from a negative cache entry from a plain miss.
func (r *CacheRepository) Get(ctx context.Context, shortCode string) (*models.URLMapping, interfaces.CacheEntryStatus, error) {
	val, err := r.client.Get(ctx, mappingKey(shortCode)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, interfaces.CacheMiss, nil
		}
		return nil, interfaces.CacheMiss, fmt.Errorf("cache get failed for %s: %w", shortCode, err)
	}

	if val == negativeMarker {
		return nil, interfaces.CacheNegativeHit, nil
	}

	var m models.URLMapping
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, interfaces.CacheMiss, fmt.Errorf("cache decode failed for %s: %w", shortCode, err)
	}
	return &m, interfaces.CacheHit, nil
}

// Put caches a positive mapping.
func (r *CacheRepository) Put(ctx context.Context, m *models.URLMapping, ttl time.Duration) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping for cache: %w", err)
	}
	if err := r.client.Set(ctx, mappingKey(m.ShortCode), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache put failed for %s: %w", m.ShortCode, err)
	}
	return nil
}

// PutNegative records that shortCode is known not to resolve.
func (r *CacheRepository) PutNegative(ctx context.Context, shortCode string, ttl time.Duration) error {
	if err := r.client.Set(ctx, mappingKey(shortCode), negativeMarker, ttl).Err(); err != nil {
		return fmt.Errorf("cache negative put failed for %s: %w", shortCode, err)
	}
	return nil
}

// Invalidate removes any cached entry, positive or negative, for a code.
func (r *CacheRepository) Invalidate(ctx context.Context, shortCode string) error {
	if err := r.client.Del(ctx, mappingKey(shortCode)).Err(); err != nil {
		return fmt.Errorf("cache invalidate failed for %s: %w", shortCode, err)
	}
	return nil
}
