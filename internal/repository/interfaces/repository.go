package interfaces

import (
	"context"
	"time"

	"github.com/rajweepmondal/url-shortener/internal/models"
)

// URLRepository defines the persistence contract for URL mappings.
type URLRepository interface {
	// Create inserts a new mapping. Returns models.ErrDuplicateKey if the
	// short code or (owner, long_url_hash) pair already exists.
	Create(ctx context.Context, m *models.URLMapping) error

	// FindByCode retrieves a mapping by short code, including soft-deleted
	// rows, so callers can distinguish "never existed" from "deleted".
	FindByCode(ctx context.Context, shortCode string) (*models.URLMapping, error)

	// FindActiveByHash retrieves a non-deleted mapping by its long URL hash,
	// scoped to an owner (nil owner means anonymous scope), for dedup.
	FindActiveByHash(ctx context.Context, longURLHash string, ownerID *string) (*models.URLMapping, error)

	// FindByID retrieves a mapping by its primary key.
	FindByID(ctx context.Context, id string) (*models.URLMapping, error)

	// UpdateExpiry changes the expiry timestamp of a mapping.
	UpdateExpiry(ctx context.Context, shortCode string, expiresAt *time.Time) error

	// SoftDelete marks a single mapping deleted.
	SoftDelete(ctx context.Context, shortCode string) error

	// BulkSoftDelete marks every mapping owned by ownerID deleted, returning
	// the number of rows affected.
	BulkSoftDelete(ctx context.Context, ownerID string) (int64, error)

	// IncrementAccess bumps the access counter and last-accessed timestamp.
	IncrementAccess(ctx context.Context, shortCode string, at time.Time) error

	// ListByOwner returns a filtered, sorted, paginated view of an owner's
	// mappings.
	ListByOwner(ctx context.Context, ownerID string, filters models.ListFilters, sort models.SortSpec, page models.Pagination) (*models.PagedResult, error)

	// FindExpiring returns active mappings whose expiry falls within the
	// given horizon, for notification purposes.
	FindExpiring(ctx context.Context, within time.Duration, limit int) ([]*models.URLMapping, error)

	// FindSoftDeletedOlderThan returns soft-deleted mappings past the grace
	// period, for the hard-delete sweeper.
	FindSoftDeletedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.URLMapping, error)

	// HardDelete permanently removes the given mappings by ID.
	HardDelete(ctx context.Context, ids []string) (int64, error)

	// ExistsByCode reports whether a short code (active or not) is taken.
	ExistsByCode(ctx context.Context, shortCode string) (bool, error)
}

// AnalyticsRepository defines the interface for the read-side analytics
// projection. The core never writes through this path directly; click
// events flow through the analytics queue to an external aggregator that
// populates these tables.
type AnalyticsRepository interface {
	RecordAccess(ctx context.Context, event *models.ClickEvent) error
	GetURLStats(ctx context.Context, shortCode string) (*models.URLStats, error)
	GetTopCountries(ctx context.Context, shortCode string, limit int) ([]string, error)
	GetTopReferers(ctx context.Context, shortCode string, limit int) ([]string, error)
}

// NotificationRepository is the read side of per-owner webhook
// configuration; the core never writes these rows, only consumes them when
// deciding whether and where to deliver a lifecycle event.
type NotificationRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.NotificationSettings, error)
}

// CacheEntryStatus distinguishes a confirmed hit from a negative cache
// entry (known-absent) from a plain miss.
type CacheEntryStatus int

const (
	CacheMiss CacheEntryStatus = iota
	CacheHit
	CacheNegativeHit
)

// CacheRepository is the mapping-aware cache contract backing the L2 tier.
// Unlike a generic string KV store, it understands the URLMapping shape and
// the hit/negative-hit/miss trichotomy the redirect hot path needs.
type CacheRepository interface {
	// Get returns the cached mapping for a short code. status is CacheHit
	// with a non-nil mapping, CacheNegativeHit with a nil mapping (the code
	// is known not to exist), or CacheMiss (nothing cached either way).
	Get(ctx context.Context, shortCode string) (m *models.URLMapping, status CacheEntryStatus, err error)

	// Put caches a positive mapping.
	Put(ctx context.Context, m *models.URLMapping, ttl time.Duration) error

	// PutNegative records that shortCode is known not to resolve.
	PutNegative(ctx context.Context, shortCode string, ttl time.Duration) error

	// Invalidate removes any cached entry (positive or negative) for a code.
	Invalidate(ctx context.Context, shortCode string) error
}

// RateLimitRepository defines the interface for rate limiting operations
type RateLimitRepository interface {
	// CheckRateLimit checks if a request is within rate limits
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)

	// IncrementRateLimit increments the rate limit counter
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int, error)

	// GetRateLimitInfo gets current rate limit information
	GetRateLimitInfo(ctx context.Context, key string) (int, time.Duration, error)

	// ResetRateLimit resets the rate limit for a key
	ResetRateLimit(ctx context.Context, key string) error

	// CheckFixedWindow checks if a request is within limit for the current
	// fixed window bucket.
	CheckFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)

	// CheckTokenBucket atomically consumes one token if available.
	CheckTokenBucket(ctx context.Context, key string, capacity, refillRate int, window time.Duration) (bool, error)
}
