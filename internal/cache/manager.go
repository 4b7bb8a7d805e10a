package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rajweepmondal/url-shortener/internal/metrics"
	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// Manager is the two-tier cache fronting the URL mapping repository: L1
// (process-local, Ristretto) backed by L2 (shared, Redis). Concurrent
// L2 lookups for the same short code are coalesced with singleflight so a
// burst of requests to a newly-popular link only issues one L2 round trip.
// Repository reads after an L2 miss happen in the caller and are not
// coalesced.
type Manager struct {
	l1          *L1Cache
	l2          interfaces.CacheRepository
	positiveTTL time.Duration
	negativeTTL time.Duration
	sf          singleflight.Group
}

// NewManager builds a Manager over the given L1/L2 tiers.
func NewManager(l1 *L1Cache, l2 interfaces.CacheRepository, positiveTTL, negativeTTL time.Duration) *Manager {
	return &Manager{l1: l1, l2: l2, positiveTTL: positiveTTL, negativeTTL: negativeTTL}
}

// Get checks L1 then L2. An L2 hit backfills L1. It does not fall through
// to the repository; callers that get a CacheMiss must consult the
// repository themselves and then call Put/PutNegative to populate both
// tiers.
func (m *Manager) Get(ctx context.Context, shortCode string) (*models.URLMapping, interfaces.CacheEntryStatus, error) {
	if mapping, found := m.l1.Get(shortCode); found {
		metrics.CacheHits.WithLabelValues("l1").Inc()
		if mapping == nil {
			return nil, interfaces.CacheNegativeHit, nil
		}
		return mapping, interfaces.CacheHit, nil
	}
	metrics.CacheMisses.WithLabelValues("l1").Inc()

	v, err, _ := m.sf.Do(shortCode, func() (interface{}, error) {
		return m.getFromL2(ctx, shortCode)
	})
	if err != nil {
		return nil, interfaces.CacheMiss, err
	}
	res := v.(*l2Result)
	return res.mapping, res.status, nil
}

type l2Result struct {
	mapping *models.URLMapping
	status  interfaces.CacheEntryStatus
}

func (m *Manager) getFromL2(ctx context.Context, shortCode string) (*l2Result, error) {
	mapping, status, err := m.l2.Get(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("l2 lookup failed: %w", err)
	}

	switch status {
	case interfaces.CacheHit:
		metrics.CacheHits.WithLabelValues("l2").Inc()
		m.l1.Set(mapping, m.positiveTTL)
	case interfaces.CacheNegativeHit:
		metrics.CacheHits.WithLabelValues("l2").Inc()
		m.l1.SetNegative(shortCode, m.negativeTTL)
	default:
		metrics.CacheMisses.WithLabelValues("l2").Inc()
	}

	return &l2Result{mapping: mapping, status: status}, nil
}

// Put populates both tiers with a positive mapping.
func (m *Manager) Put(ctx context.Context, mapping *models.URLMapping, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.positiveTTL
	}
	m.l1.Set(mapping, ttl)
	if err := m.l2.Put(ctx, mapping, ttl); err != nil {
		return fmt.Errorf("failed to populate l2 cache: %w", err)
	}
	return nil
}

// PutNegative populates both tiers with a negative entry.
func (m *Manager) PutNegative(ctx context.Context, shortCode string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.negativeTTL
	}
	m.l1.SetNegative(shortCode, ttl)
	if err := m.l2.PutNegative(ctx, shortCode, ttl); err != nil {
		return fmt.Errorf("failed to populate l2 negative cache: %w", err)
	}
	return nil
}

// Invalidate clears a short code from both tiers, used on update/delete so
// stale mappings cannot be served.
func (m *Manager) Invalidate(ctx context.Context, shortCode string) error {
	m.l1.Delete(shortCode)
	if err := m.l2.Invalidate(ctx, shortCode); err != nil {
		return fmt.Errorf("failed to invalidate l2 cache: %w", err)
	}
	return nil
}

// Close releases L1's background resources.
func (m *Manager) Close() {
	m.l1.Close()
}
