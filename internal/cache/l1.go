// Package cache implements the two-tier (process-local + shared) cache that
// sits in front of the URL mapping repository on the redirect hot path.
package cache

import (
	"math/rand"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rajweepmondal/url-shortener/internal/models"
)

// l1Entry is what is actually stored in the Ristretto cache: either a
// mapping (positive hit) or, when mapping is nil, a negative marker.
type l1Entry struct {
	mapping *models.URLMapping
}

// L1Cache is the process-local cache tier, backed by Ristretto. It never
// talks to the network, so it absorbs the bulk of redirect traffic for hot
// codes without a round trip to Redis.
type L1Cache struct {
	cache *ristretto.Cache
}

// NewL1Cache builds an L1 tier sized for maxItems entries.
func NewL1Cache(maxItems int64) (*L1Cache, error) {
	if maxItems <= 0 {
		maxItems = 100_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &L1Cache{cache: c}, nil
}

// Get returns the cached mapping and whether it was a positive hit, a
// negative hit, or a miss.
func (c *L1Cache) Get(shortCode string) (*models.URLMapping, bool) {
	v, found := c.cache.Get(shortCode)
	if !found {
		return nil, false
	}
	entry, ok := v.(*l1Entry)
	if !ok {
		return nil, false
	}
	return entry.mapping, true
}

// Set stores a positive mapping with jittered TTL to avoid synchronized
// expiry across many keys cached at the same moment.
func (c *L1Cache) Set(m *models.URLMapping, ttl time.Duration) {
	c.cache.SetWithTTL(m.ShortCode, &l1Entry{mapping: m}, 1, jitter(ttl))
}

// SetNegative records that a short code is known not to resolve.
func (c *L1Cache) SetNegative(shortCode string, ttl time.Duration) {
	c.cache.SetWithTTL(shortCode, &l1Entry{mapping: nil}, 1, jitter(ttl))
}

// Delete evicts any entry, positive or negative, for a short code.
func (c *L1Cache) Delete(shortCode string) {
	c.cache.Del(shortCode)
}

// Close releases Ristretto's background goroutines.
func (c *L1Cache) Close() {
	c.cache.Close()
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	spread := int64(base) / 10
	if spread <= 0 {
		return base
	}
	delta := rand.Int63n(2*spread+1) - spread
	return base + time.Duration(delta)
}
