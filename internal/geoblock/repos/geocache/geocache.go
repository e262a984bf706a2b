package geocache

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// Cache stores geolocation results by IP address.
type Cache interface {
	Get(ip string) (domain.GeoRecord, bool)
	Put(rec domain.GeoRecord)
	Len() int
	Purge()
	Stats() (hits, misses uint64)
}

// geoCache is an expiring LRU of GeoRecords keyed by IP.
type geoCache struct {
	lru    *expirable.LRU[string, domain.GeoRecord]
	hits   uint64
	misses uint64
}

// disabledCache is a no-op Cache used when size <= 0.
type disabledCache struct{}

// New creates a Cache holding at most size records, each for at most ttl.
// If size <= 0, a disabled cache is returned that always misses.
func New(size int, ttl time.Duration) Cache {
	if size <= 0 {
		return &disabledCache{}
	}
	return &geoCache{lru: expirable.NewLRU[string, domain.GeoRecord](size, nil, ttl)}
}

func cacheKey(ip string) string {
	return strings.ToLower(strings.TrimSpace(ip))
}

// Get looks up a record by IP. When found, increments hits; otherwise increments misses.
func (c *geoCache) Get(ip string) (domain.GeoRecord, bool) {
	if rec, ok := c.lru.Get(cacheKey(ip)); ok {
		atomic.AddUint64(&c.hits, 1)
		return rec, true
	}
	atomic.AddUint64(&c.misses, 1)
	return domain.GeoRecord{}, false
}

// Put stores rec under rec.IP. Records without an IP are ignored.
func (c *geoCache) Put(rec domain.GeoRecord) {
	k := cacheKey(rec.IP)
	if k == "" {
		return
	}
	c.lru.Add(k, rec)
}

func (c *geoCache) Len() int { return c.lru.Len() }

func (c *geoCache) Purge() { c.lru.Purge() }

func (c *geoCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// disabledCache implementation

func (d *disabledCache) Get(string) (domain.GeoRecord, bool) { return domain.GeoRecord{}, false }

func (d *disabledCache) Put(domain.GeoRecord) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() (uint64, uint64) { return 0, 0 }

var _ Cache = (*geoCache)(nil)
var _ Cache = (*disabledCache)(nil)
