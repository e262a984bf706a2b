package geolocation

import (
	"context"

	"github.com/haukened/geoblock/internal/geoblock/domain"
	"github.com/haukened/geoblock/internal/geoblock/repos/geocache"
	"github.com/haukened/geoblock/internal/geoblock/services/blocking"
)

// Cached serves repeated lookups from a geocache.Cache and only stores
// successful results, so failures are retried on the next call.
type Cached struct {
	next  Lookup
	cache geocache.Cache
}

// NewCached wraps next with cache. A nil cache disables caching.
func NewCached(next Lookup, cache geocache.Cache) *Cached {
	if cache == nil {
		cache = geocache.New(0, 0)
	}
	return &Cached{next: next, cache: cache}
}

// Lookup keys the cache by the canonical form of ip. Unparsable input is
// passed through uncached.
func (c *Cached) Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool) {
	addr, ok := parseAddr(ip)
	if !ok {
		return c.next.Lookup(ctx, ip)
	}
	key := addr.String()
	if rec, ok := c.cache.Get(key); ok {
		return rec, true
	}
	rec, ok := c.next.Lookup(ctx, key)
	if !ok {
		return domain.GeoRecord{}, false
	}
	rec.IP = key
	c.cache.Put(rec)
	return rec, true
}

var _ Lookup = (*Cached)(nil)
var _ blocking.GeoLookup = (*Cached)(nil)
