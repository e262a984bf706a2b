// Package geolocation provides the collaborators that map an IP address to a
// country: an ipgeolocation.io HTTP client, an offline MaxMind database
// reader, and a caching decorator for either.
package geolocation

import (
	"context"
	"net/netip"
	"strings"

	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// Lookup resolves an IP address to a GeoRecord. ok=false is the single
// failure signal; implementations log their own errors.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool)
}

// parseAddr trims ip and parses it, unmapping v4-in-v6 addresses.
func parseAddr(ip string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
