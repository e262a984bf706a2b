package geolocation

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// countryReader is the part of *geoip2.Reader used by MMDB.
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// MMDB resolves addresses offline from a MaxMind-format country database
// (GeoLite2-Country, DB-IP Country Lite, ...).
type MMDB struct {
	reader countryReader
	logger log.Logger
}

// OpenMMDB opens the database file at path.
func OpenMMDB(path string, logger log.Logger) (*MMDB, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mmdb %q: %w", path, err)
	}
	return newMMDB(db, logger), nil
}

func newMMDB(r countryReader, logger log.Logger) *MMDB {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &MMDB{reader: r, logger: logger}
}

// Lookup resolves ip from the database. Unparsable addresses, reader errors,
// and records without an ISO code yield ok=false.
func (m *MMDB) Lookup(_ context.Context, ip string) (domain.GeoRecord, bool) {
	addr, ok := parseAddr(ip)
	if !ok || addr.IsLoopback() {
		return domain.GeoRecord{}, false
	}
	rec, err := m.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		m.logger.Warn(map[string]any{
			"ip":    ip,
			"error": err.Error(),
		}, "mmdb lookup failed")
		return domain.GeoRecord{}, false
	}
	code := strings.ToUpper(rec.Country.IsoCode)
	if code == "" {
		return domain.GeoRecord{}, false
	}
	return domain.GeoRecord{
		IP:          addr.String(),
		CountryCode: code,
		CountryName: rec.Country.Names["en"],
	}, true
}

// Close releases the database.
func (m *MMDB) Close() error { return m.reader.Close() }

var _ Lookup = (*MMDB)(nil)
