package httpapi

import (
	"context"

	"github.com/haukened/geoblock/internal/geoblock/domain"
	"github.com/haukened/geoblock/internal/geoblock/repos/registry"
	"github.com/haukened/geoblock/internal/geoblock/services/blocking"
)

// BlockingService is the set of use cases exposed over HTTP.
type BlockingService interface {
	Block(ctx context.Context, req blocking.BlockRequest) (blocking.Ack, error)
	Unblock(ctx context.Context, countryCode string) (blocking.Ack, error)
	TemporalBlock(ctx context.Context, req blocking.TemporalBlockRequest) (blocking.Ack, error)
	ListBlocked(ctx context.Context, search string, page, pageSize int) (domain.Page[domain.BlockedCountry], error)
	CheckIP(ctx context.Context, caller blocking.Caller) (bool, error)
	ListAttempts(ctx context.Context, page, pageSize int) (domain.Page[domain.BlockedAttemptLog], error)
	LookupIP(ctx context.Context, ip string, caller blocking.Caller) (domain.GeoRecord, error)
}

// StatsSource reports registry sizes for the health endpoint.
type StatsSource interface {
	Stats() registry.Stats
}

var _ BlockingService = (*blocking.Service)(nil)
