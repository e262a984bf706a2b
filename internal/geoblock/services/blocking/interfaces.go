package blocking

import (
	"context"

	"github.com/haukened/geoblock/internal/geoblock/domain"
)

// Registry is the block state the service composes its use cases over.
type Registry interface {
	TryAddPermanentBlock(entry domain.BlockedCountry) error
	RemovePermanentBlock(code string) bool
	ListBlockedCountries(searchTerm string, page, pageSize int) ([]domain.BlockedCountry, int)
	IsBlocked(code string) bool
	TryAddTemporalBlock(entry domain.TemporalBlock) error
	RemoveTemporalBlock(code string) bool
	AppendAttempt(entry domain.BlockedAttemptLog)
	ListAttempts(page, pageSize int) ([]domain.BlockedAttemptLog, int)
}

// GeoLookup resolves an IP address to a country. ok=false means no data,
// whatever the cause.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (domain.GeoRecord, bool)
}

// AttemptArchive receives a copy of every attempt that is logged.
type AttemptArchive interface {
	Append(entry domain.BlockedAttemptLog) error
}
