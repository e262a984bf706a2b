package domain

import "time"

// BlockedCountry is a permanent block. It is never mutated after creation and
// is removed only by an explicit unblock.
type BlockedCountry struct {
	CountryCode string    `json:"countryCode"`
	CountryName string    `json:"countryName"`
	BlockedAt   time.Time `json:"blockedAt"`
}

// TemporalBlock blocks a country until BlockedUntil.
type TemporalBlock struct {
	CountryCode  string    `json:"countryCode"`
	BlockedUntil time.Time `json:"blockedUntil"`
}

// Active reports whether the block is still in force at now.
// A block whose BlockedUntil equals now has already expired.
func (b TemporalBlock) Active(now time.Time) bool {
	return b.BlockedUntil.After(now)
}
