package domain

import "time"

// LocalCountryCode tags attempts made from loopback addresses, which are never
// geolocated.
const LocalCountryCode = "LOCAL"

// BlockedAttemptLog is an immutable audit entry for one IP block check.
type BlockedAttemptLog struct {
	ID          string    `json:"id"`
	IPAddress   string    `json:"ipAddress"`
	Timestamp   time.Time `json:"timestamp"`
	CountryCode string    `json:"countryCode"`
	IsBlocked   bool      `json:"isBlocked"`
	UserAgent   string    `json:"userAgent"`
}
